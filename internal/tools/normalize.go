package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Per-tool excerpt caps in characters. Evidence text feeds back into
// generation prompts, so every tool's contribution is bounded.
const (
	duckDuckGoExcerptCap = 1000
	exaExcerptCap        = 1000
	serperExcerptCap     = 2000
	tavilyExcerptCap     = 500
	arxivSummaryCap      = 200
	arxivAuthorLimit     = 4
)

// Normalize converts one section's output record into a bounded evidence
// block plus the source URLs backing it. Tools are rolled out in
// RollOutOrder, never arrival order, so the same record always yields
// byte-identical text and identically ordered URLs.
func Normalize(rec OutputRecord) (string, []string) {
	var b strings.Builder
	var urls []string

	if len(rec.DuckDuckGo) > 0 {
		b.WriteString("DUCKDUCKGO SEARCH:\n\n")
		for _, r := range rec.DuckDuckGo {
			b.WriteString(truncate(fmt.Sprintf("%s %s", r.Title, r.Snippet), duckDuckGoExcerptCap))
			b.WriteString("\n\n")
			if r.Link != "" {
				urls = append(urls, r.Link)
			}
		}
	}

	if len(rec.Exa) > 0 {
		b.WriteString("EXA SEARCH:\n\n")
		for _, r := range rec.Exa {
			b.WriteString(truncate(strings.Join(r.Highlights, " "), exaExcerptCap))
			b.WriteString("\n\n")
			if r.URL != "" {
				urls = append(urls, r.URL)
			}
		}
	}

	if rec.Serper != nil && len(rec.Serper.OrganicResults) > 0 {
		b.WriteString("SERPER SEARCH:\n\n")
		for _, r := range rec.Serper.OrganicResults {
			b.WriteString(truncate(fmt.Sprintf("%s %s", r.Title, r.Snippet), serperExcerptCap))
			b.WriteString("\n\n")
			if r.Link != "" {
				urls = append(urls, r.Link)
			}
		}
	}

	if gh := rec.GitHubUser; gh != nil {
		b.WriteString("GITHUB USER:\n\n")
		fmt.Fprintf(&b, "Username: %s Full name: %s Public repos: %d Followers: %d Bio: %s Location: %s\n\n",
			gh.Login, gh.Name, gh.PublicRepos, gh.Followers, gh.Bio, gh.Location)
		if gh.Login != "" {
			urls = append(urls, "https://github.com/"+gh.Login)
		}
	}

	if gh := rec.GitHubRepo; gh != nil {
		b.WriteString("GITHUB REPO:\n\n")
		fmt.Fprintf(&b, "Repo: %s Full name: %s Description: %s Stars: %d Forks: %d Language: %s Topics: %s\n\n",
			gh.Name, gh.FullName, gh.Description, gh.Stars, gh.Forks, gh.Language, strings.Join(gh.Topics, ", "))
		if gh.FullName != "" {
			urls = append(urls, "https://github.com/"+gh.FullName)
		}
	}

	if gh := rec.GitHubOrg; gh != nil {
		b.WriteString("GITHUB ORG:\n\n")
		fmt.Fprintf(&b, "Org: %s Name: %s Description: %s Public repos: %d Members: %s\n\n",
			gh.Login, gh.Name, gh.Description, gh.PublicRepos, strings.Join(gh.Members, ", "))
		if gh.Login != "" {
			urls = append(urls, "https://github.com/"+gh.Login)
		}
	}

	if gh := rec.GitHubLanguage; gh != nil && len(gh.Results) > 0 {
		b.WriteString("GITHUB REPOS BY LANGUAGE:\n\n")
		for _, r := range gh.Results {
			fmt.Fprintf(&b, "Repo: %s Full name: %s Stars: %d URL: %s\n\n", r.Name, r.FullName, r.Stars, r.URL)
			if r.URL != "" {
				urls = append(urls, r.URL)
			}
		}
	}

	if rec.Arxiv != nil && len(rec.Arxiv.Results) > 0 {
		b.WriteString("ARXIV PAPERS:\n\n")
		for _, doc := range rec.Arxiv.Results {
			authors := doc.Authors
			if len(authors) > arxivAuthorLimit {
				authors = authors[:arxivAuthorLimit]
			}
			fmt.Fprintf(&b, "Title: %s Authors: %s Summary: %s Published: %s\n\n",
				doc.Title, strings.Join(authors, ", "), truncate(doc.Summary, arxivSummaryCap), doc.Published)
			// The arXiv feed contributes abstract text only; no source link
			// is collected for it.
		}
	}

	if rec.Tavily != nil && len(rec.Tavily.Results) > 0 {
		b.WriteString("TAVILY SEARCH:\n\n")
		for _, r := range rec.Tavily.Results {
			b.WriteString(truncate(fmt.Sprintf("Title: %s Content: %s", r.Title, r.Content), tavilyExcerptCap))
			b.WriteString("\n\n")
			if r.URL != "" {
				urls = append(urls, r.URL)
			}
		}
	}

	return b.String(), urls
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
