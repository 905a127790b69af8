package tools

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutputRecord() OutputRecord {
	return OutputRecord{
		DuckDuckGo: []SearchResult{
			{Title: "Go", Link: "https://go.dev", Snippet: "the Go programming language"},
		},
		Exa: []ExaResult{
			{URL: "https://exa.example/a", Highlights: []string{"first", "second"}},
		},
		Serper: &SerperOutput{OrganicResults: []SearchResult{
			{Title: "Serper", Link: "https://serp.example", Snippet: "organic"},
		}},
		GitHubRepo: &GitHubRepoOutput{
			Name: "linux", FullName: "torvalds/linux", Stars: 180000, Language: "C",
		},
		Arxiv: &ArxivOutput{Results: []ArxivDoc{
			{
				Title:     "Attention Is All You Need",
				Authors:   []string{"a", "b", "c", "d", "e", "f"},
				Summary:   strings.Repeat("s", 500),
				Published: "2017-06-12",
			},
		}},
		Tavily: &TavilyOutput{Results: []TavilyItem{
			{Title: "Tavily", URL: "https://tav.example", Content: strings.Repeat("c", 900)},
		}},
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	rec := sampleOutputRecord()

	text1, urls1 := Normalize(rec)
	text2, urls2 := Normalize(rec)
	assert.Equal(t, text1, text2, "same record must yield byte-identical text")
	assert.Equal(t, urls1, urls2)
}

func TestNormalizeRollOutOrder(t *testing.T) {
	text, _ := Normalize(sampleOutputRecord())

	headers := []string{
		"DUCKDUCKGO SEARCH:",
		"EXA SEARCH:",
		"SERPER SEARCH:",
		"GITHUB REPO:",
		"ARXIV PAPERS:",
		"TAVILY SEARCH:",
	}
	last := -1
	for _, h := range headers {
		idx := strings.Index(text, h)
		require.GreaterOrEqual(t, idx, 0, "missing header %q", h)
		assert.Greater(t, idx, last, "header %q out of order", h)
		last = idx
	}
}

func TestNormalizeURLs(t *testing.T) {
	_, urls := Normalize(sampleOutputRecord())

	assert.Equal(t, []string{
		"https://go.dev",
		"https://exa.example/a",
		"https://serp.example",
		"https://github.com/torvalds/linux",
		"https://tav.example",
	}, urls)

	for _, u := range urls {
		assert.NotContains(t, u, "arxiv", "arXiv results contribute no source links")
	}
}

func TestNormalizeCaps(t *testing.T) {
	rec := OutputRecord{
		Tavily: &TavilyOutput{Results: []TavilyItem{
			{Title: "t", URL: "https://tav.example", Content: strings.Repeat("x", 5000)},
		}},
		Arxiv: &ArxivOutput{Results: []ArxivDoc{
			{Title: "p", Authors: []string{"a", "b", "c", "d", "e"}, Summary: strings.Repeat("y", 5000)},
		}},
	}
	text, _ := Normalize(rec)

	// Each tavily excerpt is capped at 500 chars before the separator.
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Title: t") {
			assert.LessOrEqual(t, len(line), tavilyExcerptCap)
		}
	}
	// At most four authors survive, and the summary is capped at 200.
	assert.Contains(t, text, "Authors: a, b, c, d ")
	assert.NotContains(t, text, ", e")
	assert.Contains(t, text, strings.Repeat("y", arxivSummaryCap))
	assert.NotContains(t, text, strings.Repeat("y", arxivSummaryCap+1))
}

func TestNormalizeEmptyRecord(t *testing.T) {
	text, urls := Normalize(OutputRecord{})
	assert.Empty(t, text)
	assert.Empty(t, urls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// "héllo" is 6 bytes; a 3-byte cut would land inside the é.
	assert.Equal(t, "h", truncate("héllo", 2))
	assert.Equal(t, "hé", truncate("héllo", 3))

	s := strings.Repeat("日", 10) // 3 bytes per rune
	for max := 0; max <= len(s); max++ {
		out := truncate(s, max)
		assert.True(t, utf8.ValidString(out), "max=%d produced invalid UTF-8", max)
		assert.LessOrEqual(t, len(out), max)
	}
}
