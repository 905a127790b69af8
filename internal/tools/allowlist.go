package tools

import "github.com/draftsmith-ai/draftsmith/internal/report"

// allowedTools is the static classification → tool allow-list. It is the
// single source of truth: the research planner constrains query generation to
// it, and the dispatcher enforces it again on whatever payloads arrive.
var allowedTools = map[report.QueryType][]Name{
	report.QueryFactual: {
		ToolTavily, ToolDuckDuckGo, ToolExa,
	},
	report.QueryComparative: {
		ToolSerper, ToolTavily, ToolExa, ToolDuckDuckGo,
	},
	report.QueryResearch: {
		ToolArxiv, ToolExa, ToolTavily, ToolSerper,
	},
	report.QueryProgramming: {
		ToolTavily, ToolDuckDuckGo, ToolExa,
		ToolGitHubUser, ToolGitHubRepo, ToolGitHubOrg, ToolGitHubLanguage,
	},
	report.QueryIdea: {
		ToolExa, ToolDuckDuckGo,
	},
}

// AllowedTools returns the allow-list for a classification. Unknown
// classifications get the factual set, matching the classifier's fallback.
func AllowedTools(qt report.QueryType) []Name {
	if names, ok := allowedTools[qt]; ok {
		out := make([]Name, len(names))
		copy(out, names)
		return out
	}
	return AllowedTools(report.DefaultQueryType)
}

// Allowed reports whether a tool may run for the given classification.
func Allowed(qt report.QueryType, tool Name) bool {
	names, ok := allowedTools[qt]
	if !ok {
		names = allowedTools[report.DefaultQueryType]
	}
	for _, n := range names {
		if n == tool {
			return true
		}
	}
	return false
}

// Restrict returns a copy of the query record with payloads for disallowed
// tools cleared. Defence in depth: the planner should never emit them, but a
// misbehaving generation must not widen the tool surface.
func Restrict(qt report.QueryType, q QueryRecord) QueryRecord {
	if !Allowed(qt, ToolDuckDuckGo) {
		q.DuckDuckGo = nil
	}
	if !Allowed(qt, ToolExa) {
		q.Exa = nil
	}
	if !Allowed(qt, ToolSerper) {
		q.Serper = nil
	}
	if !Allowed(qt, ToolGitHubUser) {
		q.GitHubUser = nil
	}
	if !Allowed(qt, ToolGitHubRepo) {
		q.GitHubRepo = nil
	}
	if !Allowed(qt, ToolGitHubOrg) {
		q.GitHubOrg = nil
	}
	if !Allowed(qt, ToolGitHubLanguage) {
		q.GitHubLanguage = nil
	}
	if !Allowed(qt, ToolArxiv) {
		q.Arxiv = nil
	}
	if !Allowed(qt, ToolTavily) {
		q.Tavily = nil
	}
	return q
}
