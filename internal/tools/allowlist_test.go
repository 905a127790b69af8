package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/draftsmith-ai/draftsmith/internal/report"
)

func TestAllowedTools(t *testing.T) {
	assert.ElementsMatch(t,
		[]Name{ToolTavily, ToolDuckDuckGo, ToolExa},
		AllowedTools(report.QueryFactual))
	assert.ElementsMatch(t,
		[]Name{ToolSerper, ToolTavily, ToolExa, ToolDuckDuckGo},
		AllowedTools(report.QueryComparative))
	assert.ElementsMatch(t,
		[]Name{ToolArxiv, ToolExa, ToolTavily, ToolSerper},
		AllowedTools(report.QueryResearch))
	assert.ElementsMatch(t,
		[]Name{ToolTavily, ToolDuckDuckGo, ToolExa, ToolGitHubUser, ToolGitHubRepo, ToolGitHubOrg, ToolGitHubLanguage},
		AllowedTools(report.QueryProgramming))
	assert.ElementsMatch(t,
		[]Name{ToolExa, ToolDuckDuckGo},
		AllowedTools(report.QueryIdea))
}

func TestAllowedToolsUnknownClassification(t *testing.T) {
	// Unknown classifications collapse to the factual set, mirroring the
	// classifier's own fallback.
	assert.Equal(t, AllowedTools(report.QueryFactual), AllowedTools(report.QueryType("nonsense")))
	assert.True(t, Allowed(report.QueryType("nonsense"), ToolTavily))
	assert.False(t, Allowed(report.QueryType("nonsense"), ToolArxiv))
}

func TestAllowedToolsReturnsCopy(t *testing.T) {
	a := AllowedTools(report.QueryIdea)
	a[0] = ToolArxiv
	assert.Equal(t, []Name{ToolExa, ToolDuckDuckGo}, AllowedTools(report.QueryIdea))
}

func TestRestrictClearsDisallowedPayloads(t *testing.T) {
	for _, qt := range report.AllQueryTypes {
		got := Restrict(qt, fullQueryRecord())
		for _, tool := range got.Requested() {
			assert.True(t, Allowed(qt, tool), "%s kept disallowed payload %s", qt, tool)
		}
		for _, tool := range AllowedTools(qt) {
			assert.True(t, got.has(tool), "%s lost allowed payload %s", qt, tool)
		}
	}
}

func TestRestrictDoesNotMutateInput(t *testing.T) {
	in := fullQueryRecord()
	_ = Restrict(report.QueryIdea, in)
	assert.NotNil(t, in.Arxiv)
	assert.NotNil(t, in.Serper)
}
