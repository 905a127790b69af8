package activities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/report"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
)

// fakeGeneration serves canned responses keyed by operation.
type fakeGeneration struct {
	responses map[string]string // operation -> response text
	fail      map[string]bool
}

func (f *fakeGeneration) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req llm.GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.fail[req.Operation] {
			http.Error(w, "generation failed", http.StatusInternalServerError)
			return
		}
		text, ok := f.responses[req.Operation]
		if !ok {
			http.Error(w, "unexpected operation "+req.Operation, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(llm.GenerateResponse{
			Text: text, InputTokens: 10, OutputTokens: 5,
		})
	}
}

// stubTavily backs the dispatcher for research execution tests.
type stubTavily struct{ err error }

func (s stubTavily) Search(ctx context.Context, q tools.TavilyQuery) (*tools.TavilyOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tools.TavilyOutput{Results: []tools.TavilyItem{
		{Title: "result", URL: "https://tav.example/doc", Content: "content"},
	}}, nil
}

func newTestActivities(t *testing.T, gen *fakeGeneration, clients tools.Clients) *Activities {
	t.Helper()
	srv := httptest.NewServer(gen.handler())
	t.Cleanup(srv.Close)

	return New(Deps{
		LLM:        llm.NewClient(srv.URL, 5*time.Second, zap.NewNop()),
		Dispatcher: tools.NewDispatcher(clients, 5*time.Second, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func newActivityEnv(t *testing.T) *testsuite.TestActivityEnvironment {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	return ts.NewTestActivityEnvironment()
}

func TestClassifyQuery(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"classify": `{"classification": "research_oriented_query"}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ClassifyQuery)

	val, err := env.ExecuteActivity(a.ClassifyQuery, ClassifyInput{Query: "recent transformer papers"})
	require.NoError(t, err)
	var res ClassifyResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, report.QueryResearch, res.QueryType)
	assert.Equal(t, 15, res.TokensUsed)
}

func TestClassifyQueryFallsBackOnFailure(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{fail: map[string]bool{"classify": true}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ClassifyQuery)

	val, err := env.ExecuteActivity(a.ClassifyQuery, ClassifyInput{Query: "anything"})
	require.NoError(t, err, "classification failure must not fail the run")
	var res ClassifyResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, report.DefaultQueryType, res.QueryType)
}

func TestClassifyQueryFallsBackOnUnknownLabel(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"classify": `{"classification": "mystery_query"}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ClassifyQuery)

	val, err := env.ExecuteActivity(a.ClassifyQuery, ClassifyInput{Query: "anything"})
	require.NoError(t, err)
	var res ClassifyResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, report.DefaultQueryType, res.QueryType)
}

func TestDraftShell(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"draft_shell": `{
			"title": "Go at Scale",
			"summary": "How Go serves large systems.",
			"sections": [
				{"name": "Runtime", "description": "GC and scheduler", "research": true},
				{"name": "Ecosystem", "description": "Libraries", "research": false}
			]
		}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.DraftShell)

	val, err := env.ExecuteActivity(a.DraftShell, DraftShellInput{
		Query: "go at scale", QueryType: report.QueryFactual,
	})
	require.NoError(t, err)
	var res DraftShellResult
	require.NoError(t, val.Get(&res))

	assert.Equal(t, "Go at Scale", res.Shell.Header.Title)
	require.Len(t, res.Shell.Sections, 2)
	assert.NotEmpty(t, res.Shell.Sections[0].ID)
	assert.NotEqual(t, res.Shell.Sections[0].ID, res.Shell.Sections[1].ID)
	assert.True(t, res.Shell.Sections[0].Research)
	assert.False(t, res.Shell.Sections[1].Research)
	assert.NoError(t, res.Shell.Validate())
}

func TestDraftShellKeepsPriorTitleOnRedraft(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"draft_shell": `{
			"title": "A Different Title",
			"sections": [{"name": "Only", "description": "d", "research": false}]
		}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.DraftShell)

	val, err := env.ExecuteActivity(a.DraftShell, DraftShellInput{
		Query:      "q",
		QueryType:  report.QueryFactual,
		Feedback:   []string{"too shallow"},
		PriorTitle: "The Original Title",
	})
	require.NoError(t, err)
	var res DraftShellResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "The Original Title", res.Shell.Header.Title)
}

func TestDraftShellTruncatesExcessSections(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"draft_shell": `{
			"title": "T",
			"sections": [
				{"name": "1"}, {"name": "2"}, {"name": "3"},
				{"name": "4"}, {"name": "5"}, {"name": "6"}
			]
		}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.DraftShell)

	val, err := env.ExecuteActivity(a.DraftShell, DraftShellInput{Query: "q", QueryType: report.QueryFactual})
	require.NoError(t, err)
	var res DraftShellResult
	require.NoError(t, val.Get(&res))
	assert.Len(t, res.Shell.Sections, report.MaxSections)
}

func TestDraftShellDegradesOnFailure(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{fail: map[string]bool{"draft_shell": true}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.DraftShell)

	val, err := env.ExecuteActivity(a.DraftShell, DraftShellInput{
		Query: "q", QueryType: report.QueryFactual, PriorTitle: "Kept Title",
	})
	require.NoError(t, err, "drafting failure must not fail the run")
	var res DraftShellResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "Kept Title", res.Shell.Header.Title)
	assert.Empty(t, res.Shell.Sections)
}

func TestPlanSectionResearchRestrictsTools(t *testing.T) {
	// The model answers with an arxiv query, which idea generation does not
	// allow; the plan must come back without it.
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"plan_research": `{
			"exa_query": {"query": "novel uses of Go", "num_results": 3},
			"arxiv_query": {"query": "golang", "top_k_results": 3}
		}`,
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.PlanSectionResearch)

	val, err := env.ExecuteActivity(a.PlanSectionResearch, PlanResearchInput{
		Query:     "q",
		QueryType: report.QueryIdea,
		Section:   report.Section{ID: "s1", Name: "Ideas", Research: true},
	})
	require.NoError(t, err)
	var res PlanResearchResult
	require.NoError(t, val.Get(&res))
	assert.NotNil(t, res.Queries.Exa)
	assert.Nil(t, res.Queries.Arxiv)
}

func TestPlanSectionResearchDegradesOnFailure(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{fail: map[string]bool{"plan_research": true}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.PlanSectionResearch)

	val, err := env.ExecuteActivity(a.PlanSectionResearch, PlanResearchInput{
		Query:     "q",
		QueryType: report.QueryFactual,
		Section:   report.Section{ID: "s1", Name: "N", Research: true},
	})
	require.NoError(t, err)
	var res PlanResearchResult
	require.NoError(t, val.Get(&res))
	assert.True(t, res.Queries.IsEmpty())
}

func TestExecuteSectionResearch(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{}, tools.Clients{Tavily: stubTavily{}})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ExecuteSectionResearch)

	val, err := env.ExecuteActivity(a.ExecuteSectionResearch, ExecuteResearchInput{
		QueryType: report.QueryFactual,
		Section:   report.Section{ID: "s1", Name: "Background", Research: true},
		Queries:   tools.QueryRecord{Tavily: &tools.TavilyQuery{Query: "q", MaxResults: 3}},
	})
	require.NoError(t, err)
	var res ExecuteResearchResult
	require.NoError(t, val.Get(&res))

	assert.Equal(t, "s1", res.SectionID)
	assert.Contains(t, res.Evidence, "TAVILY SEARCH:")
	require.NotNil(t, res.Reference)
	assert.Equal(t, []string{"https://tav.example/doc"}, res.Reference.SourceURLs)
	assert.Equal(t, "Background", res.Reference.SectionName)
}

func TestExecuteSectionResearchNoQueries(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ExecuteSectionResearch)

	val, err := env.ExecuteActivity(a.ExecuteSectionResearch, ExecuteResearchInput{
		QueryType: report.QueryFactual,
		Section:   report.Section{ID: "s1", Name: "N"},
	})
	require.NoError(t, err)
	var res ExecuteResearchResult
	require.NoError(t, val.Get(&res))
	assert.Empty(t, res.Evidence)
	assert.Nil(t, res.Reference, "no reference without sources")
}

func TestExecuteSectionResearchAllToolsFail(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{}, tools.Clients{
		Tavily: stubTavily{err: context.DeadlineExceeded},
	})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ExecuteSectionResearch)

	val, err := env.ExecuteActivity(a.ExecuteSectionResearch, ExecuteResearchInput{
		QueryType: report.QueryFactual,
		Section:   report.Section{ID: "s1", Name: "N", Research: true},
		Queries:   tools.QueryRecord{Tavily: &tools.TavilyQuery{Query: "q"}},
	})
	require.NoError(t, err, "tool failure degrades, never fails the activity")
	var res ExecuteResearchResult
	require.NoError(t, val.Get(&res))
	assert.Empty(t, res.Evidence)
	assert.Nil(t, res.Reference)
}

func TestComposeSection(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{responses: map[string]string{
		"write_section": "The Go runtime schedules goroutines across OS threads.",
	}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ComposeSection)

	val, err := env.ExecuteActivity(a.ComposeSection, ComposeSectionInput{
		Query:    "go runtime",
		Title:    "Go at Scale",
		Section:  report.Section{ID: "s1", Name: "Runtime"},
		Evidence: "TAVILY SEARCH: ...",
	})
	require.NoError(t, err)
	var res ComposeSectionResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "s1", res.Section.ID)
	assert.Contains(t, res.Section.Content, "goroutines")
}

func TestComposeSectionKeepsSectionOnFailure(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{fail: map[string]bool{"write_section": true}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ComposeSection)

	val, err := env.ExecuteActivity(a.ComposeSection, ComposeSectionInput{
		Query:   "q",
		Title:   "T",
		Section: report.Section{ID: "s1", Name: "Runtime", Description: "GC"},
	})
	require.NoError(t, err, "composition failure must not fail the run")
	var res ComposeSectionResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "s1", res.Section.ID)
	assert.Empty(t, res.Section.Content)
	assert.Zero(t, res.TokensUsed)
}

func TestComposeFramingFallsBackToDraft(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{fail: map[string]bool{"write_framing": true}}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.ComposeFraming)

	shell := report.Shell{
		Header:   report.Header{Title: "T", Summary: "drafted summary"},
		Sections: []report.Section{{ID: "s1", Name: "N", Content: "body"}},
	}
	val, err := env.ExecuteActivity(a.ComposeFraming, ComposeFramingInput{Query: "q", Shell: shell})
	require.NoError(t, err)
	var res ComposeFramingResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "drafted summary", res.Header.Summary)
}

func TestFormatReport(t *testing.T) {
	a := newTestActivities(t, &fakeGeneration{}, tools.Clients{})
	env := newActivityEnv(t)
	env.RegisterActivity(a.FormatReport)

	in := FormatReportInput{
		Shell: report.Shell{
			Header: report.Header{Title: "Go at Scale", Summary: "An overview."},
			Sections: []report.Section{
				{ID: "s1", Name: "Runtime", Content: "Runtime body."},
				{ID: "s2", Name: "Ecosystem", Content: "Ecosystem body."},
			},
			Footer: report.Footer{Conclusion: "Go holds up."},
		},
		References: []report.Reference{
			{SectionID: "s1", SectionName: "Runtime", SourceURLs: []string{"https://go.dev"}},
			{SectionID: "s2", SectionName: "Ecosystem"}, // no sources, omitted
		},
	}
	val, err := env.ExecuteActivity(a.FormatReport, in)
	require.NoError(t, err)
	var res FormatReportResult
	require.NoError(t, val.Get(&res))

	doc := res.Document
	assert.Contains(t, doc, "# Go at Scale\n")
	assert.Contains(t, doc, "## Runtime\n\nRuntime body.")
	assert.Contains(t, doc, "## Conclusion\n\nGo holds up.")
	assert.Contains(t, doc, "## References\n")
	assert.Contains(t, doc, "- https://go.dev")
	assert.NotContains(t, doc, "### Ecosystem\n\n\n", "sections without sources get no reference block")

	// Deterministic: same input, same document.
	val2, err := env.ExecuteActivity(a.FormatReport, in)
	require.NoError(t, err)
	var res2 FormatReportResult
	require.NoError(t, val2.Get(&res2))
	assert.Equal(t, doc, res2.Document)
}

func TestApprovalStore(t *testing.T) {
	s := NewApprovalStore(time.Hour)
	req := &ApprovalRequest{ApprovalID: "a1", RunID: "run-1", CreatedAt: time.Now()}
	s.Add(req)

	got, ok := s.Pending("a1")
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)

	byRun, ok := s.PendingForRun("run-1")
	require.True(t, ok)
	assert.Equal(t, "a1", byRun.ApprovalID)

	ok = s.Decide(&ApprovalDecision{ApprovalID: "a1", Approved: true})
	assert.True(t, ok)

	_, stillPending := s.Pending("a1")
	assert.False(t, stillPending)

	d, ok := s.Decision("a1")
	require.True(t, ok)
	assert.True(t, d.Approved)

	// Deciding a closed approval is rejected.
	assert.False(t, s.Decide(&ApprovalDecision{ApprovalID: "a1", Approved: false}))
	// Unknown approval likewise.
	assert.False(t, s.Decide(&ApprovalDecision{ApprovalID: "nope"}))
}
