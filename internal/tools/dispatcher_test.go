package tools

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// recordingClients records which tools were invoked and returns canned
// results (or an error for tools listed in fail).
type recordingClients struct {
	mu      sync.Mutex
	invoked []Name
	fail    map[Name]bool
}

func (r *recordingClients) record(n Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoked = append(r.invoked, n)
	if r.fail[n] {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingClients) invokedSet() map[Name]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Name]bool, len(r.invoked))
	for _, n := range r.invoked {
		out[n] = true
	}
	return out
}

func (r *recordingClients) Search(ctx context.Context, q DuckDuckGoQuery) ([]SearchResult, error) {
	if err := r.record(ToolDuckDuckGo); err != nil {
		return nil, err
	}
	return []SearchResult{{Title: "duck", Link: "https://duck.example", Snippet: "s"}}, nil
}

type exaStub struct{ r *recordingClients }

func (s exaStub) Search(ctx context.Context, q ExaQuery) ([]ExaResult, error) {
	if err := s.r.record(ToolExa); err != nil {
		return nil, err
	}
	return []ExaResult{{URL: "https://exa.example", Highlights: []string{"h"}}}, nil
}

type serperStub struct{ r *recordingClients }

func (s serperStub) Search(ctx context.Context, q SerperQuery) (*SerperOutput, error) {
	if err := s.r.record(ToolSerper); err != nil {
		return nil, err
	}
	return &SerperOutput{OrganicResults: []SearchResult{{Title: "serp", Link: "https://serp.example"}}}, nil
}

type tavilyStub struct{ r *recordingClients }

func (s tavilyStub) Search(ctx context.Context, q TavilyQuery) (*TavilyOutput, error) {
	if err := s.r.record(ToolTavily); err != nil {
		return nil, err
	}
	return &TavilyOutput{Results: []TavilyItem{{Title: "tav", URL: "https://tav.example"}}}, nil
}

type arxivStub struct{ r *recordingClients }

func (s arxivStub) Search(ctx context.Context, q ArxivQuery) (*ArxivOutput, error) {
	if err := s.r.record(ToolArxiv); err != nil {
		return nil, err
	}
	return &ArxivOutput{Results: []ArxivDoc{{Title: "paper"}}}, nil
}

type githubStub struct{ r *recordingClients }

func (s githubStub) UserByName(ctx context.Context, q GitHubUserQuery) (*GitHubUserOutput, error) {
	if err := s.r.record(ToolGitHubUser); err != nil {
		return nil, err
	}
	return &GitHubUserOutput{Login: q.Username}, nil
}

func (s githubStub) RepoByName(ctx context.Context, q GitHubRepoQuery) (*GitHubRepoOutput, error) {
	if err := s.r.record(ToolGitHubRepo); err != nil {
		return nil, err
	}
	return &GitHubRepoOutput{FullName: q.FullName}, nil
}

func (s githubStub) OrgByName(ctx context.Context, q GitHubOrgQuery) (*GitHubOrgOutput, error) {
	if err := s.r.record(ToolGitHubOrg); err != nil {
		return nil, err
	}
	return &GitHubOrgOutput{Login: q.OrgName}, nil
}

func (s githubStub) ReposByLanguage(ctx context.Context, q GitHubLanguageQuery) (*GitHubLanguageOutput, error) {
	if err := s.r.record(ToolGitHubLanguage); err != nil {
		return nil, err
	}
	return &GitHubLanguageOutput{Results: []GitHubLanguageItem{{Name: "repo", URL: "https://github.com/x/repo"}}}, nil
}

func newTestDispatcher(r *recordingClients) *Dispatcher {
	clients := Clients{
		DuckDuckGo: r,
		Exa:        exaStub{r},
		Serper:     serperStub{r},
		Tavily:     tavilyStub{r},
		Arxiv:      arxivStub{r},
		GitHub:     githubStub{r},
	}
	return NewDispatcher(clients, 0, zap.NewNop())
}

func fullQueryRecord() QueryRecord {
	return QueryRecord{
		DuckDuckGo:     &DuckDuckGoQuery{Query: "q", MaxResults: 3},
		Exa:            &ExaQuery{Query: "q", NumResults: 3},
		Serper:         &SerperQuery{Query: "q", NumResults: 3},
		Tavily:         &TavilyQuery{Query: "q", MaxResults: 3},
		Arxiv:          &ArxivQuery{Query: "q", TopK: 3},
		GitHubUser:     &GitHubUserQuery{Username: "torvalds"},
		GitHubRepo:     &GitHubRepoQuery{FullName: "torvalds/linux"},
		GitHubOrg:      &GitHubOrgQuery{OrgName: "golang"},
		GitHubLanguage: &GitHubLanguageQuery{Language: "go"},
	}
}

func TestDispatchRespectsAllowListForAllClassifications(t *testing.T) {
	// Property: whatever payloads arrive, the set of tools actually invoked
	// is a subset of the classification's allow-list.
	rng := rand.New(rand.NewSource(42))

	for _, qt := range report.AllQueryTypes {
		allowed := make(map[Name]bool)
		for _, n := range AllowedTools(qt) {
			allowed[n] = true
		}

		for i := 0; i < 50; i++ {
			rec := fullQueryRecord()
			// Randomly drop payloads to vary the record shape.
			if rng.Intn(2) == 0 {
				rec.DuckDuckGo = nil
			}
			if rng.Intn(2) == 0 {
				rec.Serper = nil
			}
			if rng.Intn(2) == 0 {
				rec.Exa = nil
			}
			if rng.Intn(2) == 0 {
				rec.Arxiv = nil
			}
			if rng.Intn(2) == 0 {
				rec.GitHubRepo = nil
			}

			r := &recordingClients{}
			d := newTestDispatcher(r)
			d.Dispatch(context.Background(), qt, rec)

			for tool := range r.invokedSet() {
				assert.True(t, allowed[tool],
					"classification %s invoked disallowed tool %s", qt, tool)
			}
		}
	}
}

func TestDispatchIgnoresDisallowedPayload(t *testing.T) {
	r := &recordingClients{}
	d := newTestDispatcher(r)

	// Idea generation allows only exa and duckduckgo; the github payload
	// must be dropped even though it is present.
	rec := QueryRecord{
		Exa:        &ExaQuery{Query: "q"},
		GitHubRepo: &GitHubRepoQuery{FullName: "torvalds/linux"},
	}
	out := d.Dispatch(context.Background(), report.QueryIdea, rec)

	invoked := r.invokedSet()
	assert.True(t, invoked[ToolExa])
	assert.False(t, invoked[ToolGitHubRepo])
	assert.Nil(t, out.GitHubRepo)
	assert.NotNil(t, out.Exa)
}

func TestDispatchDegradesFailedTool(t *testing.T) {
	r := &recordingClients{fail: map[Name]bool{ToolTavily: true}}
	d := newTestDispatcher(r)

	rec := QueryRecord{
		Tavily:     &TavilyQuery{Query: "q"},
		DuckDuckGo: &DuckDuckGoQuery{Query: "q"},
	}
	out := d.Dispatch(context.Background(), report.QueryFactual, rec)

	assert.Nil(t, out.Tavily, "failed tool must contribute no output")
	require.NotNil(t, out.DuckDuckGo, "surviving tool output must be kept")
	assert.Equal(t, "duck", out.DuckDuckGo[0].Title)
}

func TestDispatchAllToolsFail(t *testing.T) {
	r := &recordingClients{fail: map[Name]bool{
		ToolTavily: true, ToolDuckDuckGo: true, ToolExa: true,
	}}
	d := newTestDispatcher(r)

	rec := QueryRecord{
		Tavily:     &TavilyQuery{Query: "q"},
		DuckDuckGo: &DuckDuckGoQuery{Query: "q"},
		Exa:        &ExaQuery{Query: "q"},
	}
	out := d.Dispatch(context.Background(), report.QueryFactual, rec)
	assert.True(t, out.IsEmpty())
}

func TestQueryRecordRequested(t *testing.T) {
	rec := QueryRecord{
		Tavily: &TavilyQuery{Query: "q"},
		Exa:    &ExaQuery{Query: "q"},
	}
	assert.Equal(t, []Name{ToolExa, ToolTavily}, rec.Requested())
	assert.True(t, QueryRecord{}.IsEmpty())
	assert.False(t, rec.IsEmpty())
}
