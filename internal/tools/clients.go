package tools

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Per-capability collaborator interfaces. The dispatcher depends on these,
// not on the HTTP implementations, so tests can substitute fakes.
type DuckDuckGoSearcher interface {
	Search(ctx context.Context, q DuckDuckGoQuery) ([]SearchResult, error)
}

type ExaSearcher interface {
	Search(ctx context.Context, q ExaQuery) ([]ExaResult, error)
}

type SerperSearcher interface {
	Search(ctx context.Context, q SerperQuery) (*SerperOutput, error)
}

type TavilySearcher interface {
	Search(ctx context.Context, q TavilyQuery) (*TavilyOutput, error)
}

type ArxivSearcher interface {
	Search(ctx context.Context, q ArxivQuery) (*ArxivOutput, error)
}

type GitHubInspector interface {
	UserByName(ctx context.Context, q GitHubUserQuery) (*GitHubUserOutput, error)
	RepoByName(ctx context.Context, q GitHubRepoQuery) (*GitHubRepoOutput, error)
	OrgByName(ctx context.Context, q GitHubOrgQuery) (*GitHubOrgOutput, error)
	ReposByLanguage(ctx context.Context, q GitHubLanguageQuery) (*GitHubLanguageOutput, error)
}

// Clients bundles one collaborator per external lookup capability.
type Clients struct {
	DuckDuckGo DuckDuckGoSearcher
	Exa        ExaSearcher
	Serper     SerperSearcher
	Tavily     TavilySearcher
	Arxiv      ArxivSearcher
	GitHub     GitHubInspector
}

// Credentials carries per-tool API keys. It is built from the service config
// at startup and threaded in explicitly; there is no process-global
// credential state.
type Credentials struct {
	SerperAPIKey string
	TavilyAPIKey string
	ExaAPIKey    string
	GitHubToken  string
}

// NewClients wires the production HTTP clients. Every client carries its own
// request timeout and shares the tool's process-wide rate limiter.
func NewClients(creds Credentials, timeout time.Duration, logger *zap.Logger) Clients {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return Clients{
		DuckDuckGo: NewDuckDuckGoClient(httpClient, logger),
		Exa:        NewExaClient(httpClient, creds.ExaAPIKey, logger),
		Serper:     NewSerperClient(httpClient, creds.SerperAPIKey, logger),
		Tavily:     NewTavilyClient(httpClient, creds.TavilyAPIKey, logger),
		Arxiv:      NewArxivClient(httpClient, logger),
		GitHub:     NewGitHubClient(httpClient, creds.GitHubToken, logger),
	}
}
