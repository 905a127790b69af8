package tools

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/metrics"
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// Dispatcher fans one section's query record out to the eligible tools and
// gathers results into a single output record. A failing or timed-out tool
// degrades to an absent output; it never fails the section.
type Dispatcher struct {
	clients     Clients
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewDispatcher wires a dispatcher around the given collaborators.
// callTimeout bounds each individual tool call.
func NewDispatcher(clients Clients, callTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = 20 * time.Second
	}
	return &Dispatcher{clients: clients, callTimeout: callTimeout, logger: logger}
}

// Dispatch executes all eligible tool calls for one section concurrently.
// Payloads for tools outside the classification's allow-list are ignored.
// Each tool writes exactly one field of the output record, so no further
// synchronization is needed beyond the join.
func (d *Dispatcher) Dispatch(ctx context.Context, qt report.QueryType, queries QueryRecord) OutputRecord {
	queries = Restrict(qt, queries)

	var out OutputRecord
	var wg sync.WaitGroup

	run := func(tool Name, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
			defer cancel()

			start := time.Now()
			err := fn(callCtx)
			metrics.ToolCallDuration.WithLabelValues(string(tool)).Observe(float64(time.Since(start).Milliseconds()))
			if err != nil {
				metrics.ToolCalls.WithLabelValues(string(tool), "error").Inc()
				d.logger.Warn("tool call failed, continuing without its output",
					zap.String("tool", string(tool)),
					zap.Error(err),
				)
				return
			}
			metrics.ToolCalls.WithLabelValues(string(tool), "ok").Inc()
		}()
	}

	if q := queries.DuckDuckGo; q != nil {
		run(ToolDuckDuckGo, func(ctx context.Context) error {
			res, err := d.clients.DuckDuckGo.Search(ctx, *q)
			if err != nil {
				return err
			}
			out.DuckDuckGo = res
			return nil
		})
	}
	if q := queries.Exa; q != nil {
		run(ToolExa, func(ctx context.Context) error {
			res, err := d.clients.Exa.Search(ctx, *q)
			if err != nil {
				return err
			}
			out.Exa = res
			return nil
		})
	}
	if q := queries.Serper; q != nil {
		run(ToolSerper, func(ctx context.Context) error {
			res, err := d.clients.Serper.Search(ctx, *q)
			if err != nil {
				return err
			}
			out.Serper = res
			return nil
		})
	}
	if q := queries.GitHubUser; q != nil {
		run(ToolGitHubUser, func(ctx context.Context) error {
			res, err := d.clients.GitHub.UserByName(ctx, *q)
			if err != nil {
				return err
			}
			out.GitHubUser = res
			return nil
		})
	}
	if q := queries.GitHubRepo; q != nil {
		run(ToolGitHubRepo, func(ctx context.Context) error {
			res, err := d.clients.GitHub.RepoByName(ctx, *q)
			if err != nil {
				return err
			}
			out.GitHubRepo = res
			return nil
		})
	}
	if q := queries.GitHubOrg; q != nil {
		run(ToolGitHubOrg, func(ctx context.Context) error {
			res, err := d.clients.GitHub.OrgByName(ctx, *q)
			if err != nil {
				return err
			}
			out.GitHubOrg = res
			return nil
		})
	}
	if q := queries.GitHubLanguage; q != nil {
		run(ToolGitHubLanguage, func(ctx context.Context) error {
			res, err := d.clients.GitHub.ReposByLanguage(ctx, *q)
			if err != nil {
				return err
			}
			out.GitHubLanguage = res
			return nil
		})
	}
	if q := queries.Arxiv; q != nil {
		run(ToolArxiv, func(ctx context.Context) error {
			res, err := d.clients.Arxiv.Search(ctx, *q)
			if err != nil {
				return err
			}
			out.Arxiv = res
			return nil
		})
	}
	if q := queries.Tavily; q != nil {
		run(ToolTavily, func(ctx context.Context) error {
			res, err := d.clients.Tavily.Search(ctx, *q)
			if err != nil {
				return err
			}
			out.Tavily = res
			return nil
		})
	}

	wg.Wait()
	return out
}
