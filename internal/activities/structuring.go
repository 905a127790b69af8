package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// ClassifyInput asks for the query's classification.
type ClassifyInput struct {
	Query string `json:"query"`
}

// ClassifyResult carries the chosen classification.
type ClassifyResult struct {
	QueryType  report.QueryType `json:"query_type"`
	TokensUsed int              `json:"tokens_used"`
}

// ClassifyQuery determines which of the closed query classifications the
// user's query falls into. Classification gates the tool allow-list for the
// whole run. A failed or unrecognized classification falls back to the
// factual default rather than failing the run.
func (a *Activities) ClassifyQuery(ctx context.Context, in ClassifyInput) (ClassifyResult, error) {
	logger := activity.GetLogger(ctx)

	var out struct {
		Classification string `json:"classification"`
	}
	resp, err := a.llm.GenerateStructured(ctx, llm.GenerateRequest{
		Operation: "classify",
		Prompt:    in.Query,
		Context: map[string]interface{}{
			"classifications": report.AllQueryTypes,
		},
	}, &out)
	if err != nil {
		logger.Warn("Classification failed, using default",
			"query", in.Query, "error", err)
		return ClassifyResult{QueryType: report.DefaultQueryType}, nil
	}

	qt := report.QueryType(strings.TrimSpace(out.Classification))
	if !qt.Valid() {
		logger.Warn("Unrecognized classification, using default",
			"classification", out.Classification)
		qt = report.DefaultQueryType
	}
	return ClassifyResult{QueryType: qt, TokensUsed: resp.TotalTokens()}, nil
}

// DraftShellInput asks for a fresh report structure. Feedback holds the
// reviewer comments from rejected drafts, oldest first; PriorTitle keeps the
// title stable across redrafts.
type DraftShellInput struct {
	Query      string           `json:"query"`
	QueryType  report.QueryType `json:"query_type"`
	Feedback   []string         `json:"feedback,omitempty"`
	PriorTitle string           `json:"prior_title,omitempty"`
}

// DraftShellResult carries the proposed structure.
type DraftShellResult struct {
	Shell      report.Shell `json:"shell"`
	TokensUsed int          `json:"tokens_used"`
}

// draftedSection is the generation-facing section shape. IDs are assigned
// here, never by the model.
type draftedSection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Research    bool   `json:"research"`
}

// DraftShell produces the report structure: title, section list, and footer
// placeholder. On a redraft the section list is replaced wholesale with
// fresh IDs; stale research or content keyed to old IDs can never leak into
// the new structure.
func (a *Activities) DraftShell(ctx context.Context, in DraftShellInput) (DraftShellResult, error) {
	logger := activity.GetLogger(ctx)

	var out struct {
		Title    string           `json:"title"`
		Summary  string           `json:"summary"`
		Sections []draftedSection `json:"sections"`
	}
	resp, err := a.llm.GenerateStructured(ctx, llm.GenerateRequest{
		Operation: "draft_shell",
		Prompt:    in.Query,
		Context: map[string]interface{}{
			"query_type":   in.QueryType,
			"max_sections": report.MaxSections,
			"feedback":     in.Feedback,
			"prior_title":  in.PriorTitle,
		},
	}, &out)
	if err != nil {
		// Drafting never aborts the run. An empty shell flows into the
		// approval loop, where the reviewer rejects it and a redraft gets
		// another attempt.
		logger.Warn("Shell drafting failed, substituting empty structure",
			"query", in.Query, "error", err)
		return DraftShellResult{Shell: report.Shell{
			Header: report.Header{Title: in.PriorTitle},
		}}, nil
	}

	title := strings.TrimSpace(out.Title)
	if in.PriorTitle != "" {
		title = in.PriorTitle
	}
	if title == "" {
		title = in.Query
	}

	if len(out.Sections) > report.MaxSections {
		logger.Warn("Draft exceeded section limit, truncating",
			"drafted", len(out.Sections), "max", report.MaxSections)
		out.Sections = out.Sections[:report.MaxSections]
	}

	sections := make([]report.Section, 0, len(out.Sections))
	for _, ds := range out.Sections {
		if strings.TrimSpace(ds.Name) == "" {
			continue
		}
		sections = append(sections, report.Section{
			ID:          uuid.New().String(),
			Name:        strings.TrimSpace(ds.Name),
			Description: strings.TrimSpace(ds.Description),
			Research:    ds.Research,
		})
	}
	if len(sections) == 0 {
		logger.Warn("Draft produced no usable sections", "query", in.Query)
	}

	shell := report.Shell{
		Header:   report.Header{Title: title, Summary: strings.TrimSpace(out.Summary)},
		Sections: sections,
	}
	if err := shell.Validate(); err != nil {
		return DraftShellResult{}, fmt.Errorf("drafted shell invalid: %w", err)
	}

	a.logger.Info("Drafted report shell",
		zap.String("title", title),
		zap.Int("sections", len(sections)),
		zap.Int("redraft_round", len(in.Feedback)),
	)
	return DraftShellResult{Shell: shell, TokensUsed: resp.TotalTokens()}, nil
}
