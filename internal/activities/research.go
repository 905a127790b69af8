package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/report"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
)

// PlanResearchInput asks for tool queries for one section.
type PlanResearchInput struct {
	Query     string           `json:"query"`
	QueryType report.QueryType `json:"query_type"`
	Section   report.Section   `json:"section"`
}

// PlanResearchResult carries the planned queries.
type PlanResearchResult struct {
	Queries    tools.QueryRecord `json:"queries"`
	TokensUsed int               `json:"tokens_used"`
}

// PlanSectionResearch asks the model which lookups would ground this
// section, constrained to the classification's allow-list. A planning
// failure degrades to an empty record: the section is then written from
// general knowledge instead of failing the run.
func (a *Activities) PlanSectionResearch(ctx context.Context, in PlanResearchInput) (PlanResearchResult, error) {
	logger := activity.GetLogger(ctx)

	var queries tools.QueryRecord
	resp, err := a.llm.GenerateStructured(ctx, llm.GenerateRequest{
		Operation: "plan_research",
		Prompt:    in.Query,
		Context: map[string]interface{}{
			"query_type":          in.QueryType,
			"section_name":        in.Section.Name,
			"section_description": in.Section.Description,
			"allowed_tools":       tools.AllowedTools(in.QueryType),
		},
	}, &queries)
	if err != nil {
		logger.Warn("Research planning failed, section proceeds without evidence",
			"section_id", in.Section.ID, "error", err)
		return PlanResearchResult{}, nil
	}

	// The model is told the allow-list, but the record is restricted here
	// as well so a misbehaving generation cannot widen the tool surface.
	queries = tools.Restrict(in.QueryType, queries)
	return PlanResearchResult{Queries: queries, TokensUsed: resp.TotalTokens()}, nil
}

// ExecuteResearchInput runs the planned lookups for one section.
type ExecuteResearchInput struct {
	QueryType report.QueryType  `json:"query_type"`
	Section   report.Section    `json:"section"`
	Queries   tools.QueryRecord `json:"queries"`
}

// ExecuteResearchResult is the section's normalized evidence. Reference is
// nil when no tool produced a citable source.
type ExecuteResearchResult struct {
	SectionID string            `json:"section_id"`
	Evidence  string            `json:"evidence"`
	Reference *report.Reference `json:"reference,omitempty"`
}

// ExecuteSectionResearch dispatches the planned queries concurrently and
// rolls the surviving outputs into one deterministic evidence block. Failed
// tools degrade to absent output; the activity itself only fails on a
// non-retryable programming error.
func (a *Activities) ExecuteSectionResearch(ctx context.Context, in ExecuteResearchInput) (ExecuteResearchResult, error) {
	logger := activity.GetLogger(ctx)

	if in.Section.ID == "" {
		return ExecuteResearchResult{}, fmt.Errorf("section id is required")
	}

	result := ExecuteResearchResult{SectionID: in.Section.ID}
	if in.Queries.IsEmpty() {
		logger.Info("No research planned for section", "section_id", in.Section.ID)
		return result, nil
	}

	outputs := a.dispatcher.Dispatch(ctx, in.QueryType, in.Queries)
	evidence, urls := tools.Normalize(outputs)
	result.Evidence = evidence
	if len(urls) > 0 {
		result.Reference = &report.Reference{
			SectionID:   in.Section.ID,
			SectionName: in.Section.Name,
			SourceURLs:  urls,
		}
	}

	logger.Info("Section research complete",
		"section_id", in.Section.ID,
		"tools_requested", len(in.Queries.Requested()),
		"evidence_chars", len(evidence),
		"source_urls", len(urls),
	)
	return result, nil
}
