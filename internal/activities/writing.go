package activities

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// ComposeSectionInput expands one section into prose.
type ComposeSectionInput struct {
	Query    string         `json:"query"`
	Title    string         `json:"title"`
	Section  report.Section `json:"section"`
	Evidence string         `json:"evidence,omitempty"`
}

// ComposeSectionResult returns the section with content filled in.
type ComposeSectionResult struct {
	Section    report.Section `json:"section"`
	TokensUsed int            `json:"tokens_used"`
}

// ComposeSection writes the body of one section. Sections with evidence are
// grounded in it; sections without get a general-knowledge treatment, which
// also covers the case where every tool call failed.
func (a *Activities) ComposeSection(ctx context.Context, in ComposeSectionInput) (ComposeSectionResult, error) {
	logger := activity.GetLogger(ctx)

	mode := "evidence"
	if strings.TrimSpace(in.Evidence) == "" {
		mode = "general_knowledge"
	}

	resp, err := a.llm.Generate(ctx, llm.GenerateRequest{
		Operation: "write_section",
		Prompt:    in.Query,
		Context: map[string]interface{}{
			"report_title":        in.Title,
			"section_name":        in.Section.Name,
			"section_description": in.Section.Description,
			"evidence":            in.Evidence,
			"mode":                mode,
		},
	})
	if err != nil {
		// One unwritable section must not sink the whole report; the
		// drafted section stands with its description as the only body.
		logger.Warn("Section composition failed, keeping drafted section",
			"section_id", in.Section.ID, "error", err)
		return ComposeSectionResult{Section: in.Section}, nil
	}

	out := in.Section
	out.Content = strings.TrimSpace(resp.Text)
	return ComposeSectionResult{Section: out, TokensUsed: resp.TotalTokens()}, nil
}

// ComposeFramingInput regenerates the summary and conclusion once all
// section bodies exist.
type ComposeFramingInput struct {
	Query string       `json:"query"`
	Shell report.Shell `json:"shell"`
}

// ComposeFramingResult carries the finished header and footer.
type ComposeFramingResult struct {
	Header     report.Header `json:"header"`
	Footer     report.Footer `json:"footer"`
	TokensUsed int           `json:"tokens_used"`
}

// ComposeFraming writes the summary and conclusion against the completed
// section bodies, so both reflect what the report actually says rather than
// what the structure promised.
func (a *Activities) ComposeFraming(ctx context.Context, in ComposeFramingInput) (ComposeFramingResult, error) {
	logger := activity.GetLogger(ctx)

	sections := make([]map[string]string, 0, len(in.Shell.Sections))
	for _, sec := range in.Shell.Sections {
		sections = append(sections, map[string]string{
			"name":    sec.Name,
			"content": sec.Content,
		})
	}

	var out struct {
		Summary    string `json:"summary"`
		Conclusion string `json:"conclusion"`
	}
	resp, err := a.llm.GenerateStructured(ctx, llm.GenerateRequest{
		Operation: "write_framing",
		Prompt:    in.Query,
		Context: map[string]interface{}{
			"title":    in.Shell.Header.Title,
			"sections": sections,
		},
	}, &out)
	if err != nil {
		// The shell's drafted summary still stands; losing the polished
		// framing is not worth failing a finished report over.
		logger.Warn("Framing generation failed, keeping drafted header", "error", err)
		return ComposeFramingResult{Header: in.Shell.Header, Footer: in.Shell.Footer}, nil
	}

	header := in.Shell.Header
	if s := strings.TrimSpace(out.Summary); s != "" {
		header.Summary = s
	}
	footer := report.Footer{Conclusion: strings.TrimSpace(out.Conclusion)}
	return ComposeFramingResult{Header: header, Footer: footer, TokensUsed: resp.TotalTokens()}, nil
}

// FormatReportInput assembles the final document.
type FormatReportInput struct {
	Shell      report.Shell       `json:"shell"`
	References []report.Reference `json:"references"`
}

// FormatReportResult is the rendered markdown document.
type FormatReportResult struct {
	Document string `json:"document"`
}

// FormatReport renders the approved structure, written sections, and
// accumulated references into the final markdown document. Formatting is
// pure and deterministic; it never calls the generation service.
func (a *Activities) FormatReport(ctx context.Context, in FormatReportInput) (FormatReportResult, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", in.Shell.Header.Title)
	if in.Shell.Header.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", in.Shell.Header.Summary)
	}

	for _, sec := range in.Shell.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Name)
		if sec.Content != "" {
			fmt.Fprintf(&b, "%s\n\n", sec.Content)
		}
	}

	if in.Shell.Footer.Conclusion != "" {
		b.WriteString("## Conclusion\n\n")
		fmt.Fprintf(&b, "%s\n\n", in.Shell.Footer.Conclusion)
	}

	if refs := nonEmptyReferences(in.References); len(refs) > 0 {
		b.WriteString("## References\n\n")
		for _, ref := range refs {
			fmt.Fprintf(&b, "### %s\n\n", ref.SectionName)
			for _, u := range ref.SourceURLs {
				fmt.Fprintf(&b, "- %s\n", u)
			}
			b.WriteString("\n")
		}
	}

	return FormatReportResult{Document: strings.TrimRight(b.String(), "\n") + "\n"}, nil
}

func nonEmptyReferences(refs []report.Reference) []report.Reference {
	out := make([]report.Reference, 0, len(refs))
	for _, r := range refs {
		if len(r.SourceURLs) > 0 {
			out = append(out, r)
		}
	}
	return out
}
