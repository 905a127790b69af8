package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/draftsmith-ai/draftsmith/internal/activities"
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// Activity names, matching the method names on activities.Activities.
const (
	activityClassifyQuery          = "ClassifyQuery"
	activityDraftShell             = "DraftShell"
	activityRequestApproval        = "RequestApproval"
	activityPlanSectionResearch    = "PlanSectionResearch"
	activityExecuteSectionResearch = "ExecuteSectionResearch"
	activityComposeSection         = "ComposeSection"
	activityComposeFraming         = "ComposeFraming"
	activityFormatReport           = "FormatReport"
	activityEmitRunUpdate          = "EmitRunUpdate"
	activityPersistReport          = "PersistReport"
	activityRecordRunResult        = "RecordRunResult"
)

const (
	defaultMaxRedrafts     = 3
	defaultApprovalTimeout = 30 * time.Minute
)

// ReportWorkflow drives one report run through structuring, research, and
// writing. Structure approval blocks on a human signal unless the run was
// submitted with AutoApprove; research and writing fan out per section and
// join on section IDs fixed at structuring time.
func ReportWorkflow(ctx workflow.Context, input ReportInput) (ReportResult, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("Starting report workflow",
		"run_id", runID,
		"query", input.Query,
		"session_id", input.SessionID,
	)

	maxRedrafts := input.MaxRedrafts
	if maxRedrafts <= 0 {
		maxRedrafts = defaultMaxRedrafts
	}
	approvalTimeout := defaultApprovalTimeout
	if input.ApprovalTimeoutSeconds > 0 {
		approvalTimeout = time.Duration(input.ApprovalTimeoutSeconds) * time.Second
	}

	progress := Progress{Status: StatusRunning, Phase: activities.PhaseStructuring}
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return ReportResult{}, fmt.Errorf("register progress query: %w", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	result := ReportResult{Status: StatusRunning}
	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType: activities.RunEventStarted,
		Message:   input.Query,
	})

	// Structuring: classify once, then draft until approved or out of rounds.
	var classify activities.ClassifyResult
	if err := workflow.ExecuteActivity(ctx, activityClassifyQuery, activities.ClassifyInput{
		Query: input.Query,
	}).Get(ctx, &classify); err != nil {
		return finish(ctx, input, fail(result, "classify query: "+err.Error())), err
	}
	result.QueryType = classify.QueryType
	result.TokensUsed += classify.TokensUsed

	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType: activities.RunEventPhaseStarted,
		Phase:     activities.PhaseStructuring,
		Message:   string(classify.QueryType),
	})

	var shell report.Shell
	var feedback []string
	approved := false

	phaseStart := workflow.Now(ctx)
	for round := 0; round <= maxRedrafts; round++ {
		progress.Round = round
		result.Redrafts = round

		var draft activities.DraftShellResult
		if err := workflow.ExecuteActivity(ctx, activityDraftShell, activities.DraftShellInput{
			Query:      input.Query,
			QueryType:  classify.QueryType,
			Feedback:   feedback,
			PriorTitle: shell.Header.Title,
		}).Get(ctx, &draft); err != nil {
			return finish(ctx, input, fail(result, "draft structure: "+err.Error())), err
		}
		result.TokensUsed += draft.TokensUsed

		// Downstream phases join on section IDs; a structurally invalid
		// shell would corrupt the report, so it ends the run outright.
		if err := draft.Shell.Validate(); err != nil {
			terminal := temporal.NewNonRetryableApplicationError(
				"report structure is invalid", "InvalidStructure", err)
			return finish(ctx, input, fail(result, err.Error())), terminal
		}

		shell = draft.Shell
		result.Title = shell.Header.Title
		progress.SectionsTotal = len(shell.Sections)

		if input.AutoApprove {
			approved = true
			break
		}

		decision, err := requestDecision(ctx, input, shell, round, approvalTimeout, &progress)
		if err != nil {
			return finish(ctx, input, fail(result, err.Error())), err
		}
		if decision.Approved {
			approved = true
			break
		}
		if decision.Feedback == "" {
			decision.Feedback = "structure rejected without feedback"
		}
		feedback = append(feedback, decision.Feedback)
		logger.Info("Structure rejected, redrafting",
			"round", round, "feedback", decision.Feedback)
	}

	if !approved {
		msg := fmt.Sprintf("structure rejected %d times, giving up", maxRedrafts+1)
		terminal := temporal.NewNonRetryableApplicationError(msg, "ApprovalExhausted", nil)
		return finish(ctx, input, fail(result, msg)), terminal
	}

	// Research: plan and execute per research-flagged section, concurrently.
	progress.Phase = activities.PhaseResearch
	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType:      activities.RunEventPhaseStarted,
		Phase:          activities.PhaseResearch,
		CompletedPhase: activities.PhaseStructuring,
		PhaseSeconds:   workflow.Now(ctx).Sub(phaseStart).Seconds(),
	})
	phaseStart = workflow.Now(ctx)

	evidence := make(map[string]string, len(shell.Sections))
	var references []report.Reference

	researchSections := shell.ResearchSections()
	planFutures := make([]workflow.Future, len(researchSections))
	for i, sec := range researchSections {
		planFutures[i] = workflow.ExecuteActivity(ctx, activityPlanSectionResearch, activities.PlanResearchInput{
			Query:     input.Query,
			QueryType: classify.QueryType,
			Section:   sec,
		})
	}
	plans := make([]activities.PlanResearchResult, len(researchSections))
	for i, f := range planFutures {
		if err := f.Get(ctx, &plans[i]); err != nil {
			return finish(ctx, input, fail(result, "plan research: "+err.Error())), err
		}
		result.TokensUsed += plans[i].TokensUsed
	}

	execFutures := make([]workflow.Future, len(researchSections))
	for i, sec := range researchSections {
		execFutures[i] = workflow.ExecuteActivity(ctx, activityExecuteSectionResearch, activities.ExecuteResearchInput{
			QueryType: classify.QueryType,
			Section:   sec,
			Queries:   plans[i].Queries,
		})
	}
	for i, f := range execFutures {
		var res activities.ExecuteResearchResult
		if err := f.Get(ctx, &res); err != nil {
			return finish(ctx, input, fail(result, "execute research: "+err.Error())), err
		}
		evidence[res.SectionID] = res.Evidence
		if res.Reference != nil {
			references = append(references, *res.Reference)
		}
		progress.SectionsResearched++
		emit(ctx, runID, activities.EmitRunUpdateInput{
			EventType: activities.RunEventSectionResearched,
			Phase:     activities.PhaseResearch,
			SectionID: researchSections[i].ID,
		})
	}
	result.References = references

	// Writing: expand every section, then regenerate the framing.
	progress.Phase = activities.PhaseWriting
	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType:      activities.RunEventPhaseStarted,
		Phase:          activities.PhaseWriting,
		CompletedPhase: activities.PhaseResearch,
		PhaseSeconds:   workflow.Now(ctx).Sub(phaseStart).Seconds(),
	})
	phaseStart = workflow.Now(ctx)

	writeFutures := make([]workflow.Future, len(shell.Sections))
	for i, sec := range shell.Sections {
		writeFutures[i] = workflow.ExecuteActivity(ctx, activityComposeSection, activities.ComposeSectionInput{
			Query:    input.Query,
			Title:    shell.Header.Title,
			Section:  sec,
			Evidence: evidence[sec.ID],
		})
	}
	sections := shell.Sections
	for _, f := range writeFutures {
		var res activities.ComposeSectionResult
		if err := f.Get(ctx, &res); err != nil {
			return finish(ctx, input, fail(result, "write section: "+err.Error())), err
		}
		result.TokensUsed += res.TokensUsed
		sections = report.ReplaceSection(sections, res.Section)
		progress.SectionsWritten++
		emit(ctx, runID, activities.EmitRunUpdateInput{
			EventType: activities.RunEventSectionWritten,
			Phase:     activities.PhaseWriting,
			SectionID: res.Section.ID,
		})
	}
	shell.Sections = sections

	var framing activities.ComposeFramingResult
	if err := workflow.ExecuteActivity(ctx, activityComposeFraming, activities.ComposeFramingInput{
		Query: input.Query,
		Shell: shell,
	}).Get(ctx, &framing); err != nil {
		return finish(ctx, input, fail(result, "write framing: "+err.Error())), err
	}
	result.TokensUsed += framing.TokensUsed
	shell.Header = framing.Header
	shell.Footer = framing.Footer
	result.Title = shell.Header.Title

	var formatted activities.FormatReportResult
	if err := workflow.ExecuteActivity(ctx, activityFormatReport, activities.FormatReportInput{
		Shell:      shell,
		References: references,
	}).Get(ctx, &formatted); err != nil {
		return finish(ctx, input, fail(result, "format report: "+err.Error())), err
	}
	result.Document = formatted.Document
	result.Status = StatusCompleted
	progress.Status = StatusCompleted

	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType:      activities.RunEventProgress,
		Phase:          activities.PhaseWriting,
		CompletedPhase: activities.PhaseWriting,
		PhaseSeconds:   workflow.Now(ctx).Sub(phaseStart).Seconds(),
	})

	return finish(ctx, input, result), nil
}

// requestDecision opens an approval and waits for the matching signal or the
// timeout. Timeout is terminal: with no reviewer responding, redrafting
// cannot help.
func requestDecision(ctx workflow.Context, input ReportInput, shell report.Shell, round int, timeout time.Duration, progress *Progress) (activities.ApprovalDecision, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID

	var req activities.RequestApprovalResult
	if err := workflow.ExecuteActivity(ctx, activityRequestApproval, activities.RequestApprovalInput{
		RunID:     runID,
		SessionID: input.SessionID,
		Query:     input.Query,
		Shell:     shell,
		Round:     round,
	}).Get(ctx, &req); err != nil {
		return activities.ApprovalDecision{}, fmt.Errorf("request approval: %w", err)
	}
	progress.PendingApprovalID = req.ApprovalID

	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType: activities.RunEventApprovalRequested,
		Phase:     activities.PhaseStructuring,
		Message:   req.ApprovalID,
	})
	logger.Info("Waiting for structure approval",
		"approval_id", req.ApprovalID, "round", round)

	var decision activities.ApprovalDecision
	timedOut := false

	sel := workflow.NewSelector(ctx)
	ch := workflow.GetSignalChannel(ctx, ApprovalSignalName(req.ApprovalID))
	timer := workflow.NewTimer(ctx, timeout)
	sel.AddReceive(ch, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &decision)
	})
	sel.AddFuture(timer, func(f workflow.Future) {
		timedOut = true
	})
	sel.Select(ctx)
	progress.PendingApprovalID = ""

	// Cancellation also fires the timer future; report it as a
	// cancellation, not a reviewer timeout.
	if ctx.Err() != nil {
		return activities.ApprovalDecision{}, temporal.NewCanceledError("run cancelled while awaiting approval")
	}
	if timedOut {
		logger.Warn("Approval timed out", "approval_id", req.ApprovalID)
		return activities.ApprovalDecision{}, errors.New("structure approval timed out")
	}

	verdict := "rejected"
	if decision.Approved {
		verdict = "approved"
	}
	emit(ctx, runID, activities.EmitRunUpdateInput{
		EventType: activities.RunEventApprovalDecision,
		Phase:     activities.PhaseStructuring,
		Message:   verdict,
	})
	return decision, nil
}

// emit publishes a progress event without retries; a lost event never
// affects the run.
func emit(ctx workflow.Context, runID string, in activities.EmitRunUpdateInput) {
	in.RunID = runID
	in.Timestamp = workflow.Now(ctx)
	emitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	_ = workflow.ExecuteActivity(emitCtx, activityEmitRunUpdate, in).Get(emitCtx, nil)
}

func fail(result ReportResult, msg string) ReportResult {
	result.Status = StatusFailed
	result.ErrorMessage = msg
	return result
}

// finish runs the terminal bookkeeping on a disconnected context so archive,
// session rollup, and the final event still happen when the run was
// cancelled or failed.
func finish(ctx workflow.Context, input ReportInput, result ReportResult) ReportResult {
	if result.Status == StatusRunning {
		result.Status = StatusFailed
	}
	if ctx.Err() != nil && result.Status != StatusCompleted {
		result.Status = StatusCancelled
	}

	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	_ = workflow.ExecuteActivity(dctx, activityPersistReport, activities.PersistReportInput{
		RunID:       runID,
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Query:       input.Query,
		QueryType:   result.QueryType,
		Title:       result.Title,
		Document:    result.Document,
		References:  result.References,
		Status:      result.Status,
		TokensUsed:  result.TokensUsed,
		ErrorDetail: result.ErrorMessage,
	}).Get(dctx, nil)

	_ = workflow.ExecuteActivity(dctx, activityRecordRunResult, activities.RecordRunResultInput{
		SessionID:       input.SessionID,
		RunID:           runID,
		Query:           input.Query,
		Title:           result.Title,
		Status:          result.Status,
		TokensUsed:      result.TokensUsed,
		Redrafts:        result.Redrafts,
		DurationSeconds: workflow.Now(dctx).Sub(workflow.GetInfo(ctx).WorkflowStartTime).Seconds(),
	}).Get(dctx, nil)

	eventType := activities.RunEventCompleted
	switch result.Status {
	case StatusFailed:
		eventType = activities.RunEventFailed
	case StatusCancelled:
		eventType = activities.RunEventCancelled
	}
	emitIn := activities.EmitRunUpdateInput{
		RunID:     runID,
		EventType: eventType,
		Message:   result.ErrorMessage,
		Timestamp: workflow.Now(dctx),
	}
	emitDctx := workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	_ = workflow.ExecuteActivity(emitDctx, activityEmitRunUpdate, emitIn).Get(emitDctx, nil)

	return result
}
