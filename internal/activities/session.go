package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/metrics"
	"github.com/draftsmith-ai/draftsmith/internal/session"
)

// RecordRunResultInput rolls a finished run into its session and releases
// the session's active-run lock.
type RecordRunResultInput struct {
	SessionID       string  `json:"session_id"`
	RunID           string  `json:"run_id"`
	Query           string  `json:"query"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	TokensUsed      int     `json:"tokens_used"`
	Redrafts        int     `json:"redrafts"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RecordRunResult updates session history and always releases the run lock,
// even when recording the summary fails. Without the release a crashed
// bookkeeping step would block the session until the lock TTL expires.
func (a *Activities) RecordRunResult(ctx context.Context, in RecordRunResultInput) error {
	logger := activity.GetLogger(ctx)

	metrics.RunsCompleted.WithLabelValues(in.Status).Inc()
	metrics.ApprovalRedrafts.Observe(float64(in.Redrafts))
	if in.DurationSeconds > 0 {
		metrics.RunDuration.Observe(in.DurationSeconds)
	}

	if a.sessions == nil || in.SessionID == "" {
		return nil
	}

	// Best-effort: a retry here would double-append the run summary, so
	// failures are logged rather than returned.
	if err := a.sessions.RecordRun(ctx, in.SessionID, session.RunSummary{
		RunID:       in.RunID,
		Query:       in.Query,
		Title:       in.Title,
		Status:      in.Status,
		TokensUsed:  in.TokensUsed,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("Failed to record run in session",
			"session_id", in.SessionID, "run_id", in.RunID, "error", err)
	}

	if err := a.sessions.ReleaseRun(ctx, in.SessionID, in.RunID); err != nil {
		logger.Warn("Failed to release session run lock",
			"session_id", in.SessionID, "run_id", in.RunID, "error", err)
	}
	return nil
}
