package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/metrics"
	"github.com/draftsmith-ai/draftsmith/internal/streaming"
)

// RunEventType enumerates the progress events a report run emits.
type RunEventType string

const (
	RunEventStarted           RunEventType = "RUN_STARTED"
	RunEventPhaseStarted      RunEventType = "PHASE_STARTED"
	RunEventProgress          RunEventType = "PROGRESS"
	RunEventApprovalRequested RunEventType = "APPROVAL_REQUESTED"
	RunEventApprovalDecision  RunEventType = "APPROVAL_DECISION"
	RunEventSectionResearched RunEventType = "SECTION_RESEARCHED"
	RunEventSectionWritten    RunEventType = "SECTION_WRITTEN"
	RunEventCompleted         RunEventType = "RUN_COMPLETED"
	RunEventFailed            RunEventType = "RUN_FAILED"
	RunEventCancelled         RunEventType = "RUN_CANCELLED"
)

// Report phases, in execution order.
const (
	PhaseStructuring = "structuring"
	PhaseResearch    = "research"
	PhaseWriting     = "writing"
)

// EmitRunUpdateInput is one progress event.
type EmitRunUpdateInput struct {
	RunID     string       `json:"run_id"`
	EventType RunEventType `json:"event_type"`
	Phase     string       `json:"phase,omitempty"`
	SectionID string       `json:"section_id,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`

	// Set on phase-transition events; how long the finished phase took.
	CompletedPhase string  `json:"completed_phase,omitempty"`
	PhaseSeconds   float64 `json:"phase_seconds,omitempty"`
}

// EmitRunUpdate publishes a progress event to live subscribers and appends
// it to the durable run log. Both paths are best-effort.
func (a *Activities) EmitRunUpdate(ctx context.Context, in EmitRunUpdateInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("run event",
		"run_id", in.RunID,
		"type", string(in.EventType),
		"phase", in.Phase,
		"section_id", in.SectionID,
		"message", in.Message,
	)

	if in.CompletedPhase != "" {
		metrics.PhaseDuration.WithLabelValues(in.CompletedPhase).Observe(in.PhaseSeconds)
	}

	streaming.Get().Publish(in.RunID, streaming.Event{
		Type:      string(in.EventType),
		Phase:     in.Phase,
		SectionID: in.SectionID,
		Message:   in.Message,
		Timestamp: in.Timestamp,
	})

	if a.store != nil {
		a.store.LogRunEvent(ctx, db.RunEvent{
			RunID:     in.RunID,
			Type:      string(in.EventType),
			Phase:     in.Phase,
			SectionID: in.SectionID,
			Message:   in.Message,
			CreatedAt: in.Timestamp,
		})
	}
	return nil
}
