// Package server coordinates report run submission, status, approval
// decisions, and cancellation against Temporal and the session store.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/activities"
	"github.com/draftsmith-ai/draftsmith/internal/metrics"
	"github.com/draftsmith-ai/draftsmith/internal/session"
	"github.com/draftsmith-ai/draftsmith/internal/workflows"
)

var (
	ErrSessionBusy      = errors.New("session already has a run in progress")
	ErrRunNotFound      = errors.New("run not found")
	ErrApprovalNotFound = errors.New("no open approval with that id")
)

// Service wraps the Temporal client with session admission control and the
// approval decision path.
type Service struct {
	temporal  client.Client
	sessions  *session.Manager
	approvals *activities.ApprovalStore
	taskQueue string
	runTTL    time.Duration
	defaults  Defaults
	logger    *zap.Logger
}

// Defaults are the service-level structuring settings applied to a submit
// request that leaves them unset.
type Defaults struct {
	AutoApprove            bool
	MaxRedrafts            int
	ApprovalTimeoutSeconds int
}

type Options struct {
	TaskQueue string
	// RunTTL bounds how long a session's active-run lock may outlive a
	// stuck workflow. Defaults to 2h.
	RunTTL   time.Duration
	Defaults Defaults
}

func New(temporal client.Client, sessions *session.Manager, approvals *activities.ApprovalStore, opts Options, logger *zap.Logger) *Service {
	if opts.TaskQueue == "" {
		opts.TaskQueue = "draftsmith-reports"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		temporal:  temporal,
		sessions:  sessions,
		approvals: approvals,
		taskQueue: opts.TaskQueue,
		runTTL:    opts.RunTTL,
		defaults:  opts.Defaults,
		logger:    logger,
	}
}

// SubmitRequest is the inbound shape for starting a report run.
type SubmitRequest struct {
	Query                  string                 `json:"query"`
	UserID                 string                 `json:"user_id"`
	SessionID              string                 `json:"session_id,omitempty"`
	AutoApprove            bool                   `json:"auto_approve,omitempty"`
	ApprovalTimeoutSeconds int                    `json:"approval_timeout_seconds,omitempty"`
	MaxRedrafts            int                    `json:"max_redrafts,omitempty"`
	Context                map[string]interface{} `json:"context,omitempty"`
}

type SubmitResponse struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
}

// SubmitReport resolves the session, takes its single-run lock, and starts
// the report workflow. A session with a run already in flight is rejected.
func (s *Service) SubmitReport(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if req.Query == "" {
		return nil, errors.New("query is required")
	}

	sess, err := s.sessions.GetOrCreate(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	runID := "report-" + uuid.New().String()
	if err := s.sessions.AcquireRun(ctx, sess.ID, runID, s.runTTL); err != nil {
		if errors.Is(err, session.ErrSessionBusy) {
			metrics.RunsRejected.WithLabelValues("session_busy").Inc()
			return nil, ErrSessionBusy
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	input := workflows.ReportInput{
		Query:                  req.Query,
		UserID:                 req.UserID,
		SessionID:              sess.ID,
		AutoApprove:            req.AutoApprove || s.defaults.AutoApprove,
		ApprovalTimeoutSeconds: req.ApprovalTimeoutSeconds,
		MaxRedrafts:            req.MaxRedrafts,
		Context:                req.Context,
	}
	if input.ApprovalTimeoutSeconds <= 0 {
		input.ApprovalTimeoutSeconds = s.defaults.ApprovalTimeoutSeconds
	}
	if input.MaxRedrafts <= 0 {
		input.MaxRedrafts = s.defaults.MaxRedrafts
	}

	_, err = s.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        runID,
		TaskQueue: s.taskQueue,
	}, workflows.ReportWorkflow, input)
	if err != nil {
		// The workflow never started; release the lock so the session
		// is not stranded until the TTL expires.
		if relErr := s.sessions.ReleaseRun(ctx, sess.ID, runID); relErr != nil {
			s.logger.Warn("failed to release run lock after start failure",
				zap.String("session_id", sess.ID), zap.Error(relErr))
		}
		s.logger.Error("failed to start report workflow",
			zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("start workflow: %w", err)
	}

	metrics.RunsSubmitted.Inc()
	s.logger.Info("report run started",
		zap.String("run_id", runID),
		zap.String("session_id", sess.ID),
		zap.String("user_id", req.UserID))

	return &SubmitResponse{RunID: runID, SessionID: sess.ID}, nil
}

// RunStatus is the externally visible state of a run.
type RunStatus struct {
	RunID    string              `json:"run_id"`
	Status   string              `json:"status"`
	Progress *workflows.Progress `json:"progress,omitempty"`
}

// GetStatus reports workflow execution state, with live progress from the
// workflow query handler while the run is open.
func (s *Service) GetStatus(ctx context.Context, runID string) (*RunStatus, error) {
	desc, err := s.temporal.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("describe workflow: %w", err)
	}

	status := &RunStatus{RunID: runID, Status: mapExecutionStatus(desc.WorkflowExecutionInfo.GetStatus())}

	if status.Status == workflows.StatusRunning {
		resp, qErr := s.temporal.QueryWorkflow(ctx, runID, "", workflows.ProgressQuery)
		if qErr != nil {
			s.logger.Debug("progress query failed", zap.String("run_id", runID), zap.Error(qErr))
			return status, nil
		}
		var p workflows.Progress
		if err := resp.Get(&p); err == nil {
			status.Progress = &p
		}
	}
	return status, nil
}

// Result blocks until the run finishes and returns its report.
func (s *Service) Result(ctx context.Context, runID string) (*workflows.ReportResult, error) {
	run := s.temporal.GetWorkflow(ctx, runID, "")
	var result workflows.ReportResult
	if err := run.Get(ctx, &result); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Cancel requests cooperative cancellation of a run.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	err := s.temporal.CancelWorkflow(ctx, runID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return ErrRunNotFound
		}
		return fmt.Errorf("cancel workflow: %w", err)
	}
	s.logger.Info("report run cancelled", zap.String("run_id", runID))
	return nil
}

// Decide records a reviewer's verdict on a pending structure approval and
// signals the waiting workflow.
func (s *Service) Decide(ctx context.Context, decision activities.ApprovalDecision) error {
	req, ok := s.approvals.Pending(decision.ApprovalID)
	if !ok {
		return ErrApprovalNotFound
	}

	// Deliver the signal before consuming the approval, so a failed
	// delivery leaves it open for the reviewer to retry.
	err := s.temporal.SignalWorkflow(ctx, req.RunID, "",
		workflows.ApprovalSignalName(decision.ApprovalID), decision)
	if err != nil {
		s.logger.Error("failed to deliver approval signal",
			zap.String("run_id", req.RunID),
			zap.String("approval_id", decision.ApprovalID),
			zap.Error(err))
		return fmt.Errorf("signal workflow: %w", err)
	}
	if !s.approvals.Decide(&decision) {
		return ErrApprovalNotFound
	}

	s.logger.Info("approval decision delivered",
		zap.String("run_id", req.RunID),
		zap.String("approval_id", decision.ApprovalID),
		zap.Bool("approved", decision.Approved))
	return nil
}

// PendingApproval exposes the open approval request for a run, if any.
func (s *Service) PendingApproval(runID string) (*activities.ApprovalRequest, bool) {
	return s.approvals.PendingForRun(runID)
}

// Sessions returns the session manager for the HTTP layer.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

func mapExecutionStatus(st enumspb.WorkflowExecutionStatus) string {
	switch st {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return workflows.StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return workflows.StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return workflows.StatusCancelled
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return workflows.StatusFailed
	default:
		return "pending"
	}
}
