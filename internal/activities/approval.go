package activities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// ApprovalRequest describes one pending structuring decision.
type ApprovalRequest struct {
	ApprovalID string       `json:"approval_id"`
	RunID      string       `json:"run_id"`
	SessionID  string       `json:"session_id"`
	Query      string       `json:"query"`
	Shell      report.Shell `json:"shell"`
	Round      int          `json:"round"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ApprovalDecision is the reviewer's verdict on a drafted structure.
type ApprovalDecision struct {
	ApprovalID string    `json:"approval_id"`
	Approved   bool      `json:"approved"`
	Feedback   string    `json:"feedback,omitempty"`
	DecidedBy  string    `json:"decided_by,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ApprovalStore holds pending requests and their decisions in memory. The
// workflow learns of decisions through signals; the store exists so the HTTP
// surface can list what awaits review and reject stale decision posts.
type ApprovalStore struct {
	mu        sync.RWMutex
	pending   map[string]*ApprovalRequest
	decisions map[string]*ApprovalDecision
	ttl       time.Duration
}

// NewApprovalStore creates a store whose entries expire after ttl.
func NewApprovalStore(ttl time.Duration) *ApprovalStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ApprovalStore{
		pending:   make(map[string]*ApprovalRequest),
		decisions: make(map[string]*ApprovalDecision),
		ttl:       ttl,
	}
}

// Add registers a pending request.
func (s *ApprovalStore) Add(req *ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.pending[req.ApprovalID] = req
}

// Pending returns the request if it still awaits a decision.
func (s *ApprovalStore) Pending(approvalID string) (*ApprovalRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.pending[approvalID]
	return req, ok
}

// PendingForRun returns the run's outstanding request, if any.
func (s *ApprovalStore) PendingForRun(runID string) (*ApprovalRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.pending {
		if req.RunID == runID {
			return req, true
		}
	}
	return nil, false
}

// Decide records the decision and closes the pending request. It reports
// whether the approval was still open.
func (s *ApprovalStore) Decide(d *ApprovalDecision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.pending[d.ApprovalID]; !open {
		return false
	}
	delete(s.pending, d.ApprovalID)
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	s.decisions[d.ApprovalID] = d
	return true
}

// Decision returns the recorded decision, if one exists.
func (s *ApprovalStore) Decision(approvalID string) (*ApprovalDecision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[approvalID]
	return d, ok
}

// prune drops expired entries. Caller holds s.mu.
func (s *ApprovalStore) prune() {
	cutoff := time.Now().Add(-s.ttl)
	for id, req := range s.pending {
		if req.CreatedAt.Before(cutoff) {
			delete(s.pending, id)
		}
	}
	for id, d := range s.decisions {
		if d.Timestamp.Before(cutoff) {
			delete(s.decisions, id)
		}
	}
}

// RequestApprovalInput asks to open an approval for a drafted structure.
type RequestApprovalInput struct {
	RunID     string       `json:"run_id"`
	SessionID string       `json:"session_id"`
	Query     string       `json:"query"`
	Shell     report.Shell `json:"shell"`
	Round     int          `json:"round"`
}

// RequestApprovalResult returns the approval ID the workflow will wait on.
type RequestApprovalResult struct {
	ApprovalID string `json:"approval_id"`
}

// RequestApproval opens a pending approval and returns its ID. The workflow
// then blocks on the matching decision signal.
func (a *Activities) RequestApproval(ctx context.Context, in RequestApprovalInput) (RequestApprovalResult, error) {
	logger := activity.GetLogger(ctx)
	req := &ApprovalRequest{
		ApprovalID: uuid.New().String(),
		RunID:      in.RunID,
		SessionID:  in.SessionID,
		Query:      in.Query,
		Shell:      in.Shell,
		Round:      in.Round,
		CreatedAt:  time.Now(),
	}
	a.approvals.Add(req)
	logger.Info("Approval requested",
		"approval_id", req.ApprovalID,
		"run_id", in.RunID,
		"round", in.Round,
	)
	return RequestApprovalResult{ApprovalID: req.ApprovalID}, nil
}
