package workflows

import (
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// Run statuses as reported to clients.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ReportInput starts one report run.
type ReportInput struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	// AutoApprove skips the human structuring review.
	AutoApprove bool `json:"auto_approve"`
	// ApprovalTimeoutSeconds bounds each wait for a structuring decision;
	// zero means the default of 30 minutes.
	ApprovalTimeoutSeconds int `json:"approval_timeout_seconds"`
	// MaxRedrafts bounds how many rejected drafts get another attempt;
	// zero means the default of 3.
	MaxRedrafts int `json:"max_redrafts"`

	Context map[string]interface{} `json:"context,omitempty"`
}

// ReportResult is the run's terminal outcome.
type ReportResult struct {
	Title        string             `json:"title"`
	QueryType    report.QueryType   `json:"query_type"`
	Document     string             `json:"document"`
	References   []report.Reference `json:"references,omitempty"`
	Status       string             `json:"status"`
	TokensUsed   int                `json:"tokens_used"`
	Redrafts     int                `json:"redrafts"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// Progress is the live view served by the progress query handler.
type Progress struct {
	Status             string `json:"status"`
	Phase              string `json:"phase"`
	Round              int    `json:"round"`
	PendingApprovalID  string `json:"pending_approval_id,omitempty"`
	SectionsTotal      int    `json:"sections_total"`
	SectionsResearched int    `json:"sections_researched"`
	SectionsWritten    int    `json:"sections_written"`
}

// ProgressQuery is the workflow query name for Progress.
const ProgressQuery = "getProgress"

// ApprovalSignalName is the per-approval signal the workflow waits on. The
// HTTP surface must use the same derivation when forwarding decisions.
func ApprovalSignalName(approvalID string) string {
	return "human-approval-" + approvalID
}
