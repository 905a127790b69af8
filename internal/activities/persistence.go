package activities

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/report"
)

// PersistReportInput archives a finished run.
type PersistReportInput struct {
	RunID       string             `json:"run_id"`
	SessionID   string             `json:"session_id"`
	UserID      string             `json:"user_id"`
	Query       string             `json:"query"`
	QueryType   report.QueryType   `json:"query_type"`
	Title       string             `json:"title"`
	Document    string             `json:"document"`
	References  []report.Reference `json:"references"`
	Status      string             `json:"status"`
	TokensUsed  int                `json:"tokens_used"`
	ErrorDetail string             `json:"error_detail,omitempty"`
}

// PersistReport archives the run in Postgres. Called from a disconnected
// context after the result is already decided; a failed archive is logged,
// never propagated into the run outcome.
func (a *Activities) PersistReport(ctx context.Context, in PersistReportInput) error {
	logger := activity.GetLogger(ctx)
	if a.store == nil {
		return nil
	}

	refs, err := json.Marshal(in.References)
	if err != nil {
		logger.Warn("Failed to marshal references", "run_id", in.RunID, "error", err)
		refs = []byte("[]")
	}

	rec := &db.ReportRecord{
		RunID:      in.RunID,
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		Query:      in.Query,
		QueryType:  string(in.QueryType),
		Title:      in.Title,
		Document:   in.Document,
		References: refs,
		Status:     in.Status,
		TokensUsed: in.TokensUsed,
		CompletedAt: sql.NullTime{
			Time:  time.Now().UTC(),
			Valid: true,
		},
	}
	if in.ErrorDetail != "" {
		rec.ErrorDetail = sql.NullString{String: in.ErrorDetail, Valid: true}
	}

	if err := a.store.SaveReport(ctx, rec); err != nil {
		logger.Warn("Failed to archive report", "run_id", in.RunID, "error", err)
	}
	return nil
}
