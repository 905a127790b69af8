package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ReportRecord is one archived report run.
type ReportRecord struct {
	RunID       string          `db:"run_id"`
	SessionID   string          `db:"session_id"`
	UserID      string          `db:"user_id"`
	Query       string          `db:"query"`
	QueryType   string          `db:"query_type"`
	Title       string          `db:"title"`
	Document    string          `db:"document"`
	References  json.RawMessage `db:"reference_list"`
	Status      string          `db:"status"`
	TokensUsed  int             `db:"tokens_used"`
	ErrorDetail sql.NullString  `db:"error_detail"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt sql.NullTime    `db:"completed_at"`
}

// RunEvent is one row of the run event log, the durable sibling of the
// in-memory stream.
type RunEvent struct {
	ID        int64     `db:"id"`
	RunID     string    `db:"run_id"`
	Type      string    `db:"type"`
	Phase     string    `db:"phase"`
	SectionID string    `db:"section_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}
