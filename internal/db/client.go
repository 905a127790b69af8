package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a report run does not exist.
var ErrNotFound = errors.New("report not found")

// Client persists report runs and their event log in Postgres. Persistence
// is best-effort from the workflow's point of view: a failed archive never
// fails the run.
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClient opens a connection pool and verifies it with a ping.
func NewClient(dsn string, logger *zap.Logger) (*Client, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Client{db: db, logger: logger}, nil
}

// NewClientFromDB wraps an existing pool; tests use this with sqlmock.
func NewClientFromDB(db *sql.DB, logger *zap.Logger) *Client {
	return &Client{db: sqlx.NewDb(db, "postgres"), logger: logger}
}

// SaveReport inserts or updates the archived run. Terminal runs carry their
// completion time; upsert keeps the call idempotent across activity retries.
func (c *Client) SaveReport(ctx context.Context, rec *ReportRecord) error {
	const q = `
		INSERT INTO reports (
			run_id, session_id, user_id, query, query_type, title,
			document, reference_list, status, tokens_used, error_detail,
			created_at, completed_at
		) VALUES (
			:run_id, :session_id, :user_id, :query, :query_type, :title,
			:document, :reference_list, :status, :tokens_used, :error_detail,
			:created_at, :completed_at
		)
		ON CONFLICT (run_id) DO UPDATE SET
			title = EXCLUDED.title,
			document = EXCLUDED.document,
			reference_list = EXCLUDED.reference_list,
			status = EXCLUDED.status,
			tokens_used = EXCLUDED.tokens_used,
			error_detail = EXCLUDED.error_detail,
			completed_at = EXCLUDED.completed_at`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("save report %s: %w", rec.RunID, err)
	}
	return nil
}

// GetReport loads one archived run by its run ID.
func (c *Client) GetReport(ctx context.Context, runID string) (*ReportRecord, error) {
	const q = `SELECT run_id, session_id, user_id, query, query_type, title,
		document, reference_list, status, tokens_used, error_detail,
		created_at, completed_at
		FROM reports WHERE run_id = $1`

	var rec ReportRecord
	err := c.db.GetContext(ctx, &rec, q, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get report %s: %w", runID, err)
	}
	return &rec, nil
}

// ListSessionReports returns a session's archived runs, newest first.
func (c *Client) ListSessionReports(ctx context.Context, sessionID string, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT run_id, session_id, user_id, query, query_type, title,
		document, reference_list, status, tokens_used, error_detail,
		created_at, completed_at
		FROM reports WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2`

	var recs []ReportRecord
	if err := c.db.SelectContext(ctx, &recs, q, sessionID, limit); err != nil {
		return nil, fmt.Errorf("list reports for session %s: %w", sessionID, err)
	}
	return recs, nil
}

// LogRunEvent appends one event to the durable run log. Errors are logged
// and swallowed; the event stream must never stall a run.
func (c *Client) LogRunEvent(ctx context.Context, evt RunEvent) {
	const q = `INSERT INTO run_events (run_id, type, phase, section_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	if _, err := c.db.ExecContext(ctx, q,
		evt.RunID, evt.Type, evt.Phase, evt.SectionID, evt.Message, evt.CreatedAt); err != nil {
		c.logger.Warn("Failed to log run event",
			zap.String("run_id", evt.RunID),
			zap.String("type", evt.Type),
			zap.Error(err),
		)
	}
}

// RunEvents returns the logged events of a run in insertion order.
func (c *Client) RunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	const q = `SELECT id, run_id, type, phase, section_id, message, created_at
		FROM run_events WHERE run_id = $1 ORDER BY id`

	var events []RunEvent
	if err := c.db.SelectContext(ctx, &events, q, runID); err != nil {
		return nil, fmt.Errorf("list run events for %s: %w", runID, err)
	}
	return events, nil
}

// Ping verifies database connectivity for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}
