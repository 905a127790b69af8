package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	c := NewClientFromDB(mockDB, zap.NewNop())
	t.Cleanup(func() { c.Close() })
	return c, mock
}

func TestSaveReport(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectExec(`INSERT INTO reports`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	refs, _ := json.Marshal([]map[string]interface{}{{"section_id": "s1"}})
	err := c.SaveReport(context.Background(), &ReportRecord{
		RunID:      "run-1",
		SessionID:  "sess-1",
		UserID:     "user-1",
		Query:      "what is Go",
		QueryType:  "factual_query",
		Title:      "Go Overview",
		Document:   "# Go Overview\n...",
		References: refs,
		Status:     "completed",
		TokensUsed: 900,
		CompletedAt: sql.NullTime{
			Time: time.Now(), Valid: true,
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport(t *testing.T) {
	c, mock := newMockClient(t)

	cols := []string{"run_id", "session_id", "user_id", "query", "query_type",
		"title", "document", "reference_list", "status", "tokens_used",
		"error_detail", "created_at", "completed_at"}
	mock.ExpectQuery(`SELECT .* FROM reports WHERE run_id`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"run-1", "sess-1", "user-1", "q", "factual_query",
			"Title", "doc", []byte(`[]`), "completed", 42,
			nil, time.Now(), time.Now()))

	rec, err := c.GetReport(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Title", rec.Title)
	assert.Equal(t, 42, rec.TokensUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportNotFound(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT .* FROM reports WHERE run_id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := c.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogRunEventSwallowsErrors(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectExec(`INSERT INTO run_events`).
		WillReturnError(sql.ErrConnDone)

	// Must not panic or surface the failure.
	c.LogRunEvent(context.Background(), RunEvent{
		RunID: "run-1", Type: "PROGRESS", Phase: "research",
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunEvents(t *testing.T) {
	c, mock := newMockClient(t)

	cols := []string{"id", "run_id", "type", "phase", "section_id", "message", "created_at"}
	mock.ExpectQuery(`SELECT .* FROM run_events WHERE run_id`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "run-1", "RUN_STARTED", "", "", "", time.Now()).
			AddRow(2, "run-1", "PHASE_STARTED", "structuring", "", "", time.Now()))

	events, err := c.RunEvents(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "structuring", events[1].Phase)
}
