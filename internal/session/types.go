package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionBusy is returned when a session already has a run in flight.
	ErrSessionBusy = errors.New("session already has an active run")
)

// Session groups a user's report runs for context continuity. One session
// admits at most one run at a time; the active-run lock lives in Redis, not
// here, so it holds across orchestrator replicas.
type Session struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	ExpiresAt time.Time              `json:"expires_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// History holds completed run summaries, most recent last.
	History []RunSummary `json:"history,omitempty"`

	TotalTokensUsed int `json:"total_tokens_used"`
	RunsCompleted   int `json:"runs_completed"`
}

// RunSummary is one completed report run as remembered by the session.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Query       string    `json:"query"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	TokensUsed  int       `json:"tokens_used"`
	CompletedAt time.Time `json:"completed_at"`
}

// IsExpired reports whether the session TTL has lapsed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RecentRuns returns up to count of the most recent run summaries.
func (s *Session) RecentRuns(count int) []RunSummary {
	if len(s.History) <= count {
		return s.History
	}
	return s.History[len(s.History)-count:]
}
