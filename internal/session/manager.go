package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/circuitbreaker"
	"github.com/draftsmith-ai/draftsmith/internal/metrics"
)

const maxHistory = 50

// Manager stores sessions in Redis behind a circuit breaker, with a local
// LRU cache in front of it.
type Manager struct {
	client *circuitbreaker.RedisWrapper
	logger *zap.Logger
	ttl    time.Duration

	mu          sync.RWMutex
	localCache  map[string]*Session
	cacheAccess map[string]time.Time
	maxCached   int
}

// Options tunes the manager; zero values fall back to defaults.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	MaxCache int
}

// NewManager connects to Redis and verifies the connection before returning.
func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxCache <= 0 {
		opts.MaxCache = 10000
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	client := circuitbreaker.NewRedisWrapper(redisClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Manager{
		client:      client,
		logger:      logger,
		ttl:         opts.TTL,
		localCache:  make(map[string]*Session),
		cacheAccess: make(map[string]time.Time),
		maxCached:   opts.MaxCache,
	}, nil
}

// Create makes a new session with a generated ID.
func (m *Manager) Create(ctx context.Context, userID string, metadata map[string]interface{}) (*Session, error) {
	return m.create(ctx, uuid.New().String(), userID, metadata)
}

// GetOrCreate returns the existing session or creates one under the given
// ID. A session owned by a different user is never handed out; the caller
// gets a fresh session with a generated ID instead.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, userID string) (*Session, error) {
	if sessionID == "" {
		return m.Create(ctx, userID, nil)
	}
	existing, err := m.Get(ctx, sessionID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			m.logger.Warn("Session ID owned by another user, issuing a new session",
				zap.String("requested_session_id", sessionID),
				zap.String("requesting_user", userID),
			)
			return m.Create(ctx, userID, nil)
		}
		return existing, nil
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
		return m.create(ctx, sessionID, userID, nil)
	default:
		return nil, err
	}
}

func (m *Manager) create(ctx context.Context, sessionID, userID string, metadata map[string]interface{}) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		Metadata:  metadata,
	}
	if err := m.save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.cachePut(s)
	metrics.SessionsCreated.Inc()
	m.logger.Info("Created session",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)
	return s, nil
}

// Get retrieves a session, consulting the local cache first.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	cached, ok := m.localCache[sessionID]
	m.mu.RUnlock()
	if ok {
		metrics.SessionCacheHits.Inc()
		if cached.IsExpired() {
			_ = m.Delete(ctx, sessionID)
			return nil, ErrSessionExpired
		}
		m.mu.Lock()
		m.cacheAccess[sessionID] = time.Now()
		m.mu.Unlock()
		return cached, nil
	}
	metrics.SessionCacheMisses.Inc()

	data, err := m.client.Get(ctx, m.sessionKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.IsExpired() {
		_ = m.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	m.cachePut(&s)
	return &s, nil
}

// Update persists the session and refreshes the cache.
func (m *Manager) Update(ctx context.Context, s *Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	s.UpdatedAt = time.Now()
	if err := m.save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.cachePut(s)
	return nil
}

// Delete removes the session from Redis and the cache.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, m.sessionKey(sessionID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.mu.Lock()
	delete(m.localCache, sessionID)
	delete(m.cacheAccess, sessionID)
	metrics.SessionCacheSize.Set(float64(len(m.localCache)))
	m.mu.Unlock()
	return nil
}

// RecordRun appends a completed run to the session history and rolls up its
// token usage.
func (m *Manager) RecordRun(ctx context.Context, sessionID string, run RunSummary) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	s.History = append(s.History, run)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
	s.TotalTokensUsed += run.TokensUsed
	s.RunsCompleted++
	return m.Update(ctx, s)
}

// AcquireRun takes the session's active-run lock for runID. ErrSessionBusy
// means another run holds it. The lock carries its own TTL so a crashed run
// cannot wedge the session forever.
func (m *Manager) AcquireRun(ctx context.Context, sessionID, runID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	ok, err := m.client.SetNX(ctx, m.activeRunKey(sessionID), runID, ttl)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrSessionBusy
	}
	return nil
}

// ReleaseRun drops the active-run lock if runID still holds it.
func (m *Manager) ReleaseRun(ctx context.Context, sessionID, runID string) error {
	key := m.activeRunKey(sessionID)
	holder, err := m.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil
	} else if err != nil {
		return fmt.Errorf("read run lock: %w", err)
	}
	if holder != runID {
		m.logger.Warn("Run lock held by a different run, leaving it in place",
			zap.String("session_id", sessionID),
			zap.String("releasing_run", runID),
			zap.String("holder", holder),
		)
		return nil
	}
	return m.client.Del(ctx, key)
}

// ActiveRun returns the run currently holding the session lock, or "" when
// the session is idle.
func (m *Manager) ActiveRun(ctx context.Context, sessionID string) (string, error) {
	runID, err := m.client.Get(ctx, m.activeRunKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return runID, err
}

// RedisWrapper exposes the guarded client for health checks.
func (m *Manager) RedisWrapper() *circuitbreaker.RedisWrapper {
	return m.client
}

func (m *Manager) Close() error {
	return m.client.Close()
}

func (m *Manager) sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (m *Manager) activeRunKey(sessionID string) string {
	return "session:" + sessionID + ":active_run"
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.client.Set(ctx, m.sessionKey(s.ID), data, ttl)
}

func (m *Manager) cachePut(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localCache[s.ID] = s
	m.cacheAccess[s.ID] = time.Now()
	m.evictIfFull()
	metrics.SessionCacheSize.Set(float64(len(m.localCache)))
}

// evictIfFull drops the least recently used half of the cache once it
// overflows. Caller holds m.mu.
func (m *Manager) evictIfFull() {
	if len(m.localCache) <= m.maxCached {
		return
	}
	type entry struct {
		id   string
		seen time.Time
	}
	entries := make([]entry, 0, len(m.localCache))
	for id := range m.localCache {
		entries = append(entries, entry{id: id, seen: m.cacheAccess[id]})
	}
	for i := 0; i < len(entries)-1; i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].seen.Before(entries[i].seen) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	toRemove := m.maxCached / 2
	for i := 0; i < toRemove && i < len(entries); i++ {
		delete(m.localCache, entries[i].id)
		delete(m.cacheAccess, entries[i].id)
		metrics.SessionCacheEvictions.Inc()
	}
}
