// Package health runs dependency checks and serves readiness and liveness
// probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker probes one dependency.
type Checker struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(ctx context.Context) error
}

// Manager fans checks out and aggregates the result. Non-critical failures
// degrade the service; critical ones make it unready.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

func (m *Manager) Register(c Checker) {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	m.mu.Lock()
	m.checkers = append(m.checkers, c)
	m.mu.Unlock()
}

// Report holds the aggregate and per-component state.
type Report struct {
	Status     Status        `json:"status"`
	Ready      bool          `json:"ready"`
	Components []CheckResult `json:"components"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (m *Manager) Run(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.Timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			res := CheckResult{
				Component: c.Name,
				Status:    StatusHealthy,
				Duration:  time.Since(start),
				Critical:  c.Critical,
			}
			if err != nil {
				res.Status = StatusUnhealthy
				res.Error = err.Error()
				m.logger.Warn("health check failed",
					zap.String("component", c.Name), zap.Error(err))
			}
			results[i] = res
		}(i, c)
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Ready: true, Components: results, Timestamp: time.Now().UTC()}
	for _, r := range results {
		if r.Status != StatusUnhealthy {
			continue
		}
		if r.Critical {
			report.Status = StatusUnhealthy
			report.Ready = false
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

// RegisterRoutes wires the probe endpoints.
func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/readiness", m.handleReadiness)
	mux.HandleFunc("/liveness", m.handleLiveness)
}
