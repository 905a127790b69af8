package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/draftsmith-ai/draftsmith/internal/circuitbreaker"
	"github.com/draftsmith-ai/draftsmith/internal/db"
)

// RedisChecker probes the session store through its circuit breaker, so an
// open breaker reports unhealthy without hammering a down Redis.
func RedisChecker(wrapper *circuitbreaker.RedisWrapper) Checker {
	return Checker{
		Name:     "redis",
		Critical: true,
		Timeout:  3 * time.Second,
		Check: func(ctx context.Context) error {
			if wrapper.Open() {
				return fmt.Errorf("circuit breaker open")
			}
			return wrapper.Ping(ctx)
		},
	}
}

// PostgresChecker probes the report archive.
func PostgresChecker(store *db.Client) Checker {
	return Checker{
		Name:    "postgres",
		Timeout: 3 * time.Second,
		Check:   store.Ping,
	}
}

// TemporalChecker verifies the workflow service answers for our namespace.
func TemporalChecker(c client.Client, namespace string) Checker {
	return Checker{
		Name:     "temporal",
		Critical: true,
		Timeout:  5 * time.Second,
		Check: func(ctx context.Context) error {
			_, err := c.CheckHealth(ctx, &client.CheckHealthRequest{})
			if err != nil {
				return fmt.Errorf("namespace %s: %w", namespace, err)
			}
			return nil
		},
	}
}

// GenerationChecker probes the generation collaborator's health endpoint.
func GenerationChecker(baseURL string) Checker {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return Checker{
		Name:     "generation",
		Critical: true,
		Timeout:  5 * time.Second,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		},
	}
}
