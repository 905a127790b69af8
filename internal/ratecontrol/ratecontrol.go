// Package ratecontrol loads per-tool request rate limits from tools.yaml and
// hands out shared limiters. External lookup tools are independently
// rate-limited by their providers; the limits here keep the dispatcher from
// tripping those caps during wide fan-outs.
package ratecontrol

import (
	"log"
	"os"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type config struct {
	RateLimits struct {
		DefaultRPM    int `yaml:"default_rpm"`
		ToolOverrides map[string]struct {
			RPM int `yaml:"rpm"`
		} `yaml:"tool_overrides"`
	} `yaml:"rate_limits"`
}

var (
	mu          sync.RWMutex
	loaded      *config
	limiters    = map[string]*rate.Limiter{}
	initialized bool
)

var defaultPaths = []string{
	os.Getenv("TOOLS_CONFIG_PATH"),
	"/app/config/tools.yaml",
	"./config/tools.yaml",
}

func loadLocked() {
	for _, p := range defaultPaths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var tmp config
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			log.Printf("ratecontrol: failed to parse %s: %v", p, err)
			continue
		}
		loaded = &tmp
		break
	}
	initialized = true
}

// RPMFor returns the configured requests-per-minute limit for a tool,
// falling back to the default, then to a conservative built-in.
func RPMFor(tool string) int {
	mu.Lock()
	if !initialized {
		loadLocked()
	}
	defer mu.Unlock()

	if loaded != nil {
		if o, ok := loaded.RateLimits.ToolOverrides[tool]; ok && o.RPM > 0 {
			return o.RPM
		}
		if loaded.RateLimits.DefaultRPM > 0 {
			return loaded.RateLimits.DefaultRPM
		}
	}
	return 60
}

// LimiterFor returns a shared limiter for a tool, created on first use from
// the configured RPM. All concurrent sections dispatching the same tool share
// one limiter.
func LimiterFor(tool string) *rate.Limiter {
	mu.RLock()
	if l, ok := limiters[tool]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	rpm := RPMFor(tool)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := limiters[tool]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burstFor(rpm))
	limiters[tool] = l
	return l
}

func burstFor(rpm int) int {
	b := rpm / 10
	if b < 1 {
		b = 1
	}
	return b
}

// Reload discards cached config and limiters; used by tests and config
// hot-reload.
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	loaded = nil
	initialized = false
	limiters = map[string]*rate.Limiter{}
}
