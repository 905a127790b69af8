package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Service is the full service configuration. Values come from an optional
// YAML file (CONFIG_PATH, default config/draftsmith.yaml) with environment
// variable overrides, e.g. DRAFTSMITH_TEMPORAL_HOST_PORT.
type Service struct {
	HTTPPort    int `mapstructure:"http_port"`
	MetricsPort int `mapstructure:"metrics_port"`

	Temporal struct {
		HostPort  string `mapstructure:"host_port"`
		Namespace string `mapstructure:"namespace"`
		TaskQueue string `mapstructure:"task_queue"`
	} `mapstructure:"temporal"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Generation struct {
		BaseURL        string `mapstructure:"base_url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"generation"`

	Tools struct {
		SerperAPIKey   string `mapstructure:"serper_api_key"`
		TavilyAPIKey   string `mapstructure:"tavily_api_key"`
		ExaAPIKey      string `mapstructure:"exa_api_key"`
		GitHubToken    string `mapstructure:"github_token"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"tools"`

	Structuring struct {
		AutoApprove            bool `mapstructure:"auto_approve"`
		MaxRedrafts            int  `mapstructure:"max_redrafts"`
		ApprovalTimeoutSeconds int  `mapstructure:"approval_timeout_seconds"`
	} `mapstructure:"structuring"`

	Streaming struct {
		RingCapacity int `mapstructure:"ring_capacity"`
	} `mapstructure:"streaming"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// GenerationTimeout returns the generation call timeout as a duration.
func (s *Service) GenerationTimeout() time.Duration {
	return time.Duration(s.Generation.TimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-tool call timeout as a duration.
func (s *Service) ToolTimeout() time.Duration {
	return time.Duration(s.Tools.TimeoutSeconds) * time.Second
}

// ApprovalTimeout returns how long a run waits for a structuring decision.
func (s *Service) ApprovalTimeout() time.Duration {
	return time.Duration(s.Structuring.ApprovalTimeoutSeconds) * time.Second
}

// Load reads the service configuration. A missing config file is not an
// error; defaults and environment overrides still apply.
func Load() (*Service, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DRAFTSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/draftsmith.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var s Service
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8081)
	v.SetDefault("metrics_port", 2112)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "draftsmith-reports")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.dsn", "")

	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.timeout_seconds", 60)

	v.SetDefault("tools.timeout_seconds", 20)

	v.SetDefault("structuring.auto_approve", false)
	v.SetDefault("structuring.max_redrafts", 3)
	v.SetDefault("structuring.approval_timeout_seconds", 1800)

	v.SetDefault("streaming.ring_capacity", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validate(s *Service) error {
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", s.HTTPPort)
	}
	if s.Structuring.MaxRedrafts < 0 {
		return fmt.Errorf("structuring.max_redrafts must not be negative")
	}
	if s.Structuring.ApprovalTimeoutSeconds <= 0 {
		return fmt.Errorf("structuring.approval_timeout_seconds must be positive")
	}
	if s.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port must not be empty")
	}
	return nil
}
