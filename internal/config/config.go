// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Closing       ClosingConfig       `yaml:"closing"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefinitionsConfig describes where to find workflow definition YAML files.
// The built-in workflows are always registered; file definitions override
// them by workflow type.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// WorkflowConfig describes workflow engine settings.
type WorkflowConfig struct {
	Store WorkflowStoreConfig `yaml:"store"`
}

// WorkflowStoreConfig describes process persistence settings. Driver is
// "memory" or "postgres"; the DSN is read from the named environment
// variable so credentials stay out of config files.
type WorkflowStoreConfig struct {
	Driver       string `yaml:"driver"`
	DSNEnv       string `yaml:"dsn_env"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// ClosingConfig describes the monthly closing scheduler.
type ClosingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// IdempotencyConfig describes the run-once guard backing closing runs.
// Driver is "memory" or "redis".
type IdempotencyConfig struct {
	Driver  string `yaml:"driver"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			Store: WorkflowStoreConfig{
				Driver:       "memory",
				DSNEnv:       "RINGI_DATABASE_URL",
				MaxOpenConns: 25,
			},
		},
		Closing: ClosingConfig{
			CheckInterval: 1 * time.Hour,
		},
		Idempotency: IdempotencyConfig{
			Driver:  "memory",
			AddrEnv: "RINGI_REDIS_ADDR",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	switch c.Workflow.Store.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("workflow.store.driver %q must be memory or postgres", c.Workflow.Store.Driver))
	}
	switch c.Idempotency.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("idempotency.driver %q must be memory or redis", c.Idempotency.Driver))
	}
	if c.Closing.Enabled && c.Closing.CheckInterval <= 0 {
		errs = append(errs, "closing.check_interval must be positive when closing is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads RINGI_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RINGI_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RINGI_STORE_DRIVER"); v != "" {
		cfg.Workflow.Store.Driver = v
	}
	if v := os.Getenv("RINGI_IDEMPOTENCY_DRIVER"); v != "" {
		cfg.Idempotency.Driver = v
	}
	if v := os.Getenv("RINGI_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
