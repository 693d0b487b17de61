package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	// back-office API
	APIBaseURL            string `toml:"api_base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// session
	CredentialsPath string `toml:"credentials_path"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// telemetry
	MetricsAddr    string `toml:"metrics_addr"`
	TracingEnabled bool   `toml:"tracing_enabled"`
}

func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var configs Toml
	if _, err := toml.DecodeFile(path, &configs); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := configs.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}
