package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding file configuration.
const EnvPrefix = "SATURN_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. The result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = true

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the SATURN_SECTION_FIELD
// convention (e.g. SATURN_ENGINE_CACHE_TTL) and take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

type envOverride struct {
	name  string
	apply func(cfg *Config, val string)
}

func stringVar(set func(*Config, string)) func(*Config, string) {
	return set
}

func intVar(set func(*Config, int)) func(*Config, string) {
	return func(cfg *Config, val string) {
		if n, err := strconv.Atoi(val); err == nil {
			set(cfg, n)
		}
	}
}

func boolVar(set func(*Config, bool)) func(*Config, string) {
	return func(cfg *Config, val string) {
		if b, err := strconv.ParseBool(val); err == nil {
			set(cfg, b)
		}
	}
}

func floatVar(set func(*Config, float64)) func(*Config, string) {
	return func(cfg *Config, val string) {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			set(cfg, f)
		}
	}
}

func durationVar(set func(*Config, time.Duration)) func(*Config, string) {
	return func(cfg *Config, val string) {
		if d, err := time.ParseDuration(val); err == nil {
			set(cfg, d)
		}
	}
}

// envOverrides lists every supported override. Unparseable values are ignored
// and the file value is kept.
var envOverrides = []envOverride{
	// Engine
	{"ENGINE_SINK_COUNT", intVar(func(c *Config, v int) { c.Engine.SinkCount = v })},
	{"ENGINE_CACHE_TTL", durationVar(func(c *Config, v time.Duration) { c.Engine.Cache.TTL = v })},
	{"ENGINE_CACHE_SWEEP_SCHEDULE", stringVar(func(c *Config, v string) { c.Engine.Cache.SweepSchedule = v })},

	// Policy
	{"POLICY_FILE_PATH", stringVar(func(c *Config, v string) { c.Policy.FilePath = v })},
	{"POLICY_WATCH", boolVar(func(c *Config, v bool) { c.Policy.Watch = v })},
	{"POLICY_DEBOUNCE", durationVar(func(c *Config, v time.Duration) { c.Policy.Debounce = v })},
	{"POLICY_GIT_ENABLED", boolVar(func(c *Config, v bool) { c.Policy.Git.Enabled = v })},
	{"POLICY_GIT_REPOSITORY", stringVar(func(c *Config, v string) { c.Policy.Git.Repository = v })},
	{"POLICY_GIT_BRANCH", stringVar(func(c *Config, v string) { c.Policy.Git.Branch = v })},
	{"POLICY_GIT_AUTH_TOKEN", stringVar(func(c *Config, v string) { c.Policy.Git.Auth.Token = v })},

	// Journal
	{"JOURNAL_ENABLED", boolVar(func(c *Config, v bool) { c.Journal.Enabled = v })},
	{"JOURNAL_DRIVER", stringVar(func(c *Config, v string) { c.Journal.Driver = strings.ToLower(v) })},
	{"JOURNAL_PATH", stringVar(func(c *Config, v string) { c.Journal.Path = v })},
	{"JOURNAL_BUFFER_SIZE", intVar(func(c *Config, v int) { c.Journal.BufferSize = v })},
	{"JOURNAL_RETENTION_DAYS", intVar(func(c *Config, v int) { c.Journal.Retention.Days = v })},
	{"JOURNAL_RETENTION_SCHEDULE", stringVar(func(c *Config, v string) { c.Journal.Retention.Schedule = v })},

	// Server
	{"SERVER_SHUTDOWN_TIMEOUT", durationVar(func(c *Config, v time.Duration) { c.Server.ShutdownTimeout = v })},
	{"SERVER_TLS_ENABLED", boolVar(func(c *Config, v bool) { c.Server.TLS.Enabled = v })},
	{"SERVER_TLS_CERT_FILE", stringVar(func(c *Config, v string) { c.Server.TLS.CertFile = v })},
	{"SERVER_TLS_KEY_FILE", stringVar(func(c *Config, v string) { c.Server.TLS.KeyFile = v })},
	{"SERVER_AUTH_ENABLED", boolVar(func(c *Config, v bool) { c.Server.Auth.Enabled = v })},

	// Telemetry
	{"TELEMETRY_LOGGING_LEVEL", stringVar(func(c *Config, v string) { c.Telemetry.Logging.Level = strings.ToLower(v) })},
	{"TELEMETRY_LOGGING_FORMAT", stringVar(func(c *Config, v string) { c.Telemetry.Logging.Format = strings.ToLower(v) })},
	{"TELEMETRY_METRICS_ENABLED", boolVar(func(c *Config, v bool) { c.Telemetry.Metrics.Enabled = v })},
	{"TELEMETRY_METRICS_LISTEN_ADDRESS", stringVar(func(c *Config, v string) { c.Telemetry.Metrics.ListenAddress = v })},
	{"TELEMETRY_TRACING_ENABLED", boolVar(func(c *Config, v bool) { c.Telemetry.Tracing.Enabled = v })},
	{"TELEMETRY_TRACING_ENDPOINT", stringVar(func(c *Config, v string) { c.Telemetry.Tracing.Endpoint = v })},
	{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(func(c *Config, v float64) { c.Telemetry.Tracing.SampleRatio = v })},
}

// applyEnvOverrides applies SATURN_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if val := os.Getenv(EnvPrefix + o.name); val != "" {
			o.apply(cfg, val)
		}
	}
}
