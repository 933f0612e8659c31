package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultCacheTTL           = 60 * time.Second
	DefaultCacheSweepSchedule = "@every 1m"

	// Policy defaults
	DefaultPolicyFilePath = "./policies.yaml"
	DefaultPolicyDebounce = 100 * time.Millisecond
	DefaultGitBranch       = "main"
	DefaultGitPath         = "policies.yaml"
	DefaultGitLocalPath    = "data/policies"
	DefaultGitPollInterval = 30 * time.Second
	DefaultGitTimeout      = 10 * time.Second
	DefaultGitAuthType     = "none"

	// Journal defaults
	DefaultJournalDriver            = "sqlite"
	DefaultJournalPath              = "data/journal.db"
	DefaultJournalMaxOpenConns      = 4
	DefaultJournalBusyTimeout       = 5 * time.Second
	DefaultJournalBufferSize        = 1000
	DefaultJournalWriteTimeout      = 5 * time.Second
	DefaultJournalRetentionDays     = 7
	DefaultJournalRetentionSchedule = "0 3 * * *"

	// Server defaults
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerIdleTimeout     = 120 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerAuthHeader      = "Authorization"
	DefaultTLSReloadInterval     = 5 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsListen       = "127.0.0.1:9090"
	DefaultMetricsNamespace    = "saturn"
	DefaultMetricsSubsystem    = "engine"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 0.1
	DefaultTracingServiceName  = "saturn"
	DefaultOTLPTimeout         = 10 * time.Second
)

// NewDefault returns a configuration with every default applied.
// Booleans that default to true are set here; ApplyDefaults cannot tell an
// explicit false from an omitted field.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for every zero-valued field.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.Cache.TTL == 0 {
		cfg.Engine.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Engine.Cache.SweepSchedule == "" {
		cfg.Engine.Cache.SweepSchedule = DefaultCacheSweepSchedule
	}

	// Policy defaults
	if cfg.Policy.FilePath == "" {
		cfg.Policy.FilePath = DefaultPolicyFilePath
	}
	if cfg.Policy.Debounce == 0 {
		cfg.Policy.Debounce = DefaultPolicyDebounce
	}
	if cfg.Policy.Git.Branch == "" {
		cfg.Policy.Git.Branch = DefaultGitBranch
	}
	if cfg.Policy.Git.Path == "" {
		cfg.Policy.Git.Path = DefaultGitPath
	}
	if cfg.Policy.Git.LocalPath == "" {
		cfg.Policy.Git.LocalPath = DefaultGitLocalPath
	}
	if cfg.Policy.Git.PollInterval == 0 {
		cfg.Policy.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Policy.Git.Auth.Type == "" {
		cfg.Policy.Git.Auth.Type = DefaultGitAuthType
	}

	// Journal defaults
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = DefaultJournalDriver
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.MaxOpenConns == 0 {
		cfg.Journal.MaxOpenConns = DefaultJournalMaxOpenConns
	}
	if cfg.Journal.BusyTimeout == 0 {
		cfg.Journal.BusyTimeout = DefaultJournalBusyTimeout
	}
	if cfg.Journal.BufferSize == 0 {
		cfg.Journal.BufferSize = DefaultJournalBufferSize
	}
	if cfg.Journal.WriteTimeout == 0 {
		cfg.Journal.WriteTimeout = DefaultJournalWriteTimeout
	}
	if cfg.Journal.Retention.Days == 0 {
		cfg.Journal.Retention.Days = DefaultJournalRetentionDays
	}
	if cfg.Journal.Retention.Schedule == "" {
		cfg.Journal.Retention.Schedule = DefaultJournalRetentionSchedule
	}

	// Server defaults
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultServerIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
	if cfg.Server.Auth.Header == "" {
		cfg.Server.Auth.Header = DefaultServerAuthHeader
	}
	if cfg.Server.Auth.PublicPaths == nil {
		cfg.Server.Auth.PublicPaths = []string{"/health", "/ready"}
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListen
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
