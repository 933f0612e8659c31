package config

import "time"

// Config is the root configuration of the policy engine.
type Config struct {
	// Engine contains policy pipeline and cache configuration.
	Engine EngineConfig `yaml:"engine"`

	// Policy contains policy bindings source configuration.
	Policy PolicyConfig `yaml:"policy"`

	// Journal contains transition journal configuration.
	Journal JournalConfig `yaml:"journal"`

	// Server contains configuration of the HTTP server exposing metrics and
	// health endpoints.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains configuration of composite policies and the policy manager.
type EngineConfig struct {
	// SinkCount is the number of sinks of each composite policy.
	// Default: 0 (runtime.NumCPU())
	SinkCount int `yaml:"sink_count"`

	// Cache contains applicability cache configuration.
	Cache CacheConfig `yaml:"cache"`

	// PointcutFactories declares attribute based pointcut parameters
	// factories, one per component namespace.
	PointcutFactories []PointcutFactoryConfig `yaml:"pointcut_factories"`
}

// CacheConfig contains applicability cache configuration.
type CacheConfig struct {
	// TTL is how long the policies resolved for a component stay cached.
	// Default: 60s
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is the cron schedule removing expired entries.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// PointcutFactoryConfig declares an attribute based pointcut parameters factory.
type PointcutFactoryConfig struct {
	// Namespace is the component namespace the factory supports (e.g. "http").
	Namespace string `yaml:"namespace"`

	// Attributes are the invocation attributes kept in the parameters.
	Attributes []string `yaml:"attributes"`
}

// PolicyConfig contains policy bindings source configuration.
type PolicyConfig struct {
	// FilePath is the path to the policy bindings file.
	// Default: "./policies.yaml"
	FilePath string `yaml:"file_path"`

	// Watch enables hot reload of the bindings file.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the delay applied to file change events before reloading.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// Git loads the bindings file from a Git repository instead of FilePath.
	Git GitPolicyConfig `yaml:"git"`
}

// GitPolicyConfig configures Git based bindings loading. When enabled the
// repository is cloned to LocalPath and the bindings file is read from
// LocalPath/Path.
type GitPolicyConfig struct {
	// Enabled determines if Git mode is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS, SSH or a local path).
	// Example: "https://github.com/company/policies.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path of the bindings file within the repository.
	// Default: "policies.yaml"
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/policies"
	LocalPath string `yaml:"local_path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// PollInterval is the delay between fetches. Zero disables polling.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication. Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath is the private key file. Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// JournalConfig contains transition journal configuration.
type JournalConfig struct {
	// Enabled controls whether policy transitions are persisted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the SQLite driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long SQLite waits for a lock.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// BufferSize is the number of transitions buffered for asynchronous writes.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention contains retention configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains journal retention configuration.
type RetentionConfig struct {
	// Days is the number of days transitions are kept. 0 keeps them forever.
	// Default: 7
	Days int `yaml:"days"`

	// Schedule is the cron schedule of the pruning job.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// ServerConfig contains HTTP server configuration. The listen address is
// telemetry.metrics.listen_address.
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS contains TLS configuration.
	TLS TLSConfig `yaml:"tls"`

	// Auth protects the endpoints with API keys.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig contains API key authentication of the HTTP endpoints.
type AuthConfig struct {
	// Enabled controls whether requests must carry a valid API key.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Keys are the accepted API keys.
	Keys []APIKeyConfig `yaml:"keys"`

	// Header is the request header carrying the key. "Authorization" expects
	// a "Bearer <key>" value.
	// Default: "Authorization"
	Header string `yaml:"header"`

	// PublicPaths are served without authentication.
	// Default: ["/health", "/ready"]
	PublicPaths []string `yaml:"public_paths"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	// Name identifies the key holder in logs.
	Name string `yaml:"name"`

	// Key is the secret value.
	Key string `yaml:"key"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	// Enabled controls whether the server uses TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM encoded certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM encoded private key.
	KeyFile string `yaml:"key_file"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. 0 disables reloading.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress is the address the metrics endpoint listens on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric name prefix.
	// Default: "saturn"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// PolicyDurationBuckets defines histogram buckets for policy layer duration (seconds).
	PolicyDurationBuckets []float64 `yaml:"policy_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "saturn"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
