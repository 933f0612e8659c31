package config

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"engine.sink_count", cfg.Engine.SinkCount, 0},
		{"engine.cache.ttl", cfg.Engine.Cache.TTL, DefaultCacheTTL},
		{"engine.cache.sweep_schedule", cfg.Engine.Cache.SweepSchedule, DefaultCacheSweepSchedule},
		{"policy.file_path", cfg.Policy.FilePath, DefaultPolicyFilePath},
		{"policy.debounce", cfg.Policy.Debounce, DefaultPolicyDebounce},
		{"policy.git.branch", cfg.Policy.Git.Branch, DefaultGitBranch},
		{"policy.git.poll_interval", cfg.Policy.Git.PollInterval, DefaultGitPollInterval},
		{"journal.driver", cfg.Journal.Driver, DefaultJournalDriver},
		{"journal.path", cfg.Journal.Path, DefaultJournalPath},
		{"journal.buffer_size", cfg.Journal.BufferSize, DefaultJournalBufferSize},
		{"journal.retention.days", cfg.Journal.Retention.Days, DefaultJournalRetentionDays},
		{"journal.retention.schedule", cfg.Journal.Retention.Schedule, DefaultJournalRetentionSchedule},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, DefaultServerShutdownTimeout},
		{"server.tls.reload_interval", cfg.Server.TLS.ReloadInterval, DefaultTLSReloadInterval},
		{"server.auth.header", cfg.Server.Auth.Header, DefaultServerAuthHeader},
		{"server.auth.public_paths", len(cfg.Server.Auth.PublicPaths), 2},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, DefaultLoggingLevel},
		{"telemetry.logging.format", cfg.Telemetry.Logging.Format, DefaultLoggingFormat},
		{"telemetry.metrics.path", cfg.Telemetry.Metrics.Path, DefaultPrometheusPath},
		{"telemetry.metrics.namespace", cfg.Telemetry.Metrics.Namespace, DefaultMetricsNamespace},
		{"telemetry.tracing.sampler", cfg.Telemetry.Tracing.Sampler, DefaultTracingSampler},
		{"telemetry.tracing.service_name", cfg.Telemetry.Tracing.ServiceName, DefaultTracingServiceName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Engine.Cache.TTL = 8 * time.Second
	cfg.Journal.Driver = "sqlite3"
	cfg.Telemetry.Logging.Level = "debug"

	ApplyDefaults(cfg)

	if cfg.Engine.Cache.TTL != 8*time.Second {
		t.Errorf("engine.cache.ttl = %s, want 8s", cfg.Engine.Cache.TTL)
	}
	if cfg.Journal.Driver != "sqlite3" {
		t.Errorf("journal.driver = %q, want sqlite3", cfg.Journal.Driver)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("telemetry.logging.level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg1 := &Config{}
	ApplyDefaults(cfg1)

	cfg2 := &Config{}
	ApplyDefaults(cfg2)
	ApplyDefaults(cfg2)

	if !reflect.DeepEqual(cfg1, cfg2) {
		t.Error("ApplyDefaults() is not idempotent")
	}
}

func TestNewDefault_IsValid(t *testing.T) {
	cfg := NewDefault()

	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics disabled by default, want enabled")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(NewDefault()) error = %v, want nil", err)
	}
}
