package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.cache.ttl").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateSchedule(field, spec string) []FieldError {
	if spec == "" {
		return []FieldError{{Field: field, Message: "schedule is required"}}
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid cron schedule %q: %v", spec, err)}}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.SinkCount < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.sink_count",
			Message: fmt.Sprintf("sink count must be non-negative, got %d", cfg.SinkCount),
		})
	}
	if cfg.Cache.TTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.cache.ttl",
			Message: fmt.Sprintf("cache ttl must be positive, got %s", cfg.Cache.TTL),
		})
	}
	errs = append(errs, validateSchedule("engine.cache.sweep_schedule", cfg.Cache.SweepSchedule)...)

	seen := make(map[string]bool, len(cfg.PointcutFactories))
	for i, f := range cfg.PointcutFactories {
		field := fmt.Sprintf("engine.pointcut_factories[%d].namespace", i)
		switch {
		case f.Namespace == "":
			errs = append(errs, FieldError{Field: field, Message: "namespace is required"})
		case seen[f.Namespace]:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate namespace %q", f.Namespace)})
		}
		seen[f.Namespace] = true
	}

	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.FilePath == "" {
		errs = append(errs, FieldError{
			Field:   "policy.file_path",
			Message: "policy file path is required",
		})
	}
	if cfg.Watch && cfg.Debounce <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "debounce must be positive when watch is enabled",
		})
	}
	if cfg.Git.Enabled {
		errs = append(errs, validateGit(&cfg.Git)...)
	}

	return errs
}

func validateGit(cfg *GitPolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "policy.git.repository", Message: "repository is required when git is enabled"})
	}
	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "policy.git.branch", Message: "branch is required"})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: "policy.git.path", Message: "bindings file path is required"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.git.timeout",
			Message: fmt.Sprintf("timeout must be positive, got %s", cfg.Timeout),
		})
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.git.poll_interval",
			Message: fmt.Sprintf("poll interval must be non-negative, got %s", cfg.PollInterval),
		})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.token", Message: "token is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.ssh_key_path", Message: "ssh key path is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'token', 'ssh' or 'none'", cfg.Auth.Type),
		})
	}

	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	switch cfg.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "journal.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.Driver),
		})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "journal.path",
			Message: "journal path is required when the journal is enabled",
		})
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "journal.buffer_size",
			Message: fmt.Sprintf("buffer size must be positive, got %d", cfg.BufferSize),
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.days",
			Message: fmt.Sprintf("retention days must be non-negative, got %d", cfg.Retention.Days),
		})
	}
	if cfg.Retention.Days > 0 {
		errs = append(errs, validateSchedule("journal.retention.schedule", cfg.Retention.Schedule)...)
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: fmt.Sprintf("shutdown timeout must be positive, got %s", cfg.ShutdownTimeout),
		})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
		if cfg.TLS.ReloadInterval < 0 {
			errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "reload interval must not be negative"})
		}
	}
	if cfg.Auth.Enabled {
		if len(cfg.Auth.Keys) == 0 {
			errs = append(errs, FieldError{Field: "server.auth.keys", Message: "at least one key is required when auth is enabled"})
		}
		seen := make(map[string]bool)
		for i, k := range cfg.Auth.Keys {
			field := fmt.Sprintf("server.auth.keys[%d]", i)
			if k.Key == "" {
				errs = append(errs, FieldError{Field: field + ".key", Message: "key must not be empty"})
				continue
			}
			if seen[k.Key] {
				errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
			}
			seen[k.Key] = true
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: fmt.Sprintf("metrics path must start with '/', got %q", cfg.Metrics.Path),
			})
		}
		for i := 1; i < len(cfg.Metrics.PolicyDurationBuckets); i++ {
			if cfg.Metrics.PolicyDurationBuckets[i] <= cfg.Metrics.PolicyDurationBuckets[i-1] {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.policy_duration_buckets",
					Message: "buckets must be strictly increasing",
				})
				break
			}
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %f", cfg.Tracing.SampleRatio),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}
