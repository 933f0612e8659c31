// Package config provides configuration management for the saturn policy engine.
//
// Configuration is read from a YAML file, completed with defaults and
// validated. Environment variables can override file values.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("saturn.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("saturn.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SATURN_SECTION_FIELD:
//
//   - SATURN_ENGINE_CACHE_TTL overrides engine.cache.ttl
//   - SATURN_POLICY_FILE_PATH overrides policy.file_path
//   - SATURN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Values that cannot be parsed are ignored.
//
// # Validation
//
// Validate collects every field error into a ValidationError:
//
//	if err := config.Validate(cfg); err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, fe := range verr.Errors {
//	            log.Printf("%s: %s", fe.Field, fe.Message)
//	        }
//	    }
//	}
//
// # Global Configuration
//
// Initialize stores a process-wide configuration read back with GetConfig.
// Components should receive their configuration section explicitly; the
// global instance is meant for the command line entry point.
package config
