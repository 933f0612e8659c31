// Package logging provides structured logging for the policy engine.
//
// Loggers wrap log/slog. Records logged with a context carry the execution
// fields stored in it (execution_id, correlation_id, policy_id, component,
// trace_id), so a policy failure can be followed across nested executions.
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithExecutionID(ctx, ev.ID())
//	ctx = logging.WithPolicyID(ctx, "rate-limit")
//	logger.DebugContext(ctx, "policy chain failed", "error", err)
//
// Components accept a plain *slog.Logger; pass logger.Slog().
package logging
