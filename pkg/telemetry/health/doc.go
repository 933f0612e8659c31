// Package health provides liveness and readiness endpoints for the engine.
//
// Components register readiness checks by name; "saturn run" registers one
// for the policy bindings (loaded at least once), the policy manager (not
// closed) and, when enabled, the transition journal (database reachable).
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("journal", store.Ping)
//	health.Register(mux, checker, version, commit, buildTime)
//
// Endpoints:
//   - /health: always 200 while the process runs
//   - /ready: 200 when every check passes, 503 otherwise
//   - /version: build information
package health
