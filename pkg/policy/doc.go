// Package policy defines the building blocks of the policy execution engine.
//
// A Policy is an identified Chain of asynchronous processors wrapped around the
// execution of a message source (a flow) or of an operation. Inside the chain,
// the ExecuteNext processor hands the event to whatever the policy wraps: the
// next policy, or the flow/operation itself.
//
// Processors are continuation-passing: Process receives the event and a
// Callback that must be invoked exactly once with either a result event or an
// error. This lets a processor complete synchronously, hop to another goroutine,
// or wait on I/O without blocking the caller.
//
// # Errors
//
// Every failure that leaves the engine is a *MessagingError. Its Stage field
// tells where the failure originated:
//
//   - StagePolicy: a processor of a policy chain failed
//   - StageFlow: the wrapped flow failed
//   - StageOperation: the wrapped operation failed
//
// The original cause is always reachable through errors.Is / errors.As.
package policy
