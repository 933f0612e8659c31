// Package notification reports policy layer transitions to listeners.
//
// Every policy processor fires a Before transition when the policy chain
// starts and an After transition when it completes, successfully or not.
// Listeners receive transitions synchronously on the processing goroutine
// and must not block; the tracing, metrics and journal listeners shipped
// with the engine all return promptly.
package notification
