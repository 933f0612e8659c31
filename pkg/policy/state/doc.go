// Package state keeps the per-execution state of policies.
//
// While a policy chain runs, the engine needs two pieces of information keyed
// by (execution, policy): the latest event the policy observed, so its own
// variables can be restored after the wrapped step returns, and the wrapped
// step itself, so ExecuteNext can find it. Both are stored in a Handler.
//
// Entries are released automatically when the Context of the execution
// terminates (terminating a root Context terminates all of its children), or
// explicitly through DestroyState.
package state
