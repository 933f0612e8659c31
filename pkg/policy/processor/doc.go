// Package processor applies a single policy around the step it wraps.
//
// A policy processor runs the policy chain and registers, for the duration of
// the chain, the wrapped step under the (execution, policy) key so that the
// ExecuteNext processor used inside the chain can find it. It also enforces
// variable isolation: the policy chain only sees its own variables, and the
// wrapped step only sees the flow's.
//
// Composite policies obtain processors through a Factory, so alternative
// processors (for example ones adding instrumentation) can be plugged in.
package processor
