package policy

import "mercator-hq/saturn/pkg/event"

// Callback receives the outcome of an asynchronous processing step.
// Exactly one of result and err is meaningful: err != nil means failure.
type Callback func(result *event.Event, err error)

// Processor is an asynchronous processing step.
//
// Implementations must invoke done exactly once, either before returning or
// later from any goroutine.
type Processor interface {
	Process(ev *event.Event, done Callback)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ev *event.Event, done Callback)

// Process calls f(ev, done).
func (f ProcessorFunc) Process(ev *event.Event, done Callback) {
	f(ev, done)
}

// Executor runs tasks. It is used to move chain processing onto a specific
// scheduler (processing affinity).
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

// GoExecutor runs every task on a new goroutine.
var GoExecutor Executor = ExecutorFunc(func(task func()) { go task() })
