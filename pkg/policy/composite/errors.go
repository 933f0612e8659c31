package composite

import "errors"

// ErrDisposed is returned for invocations of a composite policy that was
// already disposed.
var ErrDisposed = errors.New("composite policy disposed")

// ErrNoExecutionFunction is returned when the operation of an invocation is
// no longer available, e.g. because the invocation already completed.
var ErrNoExecutionFunction = errors.New("operation execution function not available")
