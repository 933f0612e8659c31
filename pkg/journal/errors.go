package journal

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("journal: store closed")

// StorageError represents a failed database operation.
type StorageError struct {
	Driver    string // "sqlite" or "sqlite3"
	Operation string // "open", "record", "query", "prune", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error [driver=%s, operation=%s]: %v", e.Driver, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(driver, operation string, cause error) *StorageError {
	return &StorageError{
		Driver:    driver,
		Operation: operation,
		Cause:     cause,
	}
}
