package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an experiment or variant does not exist.
	ErrNotFound = errors.New("experiment not found")

	// ErrInvalidState is returned when an operation is not allowed in the
	// experiment's current status.
	ErrInvalidState = errors.New("invalid experiment state")
)

// InvariantError reports an operation that would leave an experiment in an
// invalid state. The operation is aborted.
type InvariantError struct {
	ExperimentID string
	Reason       string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.ExperimentID == "" {
		return fmt.Sprintf("experiment invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("experiment %s invariant violated: %s", e.ExperimentID, e.Reason)
}

// StateError reports a disallowed status transition or operation.
type StateError struct {
	ExperimentID string
	Operation    string
	Status       Status
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s experiment %s in status %s", e.Operation, e.ExperimentID, e.Status)
}

// Unwrap returns ErrInvalidState.
func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// StorageError represents an error from the experiment store.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("experiment storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
