package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an override references a decision that
	// is not in the ledger.
	ErrNotFound = errors.New("decision not found in ledger")

	// ErrInvalidOverride is returned for an override without an action or
	// reason.
	ErrInvalidOverride = errors.New("invalid override")
)

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // "memory" or "sqlite"
	Operation string // "append", "query", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// IntegrityError reports a broken hash chain found by Verify.
type IntegrityError struct {
	Seq    int64
	Reason string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at seq %d: %s", e.Seq, e.Reason)
}

// ExportError represents an error during export.
type ExportError struct {
	Format     string
	EntryCount int
	Cause      error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, entry_count=%d]: %v", e.Format, e.EntryCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}
