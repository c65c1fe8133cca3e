// Package core provides the memory orchestrator: the client that ties
// emotional analysis, importance scoring, dual-backend persistence, and
// consolidation into the public API.
package core

import (
	"errors"
	"fmt"

	"github.com/jarvis-labs/neuromem-go/pkg/consolidation"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested fragment was not found.
	ErrNotFound = storage.ErrNotFound

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates that a storage backend connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a relational storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrVectorUnavailable indicates that the vector backend was unreachable.
	// Callers only ever see it inside logs; retrieval degrades instead of
	// surfacing it.
	ErrVectorUnavailable = errors.New("vector store unavailable")

	// ErrLeaseContended indicates that a per-user consolidation lease could
	// not be acquired because another run is in flight.
	ErrLeaseContended = consolidation.ErrLeaseContended
)

// MemoryError wraps errors with operation context.
//
// Error() formats as "neuromem: <Op>: <Err>".
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("neuromem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work
// through the wrapper.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError wraps err with operation context. A nil err returns nil,
// so it can wrap return values unconditionally.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{Op: op, Err: err}
}
