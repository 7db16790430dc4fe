package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrStore matches every *StoreError.
	ErrStore = errors.New("vector store error")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrInvalidCollectionName indicates a collection name that fails validation.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrCollectionNotFound indicates an upsert into a collection that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Op names the failed store operation.
type Op string

const (
	OpCreate Op = "create_collection"
	OpUpsert Op = "upsert"
)

// StoreError describes a failed store operation. Status and Body are set for
// HTTP backends when a response was received.
type StoreError struct {
	Op     Op
	Status int
	Body   string
	Err    error
}

func (e *StoreError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("vector store %s: status %d: %s", e.Op, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("vector store %s failed", e.Op)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }
