package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

// Store writes vector records into named collections.
type Store interface {
	// EnsureCollection creates the collection, or succeeds if it exists.
	EnsureCollection(ctx context.Context, name string) (*Ack, error)

	// Upsert writes records in one request. Existing IDs are overwritten.
	Upsert(ctx context.Context, name string, records []vectorize.VectorRecord) (*Ack, error)

	// Close releases backend resources.
	Close() error
}

// Ack acknowledges a store operation.
type Ack struct {
	Collection string

	// Count is the number of records written.
	Count int

	// Skipped is set when nothing was sent, such as an empty batch.
	Skipped bool

	// Existed is set when EnsureCollection found the collection already present.
	Existed bool

	// Raw is the backend's response body, when it returned JSON.
	Raw json.RawMessage
}

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against ^[a-z0-9_]{1,64}$.
// Rejects uppercase, special chars, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// rawJSON returns body as a RawMessage when it is valid JSON.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}
