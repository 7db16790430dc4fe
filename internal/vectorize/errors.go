package vectorize

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates an issue without a key. This is data
	// corruption upstream, not a normal skip.
	ErrMissingKey = errors.New("issue has no key")

	// ErrEmbedding indicates the embedding call failed for an issue.
	ErrEmbedding = errors.New("embedding failed")

	// ErrScrub indicates secret scrubbing failed for an issue.
	ErrScrub = errors.New("secret scrubbing failed")
)

// Error is a per-issue vectorization failure. The batch continues past it.
type Error struct {
	Key  string
	Kind error // ErrEmbedding or ErrScrub
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vectorizing %s: %v: %v", e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }
