package embeddings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the embedding credential is missing.
	ErrNotConfigured = errors.New("embedding service not configured")

	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrTransport indicates the embedding request failed or returned a non-2xx status.
	ErrTransport = errors.New("embedding transport error")

	// ErrMalformedResponse indicates a 2xx response without a usable vector.
	ErrMalformedResponse = errors.New("malformed embedding response")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")
)

// TransportError describes a failed embedding request. Status is 0 when no
// HTTP response was received.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("embedding request failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding request failed: status %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
