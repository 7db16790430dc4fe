package tracker

import (
	"errors"
	"fmt"
)

// ErrFetch is matched by every FetchError.
var ErrFetch = errors.New("issue fetch failed")

// Kind distinguishes why a fetch produced no data.
type Kind int

const (
	// KindNoResponse means the relay failed or its envelope carried no content.
	KindNoResponse Kind = iota
	// KindUnparseable means content was present but the payload could not be decoded.
	KindUnparseable
)

func (k Kind) String() string {
	switch k {
	case KindNoResponse:
		return "no_response"
	case KindUnparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError reports a failed tracker fetch.
type FetchError struct {
	Tool string
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Tool, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func noResponse(tool string, err error) error {
	return &FetchError{Tool: tool, Kind: KindNoResponse, Err: err}
}

func unparseable(tool string, err error) error {
	return &FetchError{Tool: tool, Kind: KindUnparseable, Err: err}
}
