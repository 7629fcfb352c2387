package overlay

import "errors"

var (
	// ErrNotFound is returned for an id with no stored overlay.
	ErrNotFound = errors.New("overlay not found")

	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("invalid overlay id format")
)

// ValidationError carries the client-facing reason an overlay was rejected.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }
