package orchestrator

import (
	"errors"
	"fmt"

	"livestream-gateway/internal/transcoder"
)

// ErrPlaylistNotReady is returned while the transcoder has not written its manifest yet.
var ErrPlaylistNotReady = errors.New("playlist not ready yet")

// ValidationError is malformed client input, rejected before any resource
// is allocated.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// IOError is a filesystem failure on a stream's output directory.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// StartError and StopError come from the process layer unchanged.
type (
	StartError = transcoder.StartError
	StopError  = transcoder.StopError
)
