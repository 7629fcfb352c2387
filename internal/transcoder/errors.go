package transcoder

import (
	"fmt"
)

// StartError reports that the transcoder executable could not be launched
// (not found, permission denied, pipe setup failure). Failures of the
// transcoding itself are only visible later through the exit code.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("launch transcoder %q: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports a process that was still running after SIGKILL.
type StopError struct {
	Pid int
	Err error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("stop transcoder pid %d: %v", e.Pid, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// FilterError reports overlay input that cannot be expressed safely in a
// filter graph.
type FilterError struct {
	Index  int
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("overlay %d: %s", e.Index, e.Reason)
}
