package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// StreamID uniquely identifies a live stream. It is a random UUID and is never reused.
type StreamID string

// State is the lifecycle state of a stream.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = [...]string{"starting", "running", "stopping", "stopped", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// MarshalJSON renders the state name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stream state %q", name)
}

// Process is the slice of a transcoder handle the lifecycle manager needs.
// *transcoder.Handle satisfies it.
type Process interface {
	Pid() int
	Alive() bool
	Done() <-chan struct{}
	ExitCode() int
	Terminate(grace time.Duration) error
}

// Stream is one active transcoding job. Identity fields are immutable after
// creation; state is updated atomically by the manager goroutines.
type Stream struct {
	ID           StreamID
	SourceURL    string
	OutputDir    string
	PlaylistPath string
	StartedAt    time.Time

	state   atomic.Int32
	process Process
}

func newStream(id StreamID, sourceURL, outputDir, playlistPath string, p Process) *Stream {
	st := &Stream{
		ID:           id,
		SourceURL:    sourceURL,
		OutputDir:    outputDir,
		PlaylistPath: playlistPath,
		StartedAt:    time.Now().UTC(),
		process:      p,
	}
	st.state.Store(int32(StateStarting))
	return st
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

func (s *Stream) setState(st State) {
	s.state.Store(int32(st))
}

// markRunning records that the playlist has been observed. It only moves
// STARTING to RUNNING and reports whether it did.
func (s *Stream) markRunning() bool {
	return s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

// Process returns the owned transcoder process, or nil once the stream has
// reached a terminal state.
func (s *Stream) Process() Process {
	if s.State().Terminal() {
		return nil
	}
	return s.process
}

// Alive reports whether the transcoder is still running.
func (s *Stream) Alive() bool {
	p := s.Process()
	return p != nil && p.Alive()
}

// StreamInfo is returned by a successful start.
type StreamInfo struct {
	StreamID    StreamID `json:"stream_id"`
	PlaylistURL string   `json:"playlist_url"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
}

// StatusInfo is the observable status of one stream.
type StatusInfo struct {
	StreamID      StreamID  `json:"stream_id"`
	IsRunning     bool      `json:"is_running"`
	PlaylistReady bool      `json:"playlist_ready"`
	PlaylistURL   *string   `json:"playlist_url"`
	State         State     `json:"state"`
	SegmentCount  int       `json:"segment_count"`
	StartedAt     time.Time `json:"started_at"`
}

// StreamSummary is a value snapshot of one stream for listings.
type StreamSummary struct {
	StreamID      StreamID  `json:"stream_id"`
	SourceURL     string    `json:"rtsp_url"`
	IsRunning     bool      `json:"is_running"`
	PlaylistReady bool      `json:"playlist_ready"`
	State         State     `json:"state"`
	StartedAt     time.Time `json:"started_at"`
}
