package orchestrator

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned for an unknown or already removed stream id.
	ErrNotFound = errors.New("stream not found")

	// ErrStreamExists is returned when registering an id that is already active.
	ErrStreamExists = errors.New("stream already registered")
)

// Registry is the concurrency-safe set of active streams and the single
// source of truth for which ids exist. Callers never perform blocking I/O
// while the lock is held: Remove hands the entry back so teardown happens
// outside the critical section.
type Registry struct {
	mu    sync.RWMutex
	store Store
}

// NewRegistry constructs a registry backed by an in-memory store.
func NewRegistry() *Registry {
	return NewRegistryWithStore(NewInMemoryStore())
}

// NewRegistryWithStore constructs a registry that uses the given Store.
func NewRegistryWithStore(store Store) *Registry {
	return &Registry{store: store}
}

// Register inserts st. It fails with ErrStreamExists if the id is taken.
func (r *Registry) Register(st *Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetStream(st.ID); exists {
		return ErrStreamExists
	}
	r.store.SetStream(st)
	return nil
}

// Lookup returns the stream registered under id.
func (r *Registry) Lookup(id StreamID) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.GetStream(id)
}

// Remove atomically takes the stream out of the registry. Exactly one of
// any number of concurrent callers receives ok == true for a given id.
func (r *Registry) Remove(id StreamID) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, exists := r.store.GetStream(id)
	if !exists {
		return nil, false
	}
	r.store.DeleteStream(id)
	return st, true
}

// Snapshot returns the registered streams ordered by start time. The slice
// is a copy; the streams themselves are shared and must be treated as read-only.
func (r *Registry) Snapshot() []*Stream {
	r.mu.RLock()
	streams := r.store.ListStreams()
	r.mu.RUnlock()

	sort.Slice(streams, func(i, j int) bool {
		if streams[i].StartedAt.Equal(streams[j].StartedAt) {
			return streams[i].ID < streams[j].ID
		}
		return streams[i].StartedAt.Before(streams[j].StartedAt)
	})
	return streams
}

// IDs returns the ids of all registered streams.
func (r *Registry) IDs() []StreamID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streams := r.store.ListStreams()
	ids := make([]StreamID, 0, len(streams))
	for _, st := range streams {
		ids = append(ids, st.ID)
	}
	return ids
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.Len()
}

// List returns value summaries of all registered streams in start order.
// Playlist checks touch the filesystem, so they run after the lock is released.
func (r *Registry) List() []StreamSummary {
	streams := r.Snapshot()
	out := make([]StreamSummary, 0, len(streams))
	for _, st := range streams {
		out = append(out, summarize(st))
	}
	return out
}

func summarize(st *Stream) StreamSummary {
	ready := playlistExists(st.PlaylistPath)
	return StreamSummary{
		StreamID:      st.ID,
		SourceURL:     st.SourceURL,
		IsRunning:     st.Alive(),
		PlaylistReady: ready,
		State:         observedState(st.State(), ready),
		StartedAt:     st.StartedAt,
	}
}

// observedState reports RUNNING for a starting stream whose playlist is
// already on disk, even if the watcher has not recorded it yet.
func observedState(s State, playlistReady bool) State {
	if s == StateStarting && playlistReady {
		return StateRunning
	}
	return s
}
