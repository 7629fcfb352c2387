package orchestrator

// Store is the storage abstraction behind the Registry. It does no locking
// of its own; the Registry serialises every call.
type Store interface {
	GetStream(id StreamID) (*Stream, bool)
	SetStream(s *Stream)
	DeleteStream(id StreamID)
	ListStreams() []*Stream
	Len() int
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	streams map[StreamID]*Stream
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		streams: make(map[StreamID]*Stream),
	}
}

// GetStream implements Store.GetStream.
func (s *InMemoryStore) GetStream(id StreamID) (*Stream, bool) {
	st, ok := s.streams[id]
	return st, ok
}

// SetStream implements Store.SetStream.
func (s *InMemoryStore) SetStream(st *Stream) {
	s.streams[st.ID] = st
}

// DeleteStream implements Store.DeleteStream.
func (s *InMemoryStore) DeleteStream(id StreamID) {
	delete(s.streams, id)
}

// ListStreams implements Store.ListStreams.
func (s *InMemoryStore) ListStreams() []*Stream {
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	return out
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	return len(s.streams)
}
