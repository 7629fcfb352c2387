package overlay

import (
	"context"
	"sync"
)

// Store persists overlay documents. Implementations return ErrNotFound for
// unknown ids and need not order List results.
type Store interface {
	Insert(ctx context.Context, o Overlay) error
	Get(ctx context.Context, id string) (Overlay, error)
	Replace(ctx context.Context, o Overlay) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int, error)
	List(ctx context.Context, f Filter) ([]Overlay, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore keeps overlays in a map. Contents are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Overlay
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Overlay)}
}

func (s *MemoryStore) Insert(_ context.Context, o Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[o.ID] = cloneOverlay(o)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Overlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.docs[id]
	if !ok {
		return Overlay{}, ErrNotFound
	}
	return cloneOverlay(o), nil
}

func (s *MemoryStore) Replace(_ context.Context, o Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[o.ID]; !ok {
		return ErrNotFound
	}
	s.docs[o.ID] = cloneOverlay(o)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Overlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Overlay, 0, len(s.docs))
	for _, o := range s.docs {
		if f.matches(o) {
			out = append(out, cloneOverlay(o))
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
