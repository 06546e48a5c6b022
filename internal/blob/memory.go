package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps payloads in a map. Used in tests and local development
// where no object store is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[Ref][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[Ref][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, payload []byte) (Ref, error) {
	ref := Ref(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = append([]byte(nil), payload...)
	return ref, nil
}

func (s *InMemoryStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
	}
	return append([]byte(nil), payload...), nil
}

// Len reports the number of stored objects; used by tests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
