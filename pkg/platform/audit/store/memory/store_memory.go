package memory

import (
	"context"
	"sync"

	id "voicegate/pkg/domain"
	audit "voicegate/pkg/platform/audit"
)

// InMemoryStore keeps audit events per subject. Useful for tests and
// single-node deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.SubjectID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.SubjectID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SubjectID] = append(s.events[event.SubjectID], event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[subjectID]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.SubjectID][]audit.Event)
}
