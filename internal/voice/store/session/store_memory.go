package session

import (
	"context"
	"fmt"
	"sync"

	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Used in tests and
// local development; production deployments use RedisStore.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[id.SessionID]models.EnrollmentSession
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]models.EnrollmentSession)}
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.EnrollmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.EnrollmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	copied := sess
	return &copied, nil
}

// Execute holds the store lock across validate and mutate, which gives the
// same exactly-once semantics the Redis WATCH transaction provides.
func (s *InMemoryStore) Execute(_ context.Context, sessionID id.SessionID,
	validate func(*models.EnrollmentSession) error,
	mutate func(*models.EnrollmentSession)) (*models.EnrollmentSession, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}

	if err := validate(&sess); err != nil {
		return nil, err
	}
	mutate(&sess)
	s.sessions[sessionID] = sess

	copied := sess
	return &copied, nil
}

// Len reports the number of stored sessions; used by tests.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var _ Store = (*InMemoryStore)(nil)
