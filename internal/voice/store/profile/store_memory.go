package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Used in tests and
// local development; production deployments use PostgresStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.SubjectID]models.VoiceProfile
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.SubjectID]models.VoiceProfile)}
}

func (s *InMemoryStore) FindBySubject(_ context.Context, subjectID id.SubjectID) (*models.VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[subjectID]
	if !ok {
		return nil, fmt.Errorf("profile for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return cloneProfile(&profile), nil
}

func (s *InMemoryStore) Upsert(_ context.Context, profile *models.VoiceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.SubjectID] = *cloneProfile(profile)
	return nil
}

func (s *InMemoryStore) SetLastMatchScore(_ context.Context, subjectID id.SubjectID, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[subjectID]
	if !ok {
		return fmt.Errorf("profile for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	profile.LastMatchScore = &score
	profile.UpdatedAt = time.Now()
	s.profiles[subjectID] = profile
	return nil
}

func cloneProfile(p *models.VoiceProfile) *models.VoiceProfile {
	copied := *p
	copied.References = make([]fingerprint.Fingerprint, len(p.References))
	for i, ref := range p.References {
		copied.References[i] = fingerprint.Fingerprint{
			Vector: append([]float64(nil), ref.Vector...),
			Length: ref.Length,
		}
	}
	if p.LastMatchScore != nil {
		score := *p.LastMatchScore
		copied.LastMatchScore = &score
	}
	return &copied
}

var _ Store = (*InMemoryStore)(nil)
