package sample

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Used in tests and
// local development; production deployments use PostgresStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	samples map[id.SessionID][]models.EnrollmentSample
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{samples: make(map[id.SessionID][]models.EnrollmentSample)}
}

func (s *InMemoryStore) Append(_ context.Context, sample *models.EnrollmentSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.samples[sample.SessionID] {
		if existing.SampleIndex == sample.SampleIndex {
			return fmt.Errorf("sample %d for session %s: %w",
				sample.SampleIndex, sample.SessionID, sentinel.ErrConflict)
		}
	}
	s.samples[sample.SessionID] = append(s.samples[sample.SessionID], *cloneSample(sample))
	return nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]*models.EnrollmentSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.samples[sessionID]
	out := make([]*models.EnrollmentSample, 0, len(stored))
	for i := range stored {
		out = append(out, cloneSample(&stored[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SampleIndex < out[j].SampleIndex })
	return out, nil
}

func cloneSample(in *models.EnrollmentSample) *models.EnrollmentSample {
	copied := *in
	copied.Fingerprint = fingerprint.Fingerprint{
		Vector: append([]float64(nil), in.Fingerprint.Vector...),
		Length: in.Fingerprint.Length,
	}
	return &copied
}

var _ Store = (*InMemoryStore)(nil)
