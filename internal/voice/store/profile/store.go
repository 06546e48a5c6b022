// Package profile persists voice profiles, one per subject.
package profile

import (
	"context"

	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
)

// Store is the voice profile persistence interface.
type Store interface {
	// FindBySubject returns the subject's profile or sentinel.ErrNotFound.
	FindBySubject(ctx context.Context, subjectID id.SubjectID) (*models.VoiceProfile, error)

	// Upsert creates or replaces the subject's profile. Enrollment
	// completion calls this exactly once per completed session.
	Upsert(ctx context.Context, profile *models.VoiceProfile) error

	// SetLastMatchScore records the score of the most recent verification
	// attempt. Missing profiles return sentinel.ErrNotFound.
	SetLastMatchScore(ctx context.Context, subjectID id.SubjectID, score float64) error
}
