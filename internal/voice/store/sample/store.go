// Package sample persists enrollment samples. The store is append-only:
// samples are never updated or deleted once recorded.
package sample

import (
	"context"

	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
)

// Store is the enrollment sample persistence interface.
type Store interface {
	// Append records a sample. Fails with sentinel.ErrConflict when the
	// (session, index) slot is already taken, which keeps racing uploads
	// from double-filling a slot.
	Append(ctx context.Context, sample *models.EnrollmentSample) error

	// ListBySession returns the session's samples ordered by sample index.
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.EnrollmentSample, error)
}
