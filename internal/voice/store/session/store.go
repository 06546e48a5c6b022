// Package session persists enrollment sessions. Sessions are short-lived and
// mutate under concurrency (parallel sample uploads), so the store exposes an
// optimistic compare-and-swap primitive instead of a bare Update.
package session

import (
	"context"

	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
)

// Store is the enrollment session persistence interface.
type Store interface {
	// Create persists a new session. Fails with sentinel.ErrConflict if the
	// ID already exists.
	Create(ctx context.Context, sess *models.EnrollmentSession) error

	// FindByID returns the session or sentinel.ErrNotFound.
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.EnrollmentSession, error)

	// Execute atomically applies mutate to the session identified by
	// sessionID: it loads the session, runs validate against the loaded
	// state, applies mutate, and persists — failing the whole operation if
	// the session changed concurrently. A validation error aborts without
	// persisting anything. Returns the updated session.
	//
	// Callers must treat a concurrency failure as retryable.
	Execute(ctx context.Context, sessionID id.SessionID,
		validate func(*models.EnrollmentSession) error,
		mutate func(*models.EnrollmentSession)) (*models.EnrollmentSession, error)
}
