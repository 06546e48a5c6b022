// Package enrollment manages multi-sample voice enrollment sessions: token
// resolution, sample capture, and profile materialization when a session
// completes.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicegate/internal/blob"
	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/metrics"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/store/profile"
	"voicegate/internal/voice/store/sample"
	"voicegate/internal/voice/store/session"
	id "voicegate/pkg/domain"
	domainerrors "voicegate/pkg/domain-errors"
	"voicegate/pkg/platform/audit"
	"voicegate/pkg/platform/sentinel"
	"voicegate/pkg/requestcontext"
)

// Config carries the enrollment policy.
type Config struct {
	// SamplesRequired is the number of samples that complete an enrollment.
	SamplesRequired int
	// SessionTTL bounds how long a session stays resumable.
	SessionTTL time.Duration
}

const (
	DefaultSamplesRequired = 3
	DefaultSessionTTL      = 30 * time.Minute
)

// notResumable reports whether a CAS increment was aborted because the
// session expired or filled up between resolution and commit.
func notResumable(err error) bool {
	return errors.Is(err, sentinel.ErrExpired) || errors.Is(err, sentinel.ErrInvalidState)
}

// Manager implements the enrollment workflow.
type Manager struct {
	sessions  session.Store
	samples   sample.Store
	profiles  profile.Store
	blobs     blob.Store
	tokens    *TokenService
	cfg       Config
	publisher *audit.Publisher
	logger    *slog.Logger
}

func NewManager(sessions session.Store, samples sample.Store, profiles profile.Store,
	blobs blob.Store, tokens *TokenService, cfg Config,
	publisher *audit.Publisher, logger *slog.Logger) *Manager {

	if cfg.SamplesRequired <= 0 {
		cfg.SamplesRequired = DefaultSamplesRequired
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Manager{
		sessions:  sessions,
		samples:   samples,
		profiles:  profiles,
		blobs:     blobs,
		tokens:    tokens,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// SubmitResult reports enrollment progress after one accepted sample.
type SubmitResult struct {
	SessionToken    string
	SessionID       id.SessionID
	SamplesRecorded int
	SamplesRequired int
	IsComplete      bool
}

// SubmitSample records one sample for the subject. A missing, expired,
// foreign, or otherwise unusable session token silently starts a fresh
// session; callers must persist the returned token to make progress.
func (m *Manager) SubmitSample(ctx context.Context, subjectID id.SubjectID, sessionToken, audio string) (*SubmitResult, error) {
	cleaned := fingerprint.Normalize(audio)
	if cleaned == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "audio payload is required")
	}
	now := requestcontext.Now(ctx)

	sess, err := m.resolveSession(ctx, subjectID, sessionToken, now)
	if err != nil {
		return nil, err
	}

	blobRef, err := m.blobs.Put(ctx, []byte(cleaned))
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "store audio payload", err)
	}
	fp := fingerprint.FromEncoded(cleaned)

	updated, err := m.recordSample(ctx, sess.ID, now)
	if notResumable(err) {
		// The session filled or expired under us; behave like a stale token
		// and start over on a fresh session.
		sess, err = m.createSession(ctx, subjectID, now)
		if err != nil {
			return nil, err
		}
		updated, err = m.recordSample(ctx, sess.ID, now)
	}
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "record sample", err)
	}

	smp := &models.EnrollmentSample{
		ID:          id.NewSampleID(),
		SessionID:   updated.ID,
		SubjectID:   subjectID,
		SampleIndex: updated.SamplesRecorded,
		BlobRef:     blobRef,
		Fingerprint: fp,
		CreatedAt:   now,
	}
	if err := m.samples.Append(ctx, smp); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "persist sample", err)
	}

	metrics.ObserveSampleRecorded()
	m.publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		SubjectID: subjectID,
		Action:    audit.ActionSampleRecorded,
	})

	if updated.Status == models.SessionStatusCompleted {
		if err := m.completeEnrollment(ctx, subjectID, updated, now); err != nil {
			return nil, err
		}
	}

	token, err := m.tokens.Mint(subjectID, updated.ID, updated.ExpiresAt.Sub(now))
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "mint session token", err)
	}

	return &SubmitResult{
		SessionToken:    token,
		SessionID:       updated.ID,
		SamplesRecorded: updated.SamplesRecorded,
		SamplesRequired: updated.SamplesRequired,
		IsComplete:      updated.Status == models.SessionStatusCompleted,
	}, nil
}

// resolveSession returns the session a valid token points at, or a fresh one
// when the token is absent, invalid, expired, foreign, or the session is no
// longer resumable.
func (m *Manager) resolveSession(ctx context.Context, subjectID id.SubjectID, sessionToken string, now time.Time) (*models.EnrollmentSession, error) {
	if sessionToken != "" {
		tokenSubject, sessionID, err := m.tokens.Parse(sessionToken)
		if err == nil && tokenSubject == subjectID {
			sess, err := m.sessions.FindByID(ctx, sessionID)
			switch {
			case err == nil:
				if sess.SubjectID == subjectID && sess.Resumable(now) && sess.SamplesRecorded < sess.SamplesRequired {
					return sess, nil
				}
			case !errors.Is(err, sentinel.ErrNotFound):
				return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "resolve session", err)
			}
		}
		m.logger.DebugContext(ctx, "session token not resumable, starting fresh session",
			slog.String("subject_id", subjectID.String()))
	}
	return m.createSession(ctx, subjectID, now)
}

func (m *Manager) createSession(ctx context.Context, subjectID id.SubjectID, now time.Time) (*models.EnrollmentSession, error) {
	sess := &models.EnrollmentSession{
		ID:              id.NewSessionID(),
		SubjectID:       subjectID,
		SamplesRequired: m.cfg.SamplesRequired,
		Status:          models.SessionStatusActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.cfg.SessionTTL),
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "create session", err)
	}

	metrics.ObserveSessionStarted()
	m.publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		SubjectID: subjectID,
		Action:    audit.ActionEnrollmentStarted,
	})
	return sess, nil
}

// recordSample atomically increments the sample counter, transitioning the
// session to Completed when the last slot fills. The store's CAS semantics
// guarantee samplesRecorded never exceeds samplesRequired under concurrent
// uploads.
func (m *Manager) recordSample(ctx context.Context, sessionID id.SessionID, now time.Time) (*models.EnrollmentSession, error) {
	return m.sessions.Execute(ctx, sessionID,
		func(sess *models.EnrollmentSession) error {
			if !now.Before(sess.ExpiresAt) {
				return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrExpired)
			}
			if sess.Status != models.SessionStatusActive || sess.SamplesRecorded >= sess.SamplesRequired {
				return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrInvalidState)
			}
			return nil
		},
		func(sess *models.EnrollmentSession) {
			sess.SamplesRecorded++
			if sess.SamplesRecorded == sess.SamplesRequired {
				sess.Status = models.SessionStatusCompleted
			}
		},
	)
}

// Completion settle window. The CAS increment admits the completer before
// concurrent submissions on the same session have necessarily committed
// their sample rows, so the completer waits for the full set instead of
// materializing a profile with missing references.
const (
	settleAttempts = 40
	settleInterval = 25 * time.Millisecond
)

// sessionSamples returns the completed session's full sample set, waiting out
// in-flight appends from concurrent submissions.
func (m *Manager) sessionSamples(ctx context.Context, sess *models.EnrollmentSession) ([]*models.EnrollmentSample, error) {
	for attempt := 0; ; attempt++ {
		recorded, err := m.samples.ListBySession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if len(recorded) >= sess.SamplesRequired {
			return recorded, nil
		}
		if attempt >= settleAttempts {
			return nil, fmt.Errorf("session %s: %d of %d samples recorded",
				sess.ID, len(recorded), sess.SamplesRequired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settleInterval):
		}
	}
}

// completeEnrollment materializes the subject's profile from the completed
// session's samples. This is the only code path that mutates references or
// the model ref, and it runs exactly once per session: the CAS increment
// admits exactly one caller into the Completed transition.
func (m *Manager) completeEnrollment(ctx context.Context, subjectID id.SubjectID, sess *models.EnrollmentSession, now time.Time) error {
	recorded, err := m.sessionSamples(ctx, sess)
	if err != nil {
		return domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "load session samples", err)
	}

	refs := make([]fingerprint.Fingerprint, 0, len(recorded))
	for _, smp := range recorded {
		refs = append(refs, smp.Fingerprint)
	}

	prof := &models.VoiceProfile{
		SubjectID:  subjectID,
		References: refs,
		ModelRef:   "vm_" + uuid.NewString(),
		IsEnrolled: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := m.profiles.FindBySubject(ctx, subjectID); err == nil {
		prof.CreatedAt = existing.CreatedAt
	}

	if err := m.profiles.Upsert(ctx, prof); err != nil {
		return domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "persist voice profile", err)
	}

	metrics.ObserveSessionCompleted()
	m.publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		SubjectID: subjectID,
		Action:    audit.ActionEnrollmentCompleted,
	})
	m.logger.InfoContext(ctx, "enrollment completed",
		slog.String("subject_id", subjectID.String()),
		slog.String("session_id", sess.ID.String()),
		slog.Int("samples", len(refs)),
	)
	return nil
}

// EnrollmentStatus is the subject's current enrollment state.
type EnrollmentStatus struct {
	IsEnrolled      bool
	SamplesRequired int
	ReferenceCount  int
	LastMatchScore  *float64
}

// Status reports whether the subject is enrolled. Subjects with no profile
// are simply not enrolled; that is not an error.
func (m *Manager) Status(ctx context.Context, subjectID id.SubjectID) (*EnrollmentStatus, error) {
	status := &EnrollmentStatus{SamplesRequired: m.cfg.SamplesRequired}

	prof, err := m.profiles.FindBySubject(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "load voice profile", err)
	}

	status.IsEnrolled = prof.Enrolled()
	status.ReferenceCount = len(prof.References)
	status.LastMatchScore = prof.LastMatchScore
	return status, nil
}

func (m *Manager) publish(ctx context.Context, event audit.Event) {
	if m.publisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	if !m.publisher.Publish(event) {
		m.logger.Warn("audit inbox full, event dropped", slog.String("action", string(event.Action)))
	}
}
