// Package models defines the voice enrollment and verification domain types.
package models

import (
	"time"

	"voicegate/internal/blob"
	"voicegate/internal/voice/fingerprint"
	id "voicegate/pkg/domain"
)

// SessionStatus is the lifecycle state of an enrollment session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusExpired   SessionStatus = "expired"
)

// EnrollmentSession tracks one subject's multi-sample enrollment. Sessions
// are single-use and time-boxed; a completed or expired session accepts no
// further samples.
type EnrollmentSession struct {
	ID              id.SessionID  `json:"id"`
	SubjectID       id.SubjectID  `json:"subject_id"`
	SamplesRequired int           `json:"samples_required"`
	SamplesRecorded int           `json:"samples_recorded"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Resumable reports whether the session can accept a sample at the given
// time. Expiry is evaluated lazily here; no background sweeper marks
// sessions expired.
func (s *EnrollmentSession) Resumable(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}

// EnrollmentSample is one recorded sample within a session. Immutable once
// created.
type EnrollmentSample struct {
	ID          id.SampleID             `json:"id"`
	SessionID   id.SessionID            `json:"session_id"`
	SubjectID   id.SubjectID            `json:"subject_id"`
	SampleIndex int                     `json:"sample_index"` // 1-based
	BlobRef     blob.Ref                `json:"blob_ref"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time               `json:"created_at"`
}

// VoiceProfile is the durable per-subject enrollment result. One profile per
// subject; the owning store enforces uniqueness.
type VoiceProfile struct {
	SubjectID id.SubjectID `json:"subject_id"`
	// References are the fingerprints of the completed enrollment's samples,
	// in recording order.
	References []fingerprint.Fingerprint `json:"references"`
	// ModelRef is an opaque identifier assigned when enrollment completes.
	// A real speaker model would hang off this reference.
	ModelRef       string     `json:"model_ref"`
	IsEnrolled     bool       `json:"is_enrolled"`
	LastMatchScore *float64   `json:"last_match_score,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Enrolled reports the enrollment invariant: references present and a model
// reference assigned.
func (p *VoiceProfile) Enrolled() bool {
	return p != nil && p.IsEnrolled && len(p.References) > 0 && p.ModelRef != ""
}

// Tier identifies which stage of the verification fallback chain produced a
// decision.
type Tier string

const (
	TierExternal    Tier = "external"
	TierHeuristic   Tier = "heuristic"
	TierPlaceholder Tier = "placeholder"
)

// Decision reasons. Empty reasons mean an unqualified result.
const (
	ReasonNoReferenceSamples = "no_reference_samples"
	ReasonBelowThreshold     = "below_threshold"
)

// MatchDecision is the outcome of one verification attempt. Not persisted;
// returned to the caller and logged.
type MatchDecision struct {
	IsMatch   bool     `json:"is_match"`
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	Provider  Tier     `json:"provider"`
	Reasons   []string `json:"reasons,omitempty"`
	// Transcript is populated only by the external provider when it returns
	// a transcription alongside the match result.
	Transcript string `json:"transcript,omitempty"`
}
