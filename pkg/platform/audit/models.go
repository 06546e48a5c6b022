// Package audit captures key domain actions as structured events. Domain
// logic publishes events; a background worker persists them so request paths
// never block on the audit store.
package audit

import (
	"time"

	id "voicegate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing later on.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring:
	// verification failures, placeholder-tier use, token misuse.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: enrollment progress, provider fallbacks.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SubjectID id.SubjectID
	Action    Action
	// Tier records which decision tier produced a verification outcome
	// (external, heuristic, placeholder). Empty for enrollment events.
	Tier string
	// Score is the match score attached to verification events.
	Score float64
	Reason string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	ClientIP  string
}

// Action identifies what happened.
type Action string

const (
	ActionEnrollmentStarted    Action = "enrollment_started"
	ActionSampleRecorded       Action = "sample_recorded"
	ActionEnrollmentCompleted  Action = "enrollment_completed"
	ActionVerificationPassed   Action = "verification_passed"
	ActionVerificationFailed   Action = "verification_failed"
	ActionPlaceholderExercised Action = "placeholder_tier_exercised"
	ActionProviderFallback     Action = "provider_fallback"
)
