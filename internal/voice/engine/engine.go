// Package engine produces verification decisions through a degrading tier
// chain: the external provider when configured, a local fingerprint
// heuristic, and a deterministic placeholder for environments with no real
// matching signal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/metrics"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/provider"
	"voicegate/internal/voice/store/profile"
	id "voicegate/pkg/domain"
	domainerrors "voicegate/pkg/domain-errors"
	"voicegate/pkg/platform/audit"
	"voicegate/pkg/platform/circuit"
	"voicegate/pkg/platform/sentinel"
	"voicegate/pkg/requestcontext"
)

// Config controls chain assembly.
type Config struct {
	// AllowFallback permits degrading past a failed external provider call.
	// When false, provider failures are hard failures.
	AllowFallback bool
}

// Engine runs the verification fallback chain for enrolled subjects.
type Engine struct {
	profiles      profile.Store
	tiers         []Tier
	allowFallback bool
	publisher     *audit.Publisher
	logger        *slog.Logger
}

// New assembles the tier chain. A nil verifier means no external provider is
// configured and the chain starts at the heuristic tier.
func New(profiles profile.Store, verifier provider.Verifier, breaker *circuit.Breaker,
	cfg Config, publisher *audit.Publisher, logger *slog.Logger) *Engine {

	var tiers []Tier
	if verifier != nil {
		if breaker == nil {
			breaker = circuit.New("voice-provider")
		}
		tiers = append(tiers, &externalTier{verifier: verifier, breaker: breaker, logger: logger})
	}
	tiers = append(tiers,
		&heuristicTier{},
		&placeholderTier{logger: logger},
	)

	return &Engine{
		profiles:      profiles,
		tiers:         tiers,
		allowFallback: cfg.AllowFallback,
		publisher:     publisher,
		logger:        logger,
	}
}

// Verify runs the chain for one audio payload. The subject must have an
// enrolled profile; the returned decision records which tier produced it.
func (e *Engine) Verify(ctx context.Context, subjectID id.SubjectID, audio string) (*models.MatchDecision, error) {
	cleaned := fingerprint.Normalize(audio)
	if cleaned == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "audio payload is required")
	}

	prof, err := e.profiles.FindBySubject(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.New(domainerrors.CodeNotEnrolled, "subject has no enrolled voice profile")
	}
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStorageUnavailable, "load voice profile", err)
	}
	if !prof.Enrolled() {
		return nil, domainerrors.New(domainerrors.CodeNotEnrolled, "subject has no enrolled voice profile")
	}

	in := &Input{
		SubjectID:   subjectID,
		Audio:       cleaned,
		Fingerprint: fingerprint.FromEncoded(cleaned),
		Profile:     prof,
	}

	for i, tier := range e.tiers {
		decision, err := tier.Attempt(ctx, in)
		if err == nil {
			e.finalize(ctx, in, decision)
			return decision, nil
		}

		if tier.Name() == models.TierExternal {
			if !e.allowFallback {
				return nil, domainerrors.Wrap(domainerrors.CodeProviderUnavailable,
					"external voice provider failed and fallback is disabled", err)
			}
			e.logger.WarnContext(ctx, "external voice provider failed, degrading",
				slog.String("subject_id", subjectID.String()),
				slog.String("category", string(provider.CategoryOf(err))),
				slog.String("error", err.Error()),
			)
			e.publish(ctx, audit.Event{
				Category:  audit.CategoryOperations,
				SubjectID: subjectID,
				Action:    audit.ActionProviderFallback,
				Tier:      string(e.tiers[i+1].Name()),
				Reason:    string(provider.CategoryOf(err)),
			})
			continue
		}

		var low *lowConfidenceError
		if errors.As(err, &low) {
			e.logger.DebugContext(ctx, "heuristic tier below threshold",
				slog.String("subject_id", subjectID.String()),
				slog.Float64("score", low.score),
				slog.Float64("threshold", low.threshold),
			)
			continue
		}

		return nil, fmt.Errorf("tier %s: %w", tier.Name(), err)
	}

	// Unreachable while the placeholder tier terminates the chain; kept so a
	// future placeholder-less assembly fails closed instead of matching.
	return nil, domainerrors.New(domainerrors.CodeInternal, "no verification tier produced a decision")
}

func (e *Engine) finalize(ctx context.Context, in *Input, decision *models.MatchDecision) {
	if err := e.profiles.SetLastMatchScore(ctx, in.SubjectID, decision.Score); err != nil {
		e.logger.ErrorContext(ctx, "record last match score",
			slog.String("subject_id", in.SubjectID.String()),
			slog.String("error", err.Error()),
		)
	}

	metrics.ObserveDecision(string(decision.Provider), decision.IsMatch, decision.Score)

	action := audit.ActionVerificationFailed
	category := audit.CategorySecurity
	if decision.IsMatch {
		action = audit.ActionVerificationPassed
		category = audit.CategoryOperations
	}
	reason := ""
	if len(decision.Reasons) > 0 {
		reason = decision.Reasons[0]
	}
	e.publish(ctx, audit.Event{
		Category:  category,
		SubjectID: in.SubjectID,
		Action:    action,
		Tier:      string(decision.Provider),
		Score:     decision.Score,
		Reason:    reason,
	})

	if decision.Provider == models.TierPlaceholder {
		e.publish(ctx, audit.Event{
			Category:  audit.CategorySecurity,
			SubjectID: in.SubjectID,
			Action:    audit.ActionPlaceholderExercised,
			Tier:      string(models.TierPlaceholder),
			Score:     decision.Score,
		})
	}

	e.logger.InfoContext(ctx, "verification decision",
		slog.String("subject_id", in.SubjectID.String()),
		slog.String("tier", string(decision.Provider)),
		slog.Bool("is_match", decision.IsMatch),
		slog.Float64("score", decision.Score),
	)
}

func (e *Engine) publish(ctx context.Context, event audit.Event) {
	if e.publisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	if !e.publisher.Publish(event) {
		e.logger.Warn("audit inbox full, event dropped", slog.String("action", string(event.Action)))
	}
}
