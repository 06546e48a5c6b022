package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/metrics"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/provider"
	"voicegate/internal/voice/similarity"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/circuit"
)

// Input carries everything a tier needs to attempt a decision.
type Input struct {
	SubjectID id.SubjectID
	// Audio is the cleaned base64 payload.
	Audio       string
	Fingerprint fingerprint.Fingerprint
	Profile     *models.VoiceProfile
}

// Tier is one stage of the fallback chain. A returned decision is terminal:
// the engine short-circuits and later tiers never run. A returned error
// means the tier could not decide and the next tier is attempted.
type Tier interface {
	Name() models.Tier
	Attempt(ctx context.Context, in *Input) (*models.MatchDecision, error)
}

// lowConfidenceError marks a heuristic mismatch that is eligible for the
// placeholder tier: references existed but the candidate scored below the
// bar.
type lowConfidenceError struct {
	score     float64
	threshold float64
}

func (e *lowConfidenceError) Error() string {
	return fmt.Sprintf("heuristic score %.4f below threshold %.4f", e.score, e.threshold)
}

// externalTier wraps the remote verification service behind a circuit
// breaker. When the breaker is open the tier refuses immediately instead of
// burning the provider timeout on every request; one probe per probeInterval
// is let through so the breaker can close again.
type externalTier struct {
	verifier provider.Verifier
	breaker  *circuit.Breaker
	logger   *slog.Logger

	mu        sync.Mutex
	lastProbe time.Time
}

const probeInterval = 30 * time.Second

func (t *externalTier) Name() models.Tier { return models.TierExternal }

// allowProbe grants one primary-path attempt per probeInterval while the
// breaker is open.
func (t *externalTier) allowProbe() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.lastProbe) < probeInterval {
		return false
	}
	t.lastProbe = time.Now()
	return true
}

func (t *externalTier) Attempt(ctx context.Context, in *Input) (*models.MatchDecision, error) {
	if t.breaker.IsOpen() && !t.allowProbe() {
		return nil, &provider.Error{
			Category: provider.ErrorNetwork,
			Message:  "circuit breaker open",
		}
	}

	start := time.Now()
	result, err := t.verifier.Verify(ctx, provider.VerifyRequest{
		SubjectID: in.Profile.SubjectID,
		ModelRef:  in.Profile.ModelRef,
		Audio:     in.Audio,
	})
	metrics.ObserveProviderCall(time.Since(start))

	if err != nil {
		metrics.ObserveProviderFailure(string(provider.CategoryOf(err)))
		if _, change := t.breaker.RecordFailure(); change.Opened {
			t.logger.Warn("voice provider circuit opened", slog.String("breaker", t.breaker.Name()))
		}
		return nil, err
	}

	if _, change := t.breaker.RecordSuccess(); change.Closed {
		t.logger.Info("voice provider circuit closed", slog.String("breaker", t.breaker.Name()))
	}

	return &models.MatchDecision{
		IsMatch:    result.IsMatch,
		Score:      result.Score,
		Provider:   models.TierExternal,
		Transcript: result.Transcript,
	}, nil
}

// heuristicTier scores the candidate fingerprint against the profile's
// references. An empty usable reference set is a terminal non-match: there
// is nothing a placeholder could usefully simulate.
type heuristicTier struct{}

func (t *heuristicTier) Name() models.Tier { return models.TierHeuristic }

func (t *heuristicTier) Attempt(_ context.Context, in *Input) (*models.MatchDecision, error) {
	refs := usableReferences(in.Profile.References)
	if len(refs) == 0 {
		return &models.MatchDecision{
			IsMatch:  false,
			Provider: models.TierHeuristic,
			Reasons:  []string{models.ReasonNoReferenceSamples},
		}, nil
	}

	result := similarity.Evaluate(in.Fingerprint, refs)
	if !result.IsMatch {
		return nil, &lowConfidenceError{score: result.Score, threshold: result.Threshold}
	}

	return &models.MatchDecision{
		IsMatch:   true,
		Score:     result.Score,
		Threshold: result.Threshold,
		Provider:  models.TierHeuristic,
	}, nil
}

func usableReferences(refs []fingerprint.Fingerprint) []fingerprint.Fingerprint {
	usable := make([]fingerprint.Fingerprint, 0, len(refs))
	for _, ref := range refs {
		if ref.Length > 0 && !ref.IsZero() {
			usable = append(usable, ref)
		}
	}
	return usable
}

// placeholderTier keeps development environments unblocked when no real
// matching signal is available. It always matches, with a score derived
// deterministically from stable identifiers so repeated calls for a subject
// reproduce. Every use is logged loudly; production deployments alert on the
// corresponding metric.
type placeholderTier struct {
	logger *slog.Logger
}

func (t *placeholderTier) Name() models.Tier { return models.TierPlaceholder }

func (t *placeholderTier) Attempt(ctx context.Context, in *Input) (*models.MatchDecision, error) {
	score := placeholderScore(in.SubjectID.String(), in.Profile.ModelRef)

	t.logger.WarnContext(ctx, "placeholder tier produced a verification decision",
		slog.String("subject_id", in.SubjectID.String()),
		slog.Float64("score", score),
	)

	return &models.MatchDecision{
		IsMatch:  true,
		Score:    score,
		Provider: models.TierPlaceholder,
	}, nil
}

// placeholderScore seeds off the numeric digits of the subject id plus the
// model ref length, then maps through a sine so scores spread across the
// [0.78, 0.96] band instead of clustering.
func placeholderScore(subjectID, modelRef string) float64 {
	var digits strings.Builder
	for _, r := range subjectID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	seed, _ := strconv.ParseFloat(digits.String(), 64)
	seed += float64(len(modelRef))

	score := 0.82 + (math.Sin(seed)+1)*0.12
	if score < 0.78 {
		score = 0.78
	}
	if score > 0.96 {
		score = 0.96
	}
	return score
}
