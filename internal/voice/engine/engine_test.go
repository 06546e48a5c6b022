package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/provider"
	"voicegate/internal/voice/store/profile"
	id "voicegate/pkg/domain"
	domainerrors "voicegate/pkg/domain-errors"
	"voicegate/pkg/platform/audit"
	"voicegate/pkg/platform/circuit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubVerifier scripts the external provider.
type stubVerifier struct {
	result *provider.VerifyResult
	err    error
	calls  int
}

func (s *stubVerifier) Verify(context.Context, provider.VerifyRequest) (*provider.VerifyResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

const matchedAudio = "ABABABABABABABABABABABABABABAB"

func enrolledProfile(subjectID id.SubjectID) *models.VoiceProfile {
	now := time.Now()
	return &models.VoiceProfile{
		SubjectID: subjectID,
		References: []fingerprint.Fingerprint{
			fingerprint.FromEncoded(matchedAudio),
			fingerprint.FromEncoded(strings.Repeat("AB", 14) + "CD"),
			fingerprint.FromEncoded(strings.Repeat("AB", 13) + "CDEF"),
		},
		ModelRef:   "model-ref-1",
		IsEnrolled: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newEngine(t *testing.T, verifier provider.Verifier, breaker *circuit.Breaker,
	allowFallback bool, prof *models.VoiceProfile) (*Engine, *profile.InMemoryStore) {
	t.Helper()

	profiles := profile.NewInMemory()
	if prof != nil {
		require.NoError(t, profiles.Upsert(context.Background(), prof))
	}
	eng := New(profiles, verifier, breaker, Config{AllowFallback: allowFallback},
		audit.NewPublisher(64), testLogger())
	return eng, profiles
}

func TestVerifyNotEnrolled(t *testing.T) {
	t.Run("no profile", func(t *testing.T) {
		eng, _ := newEngine(t, nil, nil, true, nil)

		_, err := eng.Verify(context.Background(), id.NewSubjectID(), matchedAudio)
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeNotEnrolled))
	})

	t.Run("profile not enrolled", func(t *testing.T) {
		subjectID := id.NewSubjectID()
		prof := enrolledProfile(subjectID)
		prof.IsEnrolled = false
		eng, _ := newEngine(t, nil, nil, true, prof)

		_, err := eng.Verify(context.Background(), subjectID, matchedAudio)
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeNotEnrolled))
	})
}

func TestVerifyEmptyAudio(t *testing.T) {
	eng, _ := newEngine(t, nil, nil, true, nil)

	_, err := eng.Verify(context.Background(), id.NewSubjectID(), "  \n ")
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
}

func TestVerifyExternalVerdictTrustedVerbatim(t *testing.T) {
	subjectID := id.NewSubjectID()
	// The provider says no-match even though the heuristic would match; the
	// external verdict must win.
	verifier := &stubVerifier{result: &provider.VerifyResult{IsMatch: false, Score: 0.12, Transcript: "hello"}}
	eng, profiles := newEngine(t, verifier, nil, true, enrolledProfile(subjectID))

	decision, err := eng.Verify(context.Background(), subjectID, matchedAudio)
	require.NoError(t, err)
	assert.Equal(t, models.TierExternal, decision.Provider)
	assert.False(t, decision.IsMatch)
	assert.InDelta(t, 0.12, decision.Score, 1e-9)
	assert.Equal(t, "hello", decision.Transcript)
	assert.Equal(t, 1, verifier.calls)

	prof, err := profiles.FindBySubject(context.Background(), subjectID)
	require.NoError(t, err)
	require.NotNil(t, prof.LastMatchScore)
	assert.InDelta(t, 0.12, *prof.LastMatchScore, 1e-9)
}

func TestVerifyFallbackOrdering(t *testing.T) {
	// Forced provider failure with well-matched references: the decision
	// must come from the heuristic tier, never the placeholder.
	subjectID := id.NewSubjectID()
	verifier := &stubVerifier{err: &provider.Error{Category: provider.ErrorTimeout, Message: "timed out"}}
	eng, _ := newEngine(t, verifier, nil, true, enrolledProfile(subjectID))

	decision, err := eng.Verify(context.Background(), subjectID, matchedAudio)
	require.NoError(t, err)
	assert.Equal(t, models.TierHeuristic, decision.Provider)
	assert.True(t, decision.IsMatch)
	assert.GreaterOrEqual(t, decision.Score, decision.Threshold)
}

func TestVerifyFallbackDisabled(t *testing.T) {
	subjectID := id.NewSubjectID()
	verifier := &stubVerifier{err: &provider.Error{Category: provider.ErrorHTTP, Message: "502"}}
	eng, _ := newEngine(t, verifier, nil, false, enrolledProfile(subjectID))

	_, err := eng.Verify(context.Background(), subjectID, matchedAudio)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeProviderUnavailable))
}

func TestVerifyNoReferenceGuard(t *testing.T) {
	// Enrolled profile whose references are all unusable (zero fingerprints)
	// must produce a heuristic non-match and never reach the placeholder.
	subjectID := id.NewSubjectID()
	prof := enrolledProfile(subjectID)
	prof.References = []fingerprint.Fingerprint{fingerprint.FromEncoded("")}
	eng, _ := newEngine(t, nil, nil, true, prof)

	decision, err := eng.Verify(context.Background(), subjectID, matchedAudio)
	require.NoError(t, err)
	assert.Equal(t, models.TierHeuristic, decision.Provider)
	assert.False(t, decision.IsMatch)
	assert.Equal(t, []string{models.ReasonNoReferenceSamples}, decision.Reasons)
}

func TestVerifyPlaceholder(t *testing.T) {
	// No provider configured and a genuinely dissimilar sample: the
	// placeholder produces a deterministic always-match score.
	subjectID := id.NewSubjectID()
	eng, _ := newEngine(t, nil, nil, true, enrolledProfile(subjectID))

	dissimilar := strings.Repeat("xyz9", 20)
	first, err := eng.Verify(context.Background(), subjectID, dissimilar)
	require.NoError(t, err)
	assert.Equal(t, models.TierPlaceholder, first.Provider)
	assert.True(t, first.IsMatch)
	assert.GreaterOrEqual(t, first.Score, 0.78)
	assert.LessOrEqual(t, first.Score, 0.96)

	second, err := eng.Verify(context.Background(), subjectID, dissimilar)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score, "placeholder score must be reproducible")
}

func TestPlaceholderScoreVariesBySubject(t *testing.T) {
	a := placeholderScore(id.NewSubjectID().String(), "model-ref-1")
	assert.GreaterOrEqual(t, a, 0.78)
	assert.LessOrEqual(t, a, 0.96)

	same := placeholderScore("1234-abcd", "model")
	again := placeholderScore("1234-abcd", "model")
	assert.Equal(t, same, again)
}

func TestVerifyCircuitBreakerStopsHammeringProvider(t *testing.T) {
	subjectID := id.NewSubjectID()
	verifier := &stubVerifier{err: &provider.Error{Category: provider.ErrorTimeout, Message: "timed out"}}
	breaker := circuit.New("voice-provider", circuit.WithFailureThreshold(2))
	eng, _ := newEngine(t, verifier, breaker, true, enrolledProfile(subjectID))

	for i := 0; i < 5; i++ {
		decision, err := eng.Verify(context.Background(), subjectID, matchedAudio)
		require.NoError(t, err)
		assert.Equal(t, models.TierHeuristic, decision.Provider)
	}

	// Two calls trip the breaker, one immediate probe slips through, the
	// rest are refused without touching the provider.
	assert.Equal(t, 3, verifier.calls)
	assert.True(t, breaker.IsOpen())
}
