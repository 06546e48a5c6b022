package enrollment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "voicegate/pkg/domain"
	domainerrors "voicegate/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-signing-key")
	subjectID := id.NewSubjectID()
	sessionID := id.NewSessionID()

	token, err := svc.Mint(subjectID, sessionID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotSubject, gotSession, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, subjectID, gotSubject)
	assert.Equal(t, sessionID, gotSession)
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("test-signing-key")

	token, err := svc.Mint(id.NewSubjectID(), id.NewSessionID(), -time.Minute)
	require.NoError(t, err)

	_, _, err = svc.Parse(token)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestTokenWrongKey(t *testing.T) {
	minter := NewTokenService("key-one")
	verifier := NewTokenService("key-two")

	token, err := minter.Mint(id.NewSubjectID(), id.NewSessionID(), time.Hour)
	require.NoError(t, err)

	_, _, err = verifier.Parse(token)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestTokenGarbage(t *testing.T) {
	svc := NewTokenService("test-signing-key")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, _, err := svc.Parse(token)
		assert.Error(t, err, "token %q should not parse", token)
	}
}
