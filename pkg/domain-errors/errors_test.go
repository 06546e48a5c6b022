package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotEnrolled, "no voice profile")
		assert.True(t, HasCode(err, CodeNotEnrolled))
		assert.False(t, HasCode(err, CodeValidation))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeStorageUnavailable, "redis down")
		err := fmt.Errorf("submit sample: %w", inner)
		assert.True(t, HasCode(err, CodeStorageUnavailable))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeProviderUnavailable, "provider call failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeProviderUnavailable, CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unexpected")))
}
