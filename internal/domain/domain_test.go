package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserID(t *testing.T) {
	t.Run("keeps the raw string", func(t *testing.T) {
		id, err := NewUserID(" +15551234", 0)
		require.NoError(t, err)
		assert.Equal(t, UserID(" +15551234"), id)
		assert.NotEqual(t, UserID("+15551234"), id)
	})
	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewUserID("   ", 0)
		assert.ErrorIs(t, err, ErrIdentifierEmpty)
	})
	t.Run("rejects too long", func(t *testing.T) {
		_, err := NewUserID(strings.Repeat("a", 9), 8)
		assert.ErrorIs(t, err, ErrIdentifierTooLong)
	})
}

func TestPairIsUnordered(t *testing.T) {
	p := NewPair("bob", "alice")
	assert.Equal(t, NewPair("alice", "bob"), p)
	assert.Equal(t, UserID("bob"), p.Other("alice"))
	assert.Equal(t, UserID("alice"), p.Other("bob"))
	assert.True(t, p.Has("alice"))
	assert.False(t, p.Has("carol"))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "taken", Code(fmt.Errorf("register alice: %w", ErrTaken)))
	assert.Equal(t, "already_calling", Code(ErrAlreadyCalling))
	assert.Equal(t, "bad_identifier", Code(ErrIdentifierTooLong))
	assert.Equal(t, "internal", Code(fmt.Errorf("boom")))
}
