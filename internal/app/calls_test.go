package app

import (
	"testing"
	"time"

	"github.com/dkeye/callrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTable(t *testing.T) {
	t.Run("call then answer is active", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)

		s, err := ct.Answer("bob", "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.CallActive, s.State)

		info, ok := ct.Get("bob", "alice")
		require.True(t, ok)
		assert.Equal(t, domain.UserID("alice"), info.Caller)
		assert.NotNil(t, info.AnsweredAt)
	})

	t.Run("duplicate ring is rejected in either direction", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Call("alice", "bob")
		assert.ErrorIs(t, err, domain.ErrAlreadyCalling)
		_, err = ct.Call("bob", "alice")
		assert.ErrorIs(t, err, domain.ErrAlreadyCalling)
	})

	t.Run("call while active is invalid", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Answer("bob", "alice")
		require.NoError(t, err)
		_, err = ct.Call("alice", "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("self call is invalid", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("answer without ringing session is invalid", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Answer("bob", "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("caller cannot answer its own call", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Answer("alice", "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = ct.Reject("alice", "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("reject clears the pair", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		s, err := ct.Reject("bob", "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.CallEnded, s.State)
		_, ok := ct.Get("alice", "bob")
		assert.False(t, ok)

		_, err = ct.Call("alice", "bob")
		assert.NoError(t, err)
	})

	t.Run("end works while ringing and while active", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.End("alice", "bob")
		require.NoError(t, err)

		_, err = ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Answer("bob", "alice")
		require.NoError(t, err)
		_, err = ct.End("bob", "alice")
		require.NoError(t, err)
		assert.Empty(t, ct.Snapshot())

		_, err = ct.End("bob", "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("candidates and renegotiation need an active call", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		assert.ErrorIs(t, ct.Candidate("alice", "bob"), domain.ErrInvalidTransition)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		assert.ErrorIs(t, ct.Candidate("alice", "bob"), domain.ErrInvalidTransition)
		assert.ErrorIs(t, ct.RenegotiateOffer("alice", "bob"), domain.ErrInvalidTransition)

		_, err = ct.Answer("bob", "alice")
		require.NoError(t, err)
		assert.NoError(t, ct.Candidate("alice", "bob"))
		assert.NoError(t, ct.Candidate("bob", "alice"))
	})

	t.Run("renegotiation offer is tracked per direction", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Answer("bob", "alice")
		require.NoError(t, err)

		require.NoError(t, ct.RenegotiateOffer("alice", "bob"))
		require.NoError(t, ct.RenegotiateOffer("alice", "bob"))
		info, _ := ct.Get("alice", "bob")
		assert.Equal(t, []domain.UserID{"alice"}, info.Renegotiating)
		assert.Equal(t, domain.CallActive, info.State)

		require.NoError(t, ct.RenegotiateAnswer("bob", "alice"))
		info, _ = ct.Get("alice", "bob")
		assert.Empty(t, info.Renegotiating)
	})

	t.Run("drop party removes only its sessions", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Call("carol", "alice")
		require.NoError(t, err)
		_, err = ct.Call("dave", "erin")
		require.NoError(t, err)

		dropped := ct.DropParty("alice")
		assert.Len(t, dropped, 2)
		assert.Len(t, ct.Snapshot(), 1)
		_, ok := ct.Get("dave", "erin")
		assert.True(t, ok)
	})

	t.Run("counts per state", func(t *testing.T) {
		ct := NewCallTable(0, nil)
		_, _ = ct.Call("alice", "bob")
		_, _ = ct.Call("carol", "dave")
		_, _ = ct.Answer("dave", "carol")
		counts := ct.Counts()
		assert.Equal(t, 1, counts[domain.CallCalling])
		assert.Equal(t, 1, counts[domain.CallActive])
	})
}

func TestCallTableRingTimeout(t *testing.T) {
	expired := make(chan *CallSession, 1)
	var ct *CallTable
	ct = NewCallTable(20*time.Millisecond, func(s *CallSession) {
		if ct.Expire(s) {
			expired <- s
		}
	})

	_, err := ct.Call("alice", "bob")
	require.NoError(t, err)

	select {
	case s := <-expired:
		assert.Equal(t, domain.UserID("alice"), s.Caller)
	case <-time.After(2 * time.Second):
		t.Fatal("ring timeout did not fire")
	}
	_, ok := ct.Get("alice", "bob")
	assert.False(t, ok)

	t.Run("answered call does not expire", func(t *testing.T) {
		_, err := ct.Call("alice", "bob")
		require.NoError(t, err)
		_, err = ct.Answer("bob", "alice")
		require.NoError(t, err)
		time.Sleep(60 * time.Millisecond)
		info, ok := ct.Get("alice", "bob")
		require.True(t, ok)
		assert.Equal(t, domain.CallActive, info.State)
	})
}
