package rtc

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"

	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/domain"
)

const minimalSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestValidateDescription(t *testing.T) {
	v := NewValidator()

	t.Run("session description object", func(t *testing.T) {
		assert.NoError(t, v.ValidateDescription(raw(t, map[string]string{"type": "offer", "sdp": minimalSDP})))
	})
	t.Run("bare sdp string", func(t *testing.T) {
		assert.NoError(t, v.ValidateDescription(raw(t, minimalSDP)))
	})
	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateDescription(nil), domain.ErrBadPayload)
		assert.ErrorIs(t, v.ValidateDescription(json.RawMessage("null")), domain.ErrBadPayload)
	})
	t.Run("not sdp", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateDescription(raw(t, "hello")), domain.ErrBadPayload)
	})
	t.Run("wrong shape", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateDescription(json.RawMessage("42")), domain.ErrBadPayload)
	})
}

func TestValidateCandidate(t *testing.T) {
	v := NewValidator()
	host := "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host"

	t.Run("candidate init object", func(t *testing.T) {
		assert.NoError(t, v.ValidateCandidate(raw(t, map[string]any{"candidate": host, "sdpMid": "0", "sdpMLineIndex": 0})))
	})
	t.Run("bare string", func(t *testing.T) {
		assert.NoError(t, v.ValidateCandidate(raw(t, host)))
	})
	t.Run("end of candidates", func(t *testing.T) {
		assert.NoError(t, v.ValidateCandidate(raw(t, map[string]any{"candidate": ""})))
	})
	t.Run("garbage", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCandidate(raw(t, "candidate:nope")), domain.ErrBadPayload)
		assert.ErrorIs(t, v.ValidateCandidate(nil), domain.ErrBadPayload)
	})
}

func TestICEServers(t *testing.T) {
	assert.Equal(t, DefaultICEServers(), ICEServers(nil))

	got := ICEServers([]config.ICEServer{{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"}})
	assert.Len(t, got, 1)
	assert.Equal(t, "u", got[0].Username)
	assert.Equal(t, "p", got[0].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, got[0].CredentialType)
}
