package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, time.Duration(0), cfg.RingTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "kick", cfg.Backpressure)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	body := `
port: 7000
ring_timeout: 30s
strict_payloads: true
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CALLRELAY_MODE", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.RingTimeout)
	assert.True(t, cfg.StrictPayloads)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "u", cfg.ICEServers[0].Username)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Port:         5000,
		PingPeriod:   time.Minute,
		PongWait:     time.Second,
		SendBuffer:   0,
		Backpressure: "explode",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping_period")
	assert.Contains(t, err.Error(), "send_buffer")
	assert.Contains(t, err.Error(), "backpressure")
}
