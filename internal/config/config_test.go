package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, created, err := Ensure(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)

	assert.Equal(t, "localhost:6380", cfg.Host)
	assert.Equal(t, TransportRelay, cfg.Transport)
	assert.Equal(t, "localhost:4212", cfg.Player.Address)
	assert.Equal(t, "admin", cfg.Player.Password)
	assert.Equal(t, 1.0, cfg.DriftThreshold)
	assert.Equal(t, "vlcsync", cfg.P2P.MdnsTag)
	assert.Equal(t, 3*time.Second, cfg.P2P.Settle)

	_, created, err = Ensure(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "party.json")
	raw := `{"host": "relay.example.org:6380", "password": "hunter2", "drift_threshold": 2.5, "player": {"address": "127.0.0.1:9999"}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, created, err := Ensure(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "relay.example.org:6380", cfg.Host)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 2.5, cfg.DriftThreshold)
	assert.Equal(t, "127.0.0.1:9999", cfg.Player.Address)
	assert.Equal(t, "admin", cfg.Player.Password)
}

func TestEnsureEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host": "a:1"}`), 0o600))
	t.Setenv("VLCSYNC_TRANSPORT", "p2p")

	cfg, _, err := Ensure(path)
	require.NoError(t, err)
	assert.Equal(t, TransportP2P, cfg.Transport)
}

func TestEnsureRejectsUnknownTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host": "a:1", "transport": "carrier-pigeon"}`), 0o600))

	_, _, err := Ensure(path)
	assert.ErrorContains(t, err, "unknown transport")
}

func TestEnsureMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{host`), 0o600))

	_, _, err := Ensure(path)
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, int64(65536), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, 50, cfg.PublishLimit)
	assert.Equal(t, time.Second, cfg.PublishWindow)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := "mode: debug\nport: 7000\npassword: s3cret\npublish_limit: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o600))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, 5, cfg.PublishLimit)
	assert.Equal(t, 64, cfg.SendBuffer)
}
