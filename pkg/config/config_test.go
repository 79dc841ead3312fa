package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh23french/remotekeys/pkg/client"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 7642, cfg.Endpoint.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Client.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectInterval)
	assert.Equal(t, time.Duration(0), cfg.Client.WriteTimeout)
	assert.Equal(t, client.DefaultQueueSize, cfg.Client.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":7642", cfg.Server.Address)

	_, err = cfg.ClientEndpoint()
	var cerr *client.ConfigError
	assert.True(t, errors.As(err, &cerr), "no host configured should be a ConfigError")
}

func TestLoadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remotekeys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  host: 10.0.0.118
  port: 9000
client:
  reconnect_interval: 5s
  queue_size: 16
log:
  level: debug
`), 0o644))

	t.Setenv("REMOTEKEYS_ENDPOINT_PORT", "9100")
	t.Setenv("REMOTEKEYS_CLIENT_WRITE_TIMEOUT", "250ms")

	cfg, err := Load(path, map[string]any{"client.queue_size": 32})
	require.NoError(t, err)

	ep, err := cfg.ClientEndpoint()
	require.NoError(t, err)
	assert.Equal(t, client.Endpoint{Host: "10.0.0.118", Port: 9100}, ep, "env should override the file")
	assert.Equal(t, 5*time.Second, cfg.Client.ReconnectInterval, "file should override defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Client.WriteTimeout)
	assert.Equal(t, 32, cfg.Client.QueueSize, "overrides should win")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Len(t, cfg.ClientOptions(), 4)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), map[string]any{"endpoint.host": "h"})
	require.NoError(t, err)
	assert.Equal(t, "h", cfg.Endpoint.Host)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: [\n"), 0o644))
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "client.connect_timeout", envKey("REMOTEKEYS_CLIENT_CONNECT_TIMEOUT"))
	assert.Equal(t, "endpoint.host", envKey("REMOTEKEYS_ENDPOINT_HOST"))
}

func TestLogApply(t *testing.T) {
	assert.NoError(t, LogConfig{Level: "WARN"}.Apply())
	assert.Error(t, LogConfig{Level: "loud"}.Apply())
	assert.NoError(t, LogConfig{Level: "info"}.Apply())
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remotekeys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint:\n  host: a\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan string, 16)
	w.OnChange(func(p string) { changed <- p })

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("endpoint:\n  host: b\n"), 0o644))

	select {
	case p := <-changed:
		assert.Equal(t, path, p)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
