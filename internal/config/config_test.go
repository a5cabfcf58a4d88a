package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Point at an empty directory so no config file is found.
	// (equivalent of t.Chdir, which needs Go 1.24+)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "friendsync", cfg.AppName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
	assert.Equal(t, 60, cfg.WebSocket.PongWaitSeconds)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "friendsync-notifications", cfg.Kafka.NotificationsTopic)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, 3, cfg.Store.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.RetryBaseDelay)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
SERVER:
  PORT: "9999"
KAFKA:
  NOTIFICATIONS_TOPIC: custom-topic
STORE:
  RETRY_ATTEMPTS: 7
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "custom-topic", cfg.Kafka.NotificationsTopic)
	assert.Equal(t, 7, cfg.Store.RetryAttempts)
	// Untouched values keep their defaults.
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
}
