package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevOverlay(t *testing.T) {
	cfg, err := Load(".", "dev")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "dev-kiosk", cfg.Kiosk.ID)
	assert.Equal(t, 500*time.Millisecond, cfg.Kiosk.Overlay)
	assert.Equal(t, 120*time.Second, cfg.Kiosk.Timeouts.Success)
	assert.Equal(t, 5*time.Minute, cfg.Kiosk.Timeouts.Payment)
	assert.Equal(t, 190*time.Second, cfg.Kiosk.Payment.CryptoDeadline)
	assert.Equal(t, 36, cfg.Kiosk.Payment.DefaultAttempts)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "kiosk.commands.dev-kiosk.q", cfg.Rabbit.CommandsQueue)
	assert.Equal(t, "kiosk-dev-kiosk", cfg.Kafka.GroupID)
}

func TestEnvOverridesFiles(t *testing.T) {
	t.Setenv("KIOSK_VENDING__BASE_URL", "https://vms.example/vms/api/mobile/kiosk")
	t.Setenv("KIOSK_KIOSK__LANGUAGE", "ka")
	t.Setenv("KIOSK_KAFKA__BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(".", "dev")
	require.NoError(t, err)
	assert.Equal(t, "https://vms.example/vms/api/mobile/kiosk", cfg.Vending.BaseURL)
	assert.Equal(t, "ka", cfg.Kiosk.Language)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRequiresKioskAndBackend(t *testing.T) {
	_, err := Load(".", "missing-env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kiosk.id")
}

func TestLoadMissingBase(t *testing.T) {
	_, err := Load(t.TempDir(), "dev")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	base, err := os.ReadFile("base.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), base, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod.yaml"), []byte(
		"kiosk:\n  id: k9\n  language: fr\nvending:\n  base_url: https://vms.example\n"), 0o600))

	_, err = Load(dir, "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kiosk.language")

	var c Config
	c.App.HTTPAddr = ":1"
	c.Kiosk.ID = "k"
	c.Vending.BaseURL = "http://x"
	c.Kafka.Brokers = []string{"b:9092"}
	assert.ErrorContains(t, c.Validate(), "kafka.topic_status")
}
