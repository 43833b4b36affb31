package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 50, cfg.Sync.PerPage)
	require.Equal(t, 30*24*time.Hour, cfg.Sync.Lookback)
	require.Equal(t, 72*time.Hour, cfg.Sync.Overlap)
	require.Equal(t, time.Second, cfg.Webhook.ReconcileTimeout)
	require.Equal(t, 3, cfg.Webhook.RetryAttempts)
	require.Equal(t, time.Hour, cfg.Sync.RefreshBuffer)
	require.Equal(t, "kafka", cfg.Webhook.Delivery)
	require.Equal(t, "postgres", cfg.Storage)
}

func TestLoadYAMLBelowEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_address: \":9090\"\nstrava_per_page: 30\nkafka_brokers: a:1, b:2\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STRAVA_PER_PAGE", "100")

	cfg := Load()
	require.Equal(t, ":9090", cfg.HTTPAddress)
	require.Equal(t, 100, cfg.Sync.PerPage)
	require.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WEBHOOK_DELIVERY", "")
	require.NoError(t, os.Unsetenv("WEBHOOK_DELIVERY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEBHOOK_DELIVERY=INLINE\n"), 0o600))

	cfg := Load()
	require.Equal(t, "inline", cfg.Webhook.Delivery)
}
