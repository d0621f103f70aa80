package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Engine.MaxIterations)
	assert.Equal(t, 0.08, cfg.Cart.TaxRate)
	assert.Equal(t, "openai", cfg.Model.Provider)
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
redis:
  enabled: true
  addr: redis:6379
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	// Unset fields fall back to defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 60, cfg.Redis.TTLMinutes)
	assert.Equal(t, 5, cfg.Engine.MaxIterations)
}

func TestLoad_SecretExpansion(t *testing.T) {
	t.Setenv("TEST_STRIPE_KEY", "sk_test_123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stripe:
  enabled: true
  api_key: ${TEST_STRIPE_KEY}
  webhook_secret: ${TEST_UNSET_SECRET}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Stripe.APIKey)
	// Unset variables expand to empty rather than leaking the placeholder
	assert.Empty(t, cfg.Stripe.WebhookSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOPMESH_PORT", "7070")
	t.Setenv("SHOPMESH_MODEL_PROVIDER", "mock")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.Model.Provider)
}
