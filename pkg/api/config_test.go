package api

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.False(t, cfg.Hook.ForceFallback)
	assert.Equal(t, DefaultReloadDebounce, cfg.Policy.ReloadDebounce)
	assert.Equal(t, DefaultStatsQueueSize, cfg.Stats.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgveil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hook:
  force_fallback: true
policy:
  path: /data/policy.yaml
  watch: true
  reload_debounce: 2s
log:
  level: debug
  format: json
`), 0600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.True(t, cfg.Hook.ForceFallback)
	assert.Equal(t, "/data/policy.yaml", cfg.Policy.Path)
	assert.True(t, cfg.Policy.Watch)
	assert.Equal(t, 2*time.Second, cfg.Policy.ReloadDebounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("PKGVEIL_LOG_LEVEL", "warn")
	t.Setenv("PKGVEIL_HOOK_FORCE_FALLBACK", "true")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Hook.ForceFallback)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrReadConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"watch without path", func(c *Config) { c.Policy.Watch = true }},
		{"negative debounce", func(c *Config) { c.Policy.ReloadDebounce = -time.Second }},
		{"zero queue", func(c *Config) { c.Stats.QueueSize = 0 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hello", "uid", 10050)
	assert.Contains(t, buf.String(), `"uid":10050`)

	_, err = NewLogger(LogConfig{Level: "nope"}, &buf)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
