package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30, cfg.Request.TimeoutSeconds)
	assert.Equal(t, 3, cfg.Request.RetryCount)
	assert.Equal(t, 10, cfg.Search.ProducerVNs)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Search.CharacterOptions)
	assert.Equal(t, 30, cfg.Session.WaitSeconds)
	assert.Equal(t, 30, cfg.Report.FreshMinutes)
	assert.Equal(t, 336, cfg.Report.WarmHours)
	assert.Equal(t, "0 9 * * *", cfg.Report.CronExpr)
	assert.Equal(t, "jpeg", cfg.Render.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Channels.OneBot.Enabled)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Session.WaitSeconds, cfg.Session.WaitSeconds)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"session": {"wait_seconds": 60},
		"search": {"enable_nsfw": true, "character_options": ["a", "f"]},
		"channels": {"onebot": {"enabled": true, "ws_url": "ws://127.0.0.1:3001"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Session.WaitSeconds)
	assert.True(t, cfg.Search.EnableNSFW)
	assert.Equal(t, []string{"a", "f"}, cfg.Search.CharacterOptions)
	assert.True(t, cfg.Channels.OneBot.Enabled)
	assert.Equal(t, "ws://127.0.0.1:3001", cfg.Channels.OneBot.WSUrl)
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Request.RetryCount)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session": {"wait_seconds": 60}}`), 0644))
	t.Setenv("GALBOX_SESSION_WAIT_SECONDS", "90")
	t.Setenv("GALBOX_RENDER_ENDPOINT", "http://render.local/api")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Session.WaitSeconds)
	assert.Equal(t, "http://render.local/api", cfg.Render.Endpoint)
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDataPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/galbox"}
	assert.Equal(t, filepath.Join("/var/lib/galbox", "cache"), cfg.CachePath())
	assert.Equal(t, filepath.Join("/var/lib/galbox", "data"), cfg.CredsPath())
}
