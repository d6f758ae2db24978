package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://web.whatsapp.com", cfg.Client.TargetURL)
	assert.Equal(t, 5, cfg.Client.QRMaxRetries)
	assert.Equal(t, 45*time.Second, cfg.AuthTimeout())
	assert.Equal(t, 60*time.Second, cfg.NavigationTimeout())
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Client.TargetURL, cfg.Client.TargetURL)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wadrive.yaml")
	body := `
client:
  qr_max_retries: 2
  auth_timeout: 10s
browser:
  headless: false
  bin: /usr/bin/chromium
archive:
  path: /tmp/archive.db
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Client.QRMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.AuthTimeout())
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, "/tmp/archive.db", cfg.Archive.Path)
	// Untouched fields keep their defaults.
	assert.Equal(t, "https://web.whatsapp.com", cfg.Client.TargetURL)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WADRIVE_CHROME_BIN", "/opt/chrome")
	t.Setenv("WADRIVE_HEADLESS", "false")
	t.Setenv("WADRIVE_DEBUGGER_URL", "ws://127.0.0.1:9222")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/opt/chrome", cfg.Browser.Bin)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser.DebuggerURL)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.AuthTimeout = "garbage"
	cfg.Browser.NavigationTimeoutMs = -1

	assert.Equal(t, 45*time.Second, cfg.AuthTimeout())
	assert.Equal(t, 60*time.Second, cfg.NavigationTimeout())
}
