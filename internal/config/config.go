// Package config holds the wadrive configuration: the target web client,
// the Chrome/Chromium instance that hosts it, and optional local storage.
// Configuration is loaded once before a session starts and is read-only for
// the lifetime of that session.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all wadrive configuration.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Browser BrowserConfig `yaml:"browser"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the session lifecycle engine.
type ClientConfig struct {
	// TargetURL is the web client entry point.
	TargetURL string `yaml:"target_url"`

	// DeviceName is reported to the web client as the linked device label.
	DeviceName string `yaml:"device_name"`

	// QRMaxRetries bounds how many QR challenges are issued before the
	// session is torn down. 0 means unlimited.
	QRMaxRetries int `yaml:"qr_max_retries"`

	// AuthTimeout bounds the wait for login-or-challenge during
	// authentication, e.g. "45s".
	AuthTimeout string `yaml:"auth_timeout"`
}

// BrowserConfig configures the automated Chrome instance.
type BrowserConfig struct {
	// DebuggerURL attaches to an already-running Chrome via CDP.
	// When empty a new instance is launched.
	DebuggerURL string `yaml:"debugger_url"`

	// Bin is the Chrome binary to launch. Empty uses rod's default lookup.
	Bin string `yaml:"bin"`

	// Launch holds extra command line flags passed to the launched Chrome.
	Launch []string `yaml:"launch"`

	Headless    bool   `yaml:"headless"`
	UserDataDir string `yaml:"user_data_dir"`
	UserAgent   string `yaml:"user_agent"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	NavigationTimeoutMs int `yaml:"navigation_timeout_ms"`
}

// ArchiveConfig configures the optional local message archive.
type ArchiveConfig struct {
	// Path to the SQLite database. Empty disables archiving.
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			TargetURL:    "https://web.whatsapp.com",
			DeviceName:   "wadrive",
			QRMaxRetries: 5,
			AuthTimeout:  "45s",
		},
		Browser: BrowserConfig{
			Headless:            true,
			UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			ViewportWidth:       1280,
			ViewportHeight:      900,
			NavigationTimeoutMs: 60000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file, applies defaults for missing
// fields, then applies environment overrides. A missing file is not an
// error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WADRIVE_TARGET_URL"); v != "" {
		c.Client.TargetURL = v
	}
	if v := os.Getenv("WADRIVE_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("WADRIVE_CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("WADRIVE_USER_DATA_DIR"); v != "" {
		c.Browser.UserDataDir = v
	}
	if v := os.Getenv("WADRIVE_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("WADRIVE_ARCHIVE_PATH"); v != "" {
		c.Archive.Path = v
	}
	if v := os.Getenv("WADRIVE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// AuthTimeout returns the bounded authentication wait, defaulting to 45s.
func (c *Config) AuthTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.AuthTimeout)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// NavigationTimeout returns the page navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	if c.Browser.NavigationTimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Browser.NavigationTimeoutMs) * time.Millisecond
}

// ViewportWidth returns the viewport width, default-filled.
func (c *Config) ViewportWidth() int {
	if c.Browser.ViewportWidth <= 0 {
		return 1280
	}
	return c.Browser.ViewportWidth
}

// ViewportHeight returns the viewport height, default-filled.
func (c *Config) ViewportHeight() int {
	if c.Browser.ViewportHeight <= 0 {
		return 900
	}
	return c.Browser.ViewportHeight
}
