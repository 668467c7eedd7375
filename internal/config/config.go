package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Pacific/Auckland"
	defaultOutput       = "uoa_courses.ics"
	defaultRefreshCron  = "0 6 * * 1"
	defaultTimeoutSec   = 60
	defaultPreviewDays  = 7
	defaultCacheDir     = "./var/page-cache"
	defaultLogLevel     = "INFO"
	defaultLogFormat    = "console"
	defaultSourceMode   = "browser"
	defaultWaitSelector = "table.uoa_gridborder_cal"
)

// SourceConfig describes where the timetable page comes from.
type SourceConfig struct {
	// File is a saved copy of the timetable page. It takes precedence over URL.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// URL is the timetable page on the student portal.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Mode is "browser" (render with Chromium) or "http" (plain GET).
	Mode string `yaml:"mode" json:"mode"`
	// Cookie is sent as the Cookie header in http mode.
	Cookie string `yaml:"cookie,omitempty" json:"-"`
	// CacheDir keeps the last good page in http mode.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// CaptureConfig controls the Chromium capture.
type CaptureConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	WaitSelector   string `yaml:"wait_selector" json:"wait_selector"`
	// UserDataDir reuses a browser profile holding a portal session.
	UserDataDir string `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	// Headful shows the browser window, e.g. for a first interactive sign-on.
	Headful bool `yaml:"headful" json:"headful"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP service.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the serve command.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose "today" anchors exported events.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Output is the default path of the exported calendar.
	Output string `yaml:"output" json:"output"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * 1") used by
	// the serve command to re-capture the timetable.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PreviewDays is the default window of the preview command.
	PreviewDays int `yaml:"preview_days" json:"preview_days"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Source  SourceConfig  `yaml:"source" json:"source"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.PreviewDays <= 0 {
		c.PreviewDays = defaultPreviewDays
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "ERROR":
		// ok
	default:
		c.LogLevel = defaultLogLevel
	}
	switch c.LogFormat {
	case "console", "json":
		// ok
	default:
		c.LogFormat = defaultLogFormat
	}

	switch c.Source.Mode {
	case "browser", "http":
		// ok
	default:
		// Unknown value; fall back to the browser, which handles both.
		c.Source.Mode = defaultSourceMode
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = defaultCacheDir
	}

	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = defaultTimeoutSec
	}
	if c.Capture.WaitSelector == "" {
		c.Capture.WaitSelector = defaultWaitSelector
	}
}

// CaptureTimeout returns the capture timeout as a duration.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".uoacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
