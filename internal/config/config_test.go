package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "Pacific/Auckland", cfg.Timezone)
	assert.Equal(t, "uoa_courses.ics", cfg.Output)
	assert.Equal(t, "browser", cfg.Source.Mode)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Asia/Seoul
source:
  url: https://portal.example/schedule
  mode: carrier-pigeon
capture:
  timeout_seconds: 5
basic_auth:
  username: admin
  password: secret
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "https://portal.example/schedule", cfg.Source.URL)
	assert.Equal(t, "browser", cfg.Source.Mode)
	assert.Equal(t, "table.uoa_gridborder_cal", cfg.Capture.WaitSelector)
	assert.Equal(t, 5, cfg.Capture.TimeoutSeconds)
	assert.Equal(t, "0 6 * * 1", cfg.RefreshCron)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Source.File = "timetable.html"
	cfg.PreviewDays = 14

	require.NoError(t, cfg.Save(path))
	got, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Pacific/Auckland", loc.String())

	cfg.Timezone = "Mars/Olympus_Mons"
	_, err = cfg.Location()
	assert.Error(t, err)
}
