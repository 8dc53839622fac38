package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/extguard/internal/browsers"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultExtensionID, cfg.ExtensionID)
	assert.Equal(t, time.Second, cfg.CheckInterval)
	assert.Equal(t, 15*time.Second, cfg.Countdown)
	assert.Equal(t, 60*time.Second, cfg.Cooldown)
	assert.Equal(t, 3, cfg.ConfirmationThreshold)
	assert.Equal(t, 10*time.Second, cfg.Watchdog.Interval)
	assert.ElementsMatch(t, []string{"chrome.exe", "msedge.exe", "brave.exe", "comet.exe"}, cfg.Sweep.AllowedImages)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ConfirmationThreshold)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extguard.yaml")
	yamlDoc := `
extension_id: abcdef
countdown: 30s
cooldown: 2m
confirmation_threshold: 5
browsers:
  - name: Firefox
    layout: firefox
    windows_image: firefox.exe
    linux_image: firefox
    linux_roots: ["/tmp/ff"]
sweep:
  allowed_images: ["chrome.exe"]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", cfg.ExtensionID)
	assert.Equal(t, 30*time.Second, cfg.Countdown)
	assert.Equal(t, 2*time.Minute, cfg.Cooldown)
	assert.Equal(t, 5, cfg.ConfirmationThreshold)
	assert.Equal(t, []string{"chrome.exe"}, cfg.Sweep.AllowedImages)
	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Watchdog.Interval)

	defs := cfg.Definitions("linux")
	require.Len(t, defs, 1)
	assert.Equal(t, browsers.LayoutFirefox, defs[0].Layout)
	assert.Equal(t, "firefox", defs[0].Image)
	assert.Equal(t, []string{"/tmp/ff"}, defs[0].Roots)
}

func TestLoadClampsCountdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("countdown: 3s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, MinCountdown, cfg.Countdown)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confirmation_threshold: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("browsers: [{name: X, layout: gecko}]\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("countdown: [\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXTGUARD_EXTENSION_ID", "fromenv")
	t.Setenv("EXTGUARD_ENFORCEMENT_ENABLED", "false")
	t.Setenv("EXTGUARD_COOLDOWN", "90")
	t.Setenv("EXTGUARD_COUNTDOWN", "20s")
	t.Setenv("EXTGUARD_CONFIRMATION_THRESHOLD", "4")
	t.Setenv("EXTGUARD_ALLOWED_BROWSERS", "chrome.exe, brave.exe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.ExtensionID)
	assert.False(t, cfg.EnforcementEnabled)
	assert.Equal(t, 90*time.Second, cfg.Cooldown)
	assert.Equal(t, 20*time.Second, cfg.Countdown)
	assert.Equal(t, 4, cfg.ConfirmationThreshold)
	assert.Equal(t, []string{"chrome.exe", "brave.exe"}, cfg.Sweep.AllowedImages)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("EXTGUARD_TEST_ROOT", "/opt/root")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Clean("/opt/root/x"), ExpandPath("%EXTGUARD_TEST_ROOT%/x"))
	assert.Equal(t, filepath.Clean("/opt/root/y"), ExpandPath("$EXTGUARD_TEST_ROOT/y"))
	assert.Equal(t, filepath.Join(home, ".config"), ExpandPath("~/.config"))
	assert.Empty(t, ExpandPath("%EXTGUARD_TEST_UNSET_VAR%/x"))
	assert.Empty(t, ExpandPath(""))
}

func TestDefinitionsSkipsUnresolvableRoots(t *testing.T) {
	cfg := Default()
	cfg.Browsers = []BrowserConfig{{
		Name:         "Chrome",
		WindowsImage: "chrome.exe",
		WindowsRoots: []string{`%EXTGUARD_TEST_UNSET_VAR%\Google\Chrome\User Data`},
	}}

	defs := cfg.Definitions("windows")
	require.Len(t, defs, 1)
	assert.Empty(t, defs[0].Roots)
	assert.Equal(t, browsers.LayoutChromium, defs[0].Layout)
	assert.Empty(t, cfg.Definitions("darwin"))
	assert.Equal(t, []string{"chrome.exe"}, Images(defs))
}
