package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/extguard/internal/autostart"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/enforce"
	"github.com/lotekdan/extguard/internal/firewall"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.HistoryPath = filepath.Join(dir, "history.db")
	cfg.TerminateGrace = 0
	return cfg
}

func TestOpenWiresRuntime(t *testing.T) {
	cfg := testConfig(t)
	rt, err := Open(cfg, "extguard-monitor", nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.History)
	assert.FileExists(t, rt.Sink.Path())
	assert.Equal(t, cfg.TerminateGrace, rt.Inventory.Grace)

	sweeper, err := rt.Sweeper(firewall.NewMemory())
	require.NoError(t, err)
	assert.True(t, sweeper.BlockFirewall)
	assert.NotNil(t, sweeper.Recorder)

	sup, orch, err := rt.Supervisor(enforce.NopNotifier{}, sweeper)
	require.NoError(t, err)
	assert.NotNil(t, sup)
	assert.Equal(t, enforce.StateIdle, orch.State("Chrome"))
}

func TestOpenWithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryPath = ""
	rt, err := Open(cfg, "extguard-blocker", nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.History)
	sweeper, err := rt.Sweeper(nil)
	require.NoError(t, err)
	assert.False(t, sweeper.BlockFirewall)
	assert.Nil(t, sweeper.Recorder)
}

func TestSweeperRejectsBadPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.AllowedImages = []string{"[unterminated"}
	rt, err := Open(cfg, "extguard-blocker", nil)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Sweeper(nil)
	assert.Error(t, err)
}

func TestDefaultSweepPatternsSpareNonBrowsers(t *testing.T) {
	rt, err := Open(testConfig(t), "extguard-blocker", nil)
	require.NoError(t, err)
	defer rt.Close()
	sweeper, err := rt.Sweeper(nil)
	require.NoError(t, err)

	for _, image := range []string{
		"msedgewebview2.exe", "MicrosoftEdgeUpdate.exe", "EpicGamesLauncher.exe", "perfmonitor.exe",
		"ControlCenter.exe", "WinStore.App.exe", "setup_environment.exe", "chrome_proxy.exe",
		"Firefox Installer.exe", "extguard-monitor.exe", "env", "flatpak",
	} {
		assert.False(t, sweeper.Matcher.Candidate(image), image)
	}
	for _, image := range []string{"firefox.exe", "opera_gx.exe", "tor.exe", "start-tor-browser", "vivaldi.exe", "chromium"} {
		assert.True(t, sweeper.Matcher.Candidate(image), image)
	}
}

func TestComponentLoggersShareSessionLog(t *testing.T) {
	rt, err := Open(testConfig(t), "extguard-blocker", nil)
	require.NoError(t, err)
	sweeper, err := rt.Sweeper(nil)
	require.NoError(t, err)

	sweeper.Log.Infof("rule check")
	path := rt.Sink.Path()
	rt.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[sweep] [INFO] rule check")
}

func TestMonitorCommandConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watchdog.MonitorCommand = `/opt/extguard/extguard-monitor --background --config /etc/extguard.yaml`

	command, err := MonitorCommand(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Watchdog.MonitorCommand, command)
}

func TestMonitorCommandDefaultsToMonitorBinary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watchdog.MonitorCommand = ""

	command, err := MonitorCommand(cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(command, cfg.Watchdog.MonitorImage+`" --background`), command)

	dir := filepath.Join("opt", "extguard")
	fromWatchdog := monitorCommandFor(filepath.Join(dir, "extguard-watchdog"), "extguard-monitor")
	fromMonitor := monitorCommandFor(filepath.Join(dir, "EXTGUARD-MONITOR"), "extguard-monitor")
	assert.Equal(t, autostart.Command(filepath.Join(dir, "extguard-monitor")), fromWatchdog)
	assert.Equal(t, autostart.Command(filepath.Join(dir, "EXTGUARD-MONITOR")), fromMonitor)
}
