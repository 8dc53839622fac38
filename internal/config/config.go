// Package config loads the extguard configuration: built-in defaults, an
// optional YAML file and EXTGUARD_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lotekdan/extguard/internal/browsers"
)

// DefaultExtensionID is the extension the agent guards.
const DefaultExtensionID = "ljfmjogahnigohdjkknaangiicalhlag"

// MinCountdown is the shortest countdown the agent will ever run.
const MinCountdown = 15 * time.Second

// Config is the full agent configuration.
type Config struct {
	ExtensionID           string          `yaml:"extension_id"`
	MonitoringEnabled     bool            `yaml:"monitoring_enabled"`
	EnforcementEnabled    bool            `yaml:"enforcement_enabled"`
	CheckInterval         time.Duration   `yaml:"check_interval"`
	Countdown             time.Duration   `yaml:"countdown"`
	Cooldown              time.Duration   `yaml:"cooldown"`
	ConfirmationThreshold int             `yaml:"confirmation_threshold"`
	TerminateGrace        time.Duration   `yaml:"terminate_grace"`
	ErrorBackoff          time.Duration   `yaml:"error_backoff"`
	SnapshotLines         int             `yaml:"snapshot_lines"`
	WatchPreferences      bool            `yaml:"watch_preferences"`
	LegacyMarkers         bool            `yaml:"legacy_markers"`
	LogDir                string          `yaml:"log_dir"`
	HistoryPath           string          `yaml:"history_path"`
	Browsers              []BrowserConfig `yaml:"browsers"`
	Sweep                 SweepConfig     `yaml:"sweep"`
	Watchdog              WatchdogConfig  `yaml:"watchdog"`
}

// BrowserConfig holds the per-OS image name and profile roots of one browser.
type BrowserConfig struct {
	Name         string          `yaml:"name"`
	Layout       browsers.Layout `yaml:"layout"`
	WindowsImage string          `yaml:"windows_image"`
	MacOSImage   string          `yaml:"macos_image"`
	LinuxImage   string          `yaml:"linux_image"`
	WindowsRoots []string        `yaml:"windows_roots"`
	MacOSRoots   []string        `yaml:"macos_roots"`
	LinuxRoots   []string        `yaml:"linux_roots"`
}

// SweepConfig configures the unauthorized-browser sweep.
type SweepConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Interval           time.Duration `yaml:"interval"`
	RediscoverInterval time.Duration `yaml:"rediscover_interval"`
	AllowedImages      []string      `yaml:"allowed_images"`
	KnownImages        []string      `yaml:"known_images"`
	Keywords           []string      `yaml:"keywords"`
	ExcludeImages      []string      `yaml:"exclude_images"`
	InstallRoots       []string      `yaml:"install_roots"`
	KnownPaths         []string      `yaml:"known_paths"`
	MaxDepth           int           `yaml:"max_depth"`
	BlockFirewall      bool          `yaml:"block_firewall"`
	FirewallRulePrefix string        `yaml:"firewall_rule_prefix"`
}

// WatchdogConfig configures the supervisor process.
type WatchdogConfig struct {
	Interval             time.Duration `yaml:"interval"`
	RegistrationInterval time.Duration `yaml:"registration_interval"`
	ErrorBackoff         time.Duration `yaml:"error_backoff"`
	MonitorImage         string        `yaml:"monitor_image"`
	MonitorCommand       string        `yaml:"monitor_command"`
	AutostartName        string        `yaml:"autostart_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	monitorImage := "extguard-monitor"
	if runtime.GOOS == "windows" {
		monitorImage += ".exe"
	}
	return &Config{
		ExtensionID:           DefaultExtensionID,
		MonitoringEnabled:     true,
		EnforcementEnabled:    true,
		CheckInterval:         time.Second,
		Countdown:             MinCountdown,
		Cooldown:              60 * time.Second,
		ConfirmationThreshold: 3,
		TerminateGrace:        500 * time.Millisecond,
		ErrorBackoff:          5 * time.Second,
		SnapshotLines:         200,
		WatchPreferences:      true,
		LegacyMarkers:         true,
		LogDir:                defaultLogDir(),
		HistoryPath:           filepath.Join(defaultLogDir(), "history.db"),
		Browsers:              defaultBrowsers(),
		Sweep: SweepConfig{
			Enabled:            true,
			Interval:           time.Second,
			RediscoverInterval: 5 * time.Minute,
			AllowedImages:      []string{"chrome.exe", "msedge.exe", "brave.exe", "comet.exe"},
			KnownImages:        knownBrowserImages,
			Keywords:           vendorKeywords,
			ExcludeImages:      defaultExcludeImages,
			InstallRoots:       []string{"%ProgramFiles%", "%ProgramFiles(x86)%", "%LOCALAPPDATA%\\Programs", "%LOCALAPPDATA%"},
			KnownPaths:         knownInstallPaths,
			MaxDepth:           3,
			BlockFirewall:      true,
			FirewallRulePrefix: "ExtensionGuardian",
		},
		Watchdog: WatchdogConfig{
			Interval:             10 * time.Second,
			RegistrationInterval: 60 * time.Second,
			ErrorBackoff:         30 * time.Second,
			MonitorImage:         monitorImage,
			AutostartName:        "ExtensionGuardian",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty and present) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config load: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config unmarshal: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Countdown < MinCountdown {
		c.Countdown = MinCountdown
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = 500 * time.Millisecond
	}
	if c.Sweep.FirewallRulePrefix == "" {
		c.Sweep.FirewallRulePrefix = "ExtensionGuardian"
	}
	if c.Sweep.MaxDepth <= 0 {
		c.Sweep.MaxDepth = 3
	}
	c.LogDir = ExpandPath(c.LogDir)
	c.HistoryPath = ExpandPath(c.HistoryPath)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ExtensionID) == "" {
		return fmt.Errorf("extension_id is required")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %s", c.CheckInterval)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative, got %s", c.Cooldown)
	}
	if c.ConfirmationThreshold < 1 {
		return fmt.Errorf("confirmation_threshold must be at least 1, got %d", c.ConfirmationThreshold)
	}
	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("error_backoff must be positive, got %s", c.ErrorBackoff)
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Watchdog.Interval <= 0 || c.Watchdog.RegistrationInterval <= 0 || c.Watchdog.ErrorBackoff <= 0 {
		return fmt.Errorf("watchdog intervals must be positive")
	}
	if c.Watchdog.MonitorImage == "" {
		return fmt.Errorf("watchdog.monitor_image is required")
	}
	for i, b := range c.Browsers {
		if b.Name == "" {
			return fmt.Errorf("browsers[%d]: name is required", i)
		}
		if b.Layout != "" && b.Layout != browsers.LayoutChromium && b.Layout != browsers.LayoutFirefox {
			return fmt.Errorf("browsers[%d]: unknown layout %q", i, b.Layout)
		}
	}
	return nil
}

// Definitions resolves the browser list for goos ("windows", "darwin",
// "linux"). Browsers without an image on goos are skipped.
func (c *Config) Definitions(goos string) []browsers.Definition {
	var defs []browsers.Definition
	for _, b := range c.Browsers {
		var image string
		var roots []string
		switch goos {
		case "windows":
			image, roots = b.WindowsImage, b.WindowsRoots
		case "darwin":
			image, roots = b.MacOSImage, b.MacOSRoots
		default:
			image, roots = b.LinuxImage, b.LinuxRoots
		}
		if image == "" {
			continue
		}
		layout := b.Layout
		if layout == "" {
			layout = browsers.LayoutChromium
		}
		expanded := make([]string, 0, len(roots))
		for _, root := range roots {
			if r := ExpandPath(root); r != "" {
				expanded = append(expanded, r)
			}
		}
		defs = append(defs, browsers.Definition{Name: b.Name, Image: image, Layout: layout, Roots: expanded})
	}
	return defs
}

// Images returns the image names of defs.
func Images(defs []browsers.Definition) []string {
	images := make([]string, 0, len(defs))
	for _, def := range defs {
		images = append(images, def.Image)
	}
	return images
}

func defaultLogDir() string {
	if runtime.GOOS == "windows" {
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "ExtensionGuardian", "logs")
		}
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "extguard", "logs")
	}
	return filepath.Join(os.TempDir(), "extguard", "logs")
}
