package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var windowsVar = regexp.MustCompile(`%([^%]+)%`)

// ExpandPath expands %VAR%, $VAR / ${VAR} and a leading ~ and cleans the
// result into the host path syntax. Paths referencing an unset %VAR% are
// returned empty.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	missing := false
	path = windowsVar.ReplaceAllStringFunc(path, func(m string) string {
		v, ok := os.LookupEnv(strings.Trim(m, "%"))
		if !ok || v == "" {
			missing = true
		}
		return v
	})
	if missing {
		return ""
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	if filepath.Separator == '/' {
		path = strings.ReplaceAll(path, `\`, "/")
	}
	return filepath.Clean(path)
}

// applyEnvOverrides applies EXTGUARD_* environment overrides.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("EXTGUARD_EXTENSION_ID"); v != "" {
		c.ExtensionID = v
	}
	if v := os.Getenv("EXTGUARD_MONITORING_ENABLED"); v != "" {
		c.MonitoringEnabled = parseBool(v)
	}
	if v := os.Getenv("EXTGUARD_ENFORCEMENT_ENABLED"); v != "" {
		c.EnforcementEnabled = parseBool(v)
	}
	if v := os.Getenv("EXTGUARD_SWEEP_ENABLED"); v != "" {
		c.Sweep.Enabled = parseBool(v)
	}
	if v := os.Getenv("EXTGUARD_BLOCK_FIREWALL"); v != "" {
		c.Sweep.BlockFirewall = parseBool(v)
	}
	if d, ok := envDuration("EXTGUARD_CHECK_INTERVAL"); ok {
		c.CheckInterval = d
	}
	if d, ok := envDuration("EXTGUARD_COUNTDOWN"); ok {
		c.Countdown = d
	}
	if d, ok := envDuration("EXTGUARD_COOLDOWN"); ok {
		c.Cooldown = d
	}
	if v := os.Getenv("EXTGUARD_CONFIRMATION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ConfirmationThreshold = n
		}
	}
	if v := os.Getenv("EXTGUARD_ALLOWED_BROWSERS"); v != "" {
		c.Sweep.AllowedImages = splitList(v)
	}
	if v := os.Getenv("EXTGUARD_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("EXTGUARD_HISTORY_PATH"); v != "" {
		c.HistoryPath = v
	}
	if v := os.Getenv("EXTGUARD_MONITOR_COMMAND"); v != "" {
		c.Watchdog.MonitorCommand = v
	}
}

// envDuration accepts Go durations ("15s") or a plain number of seconds.
func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
