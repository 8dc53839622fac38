package browsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PreferencesFile is the Chromium per-profile preference store.
const PreferencesFile = "Preferences"

// SnapshotsDir holds historical profile copies as Snapshots/<version>/<profile>.
const SnapshotsDir = "Snapshots"

var incognitoModes = map[string]bool{
	"spanning": true,
	"split":    true,
	"enabled":  true,
	"true":     true,
	"on":       true,
}

type chromiumPreferences struct {
	Extensions struct {
		Settings map[string]json.RawMessage `json:"settings"`
	} `json:"extensions"`
}

type chromiumExtensionSettings struct {
	State            json.RawMessage `json:"state"`
	DisableReasons   json.RawMessage `json:"disable_reasons"`
	Incognito        json.RawMessage `json:"incognito"`
	AllowInIncognito json.RawMessage `json:"allow_in_incognito"`
}

// ReadChromiumProfile reads extensions.settings[id] from <profileDir>/Preferences.
func ReadChromiumProfile(profileDir, id string) (ExtensionRecord, error) {
	return ReadPreferences(filepath.Join(profileDir, PreferencesFile), id)
}

// ReadPreferences parses one Chromium preference store.
func ReadPreferences(path, id string) (ExtensionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtensionRecord{}, &ReadError{Path: path, Err: err}
	}

	var prefs chromiumPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return ExtensionRecord{}, &ReadError{Path: path, Err: fmt.Errorf("malformed preferences: %w", err)}
	}

	raw, ok := prefs.Extensions.Settings[id]
	if !ok || isEmptyJSON(raw) {
		return ExtensionRecord{}, ErrNotPresent
	}

	var settings chromiumExtensionSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return ExtensionRecord{}, &ReadError{Path: path, Err: fmt.Errorf("malformed settings for %s: %w", id, err)}
	}

	record := ExtensionRecord{
		Profile:          filepath.Dir(path),
		DisableReasons:   parseDisableReasons(settings.DisableReasons),
		IncognitoAllowed: incognitoAllowed(settings.Incognito) || truthy(settings.AllowInIncognito),
	}

	if state, ok := parseNumber(settings.State); ok {
		if state == 0 {
			record.Enabled = StateDisabled
		} else {
			record.Enabled = StateEnabled
		}
	}
	if len(record.DisableReasons) > 0 {
		record.Enabled = StateDisabled
	}
	return record, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	if isEmptyJSON(raw) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// parseDisableReasons accepts both the list form and the legacy bitmask.
func parseDisableReasons(raw json.RawMessage) []int {
	if isEmptyJSON(raw) {
		return nil
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	if n, ok := parseNumber(raw); ok && n != 0 {
		return []int{int(n)}
	}
	return nil
}

func incognitoAllowed(raw json.RawMessage) bool {
	if isEmptyJSON(raw) {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return incognitoModes[strings.ToLower(strings.TrimSpace(s))]
	}
	return truthy(raw)
}

func truthy(raw json.RawMessage) bool {
	if isEmptyJSON(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	if n, ok := parseNumber(raw); ok {
		return n != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s != ""
	}
	return false
}

// chromiumProfileDirs lists every directory under root holding a preference
// store, including Snapshots/<version>/<profile>.
func chromiumProfileDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if strings.EqualFold(entry.Name(), SnapshotsDir) {
			dirs = append(dirs, snapshotProfileDirs(path)...)
			continue
		}
		if hasFile(path, PreferencesFile) {
			dirs = append(dirs, path)
		}
	}
	return dirs, nil
}

func snapshotProfileDirs(snapshotsRoot string) []string {
	versions, err := os.ReadDir(snapshotsRoot)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, ver := range versions {
		if !ver.IsDir() {
			continue
		}
		verDir := filepath.Join(snapshotsRoot, ver.Name())
		profiles, err := os.ReadDir(verDir)
		if err != nil {
			continue
		}
		for _, prof := range profiles {
			if !prof.IsDir() {
				continue
			}
			profileDir := filepath.Join(verDir, prof.Name())
			if hasFile(profileDir, PreferencesFile) {
				dirs = append(dirs, profileDir)
			}
		}
	}
	return dirs
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
