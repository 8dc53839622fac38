package browsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	firefoxProfilesIni     = "profiles.ini"
	firefoxExtensionsFile  = "extensions.json"
	firefoxExtensionPrefs  = "extension-preferences.json"
	privateBrowsingAllowed = "internal:privateBrowsingAllowed"
)

type firefoxAddons struct {
	Addons []struct {
		ID           string `json:"id"`
		Active       bool   `json:"active"`
		UserDisabled bool   `json:"userDisabled"`
		AppDisabled  bool   `json:"appDisabled"`
	} `json:"addons"`
}

type firefoxAddonPrefs map[string]struct {
	Permissions []string `json:"permissions"`
}

// ReadFirefoxProfile reads the add-on state for id from a Firefox profile:
// extensions.json for the enabled flag and extension-preferences.json for the
// private browsing permission.
func ReadFirefoxProfile(profileDir, id string) (ExtensionRecord, error) {
	path := filepath.Join(profileDir, firefoxExtensionsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtensionRecord{}, &ReadError{Path: path, Err: err}
	}

	var addons firefoxAddons
	if err := json.Unmarshal(data, &addons); err != nil {
		return ExtensionRecord{}, &ReadError{Path: path, Err: fmt.Errorf("malformed extensions.json: %w", err)}
	}

	for _, addon := range addons.Addons {
		if addon.ID != id {
			continue
		}
		record := ExtensionRecord{Profile: profileDir, Enabled: StateEnabled}
		if !addon.Active || addon.UserDisabled || addon.AppDisabled {
			record.Enabled = StateDisabled
		}
		allowed, err := firefoxPrivateBrowsing(profileDir, id)
		if err != nil {
			return ExtensionRecord{}, err
		}
		record.IncognitoAllowed = allowed
		return record, nil
	}
	return ExtensionRecord{}, ErrNotPresent
}

func firefoxPrivateBrowsing(profileDir, id string) (bool, error) {
	path := filepath.Join(profileDir, firefoxExtensionPrefs)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &ReadError{Path: path, Err: err}
	}

	var prefs firefoxAddonPrefs
	if err := json.Unmarshal(data, &prefs); err != nil {
		return false, &ReadError{Path: path, Err: fmt.Errorf("malformed extension preferences: %w", err)}
	}
	for _, perm := range prefs[id].Permissions {
		if perm == privateBrowsingAllowed {
			return true, nil
		}
	}
	return false, nil
}

// firefoxProfileDirs resolves every Path= entry of profiles.ini that holds an
// extensions.json.
func firefoxProfileDirs(root string) ([]string, error) {
	iniData, err := os.ReadFile(filepath.Join(root, firefoxProfilesIni))
	if err != nil {
		return nil, err
	}

	var dirs []string
	seen := make(map[string]bool)
	section := ""
	relative := true
	var pending string

	flush := func() {
		if pending == "" {
			return
		}
		path := pending
		if relative && !filepath.IsAbs(path) {
			path = filepath.Join(root, filepath.FromSlash(path))
		}
		if !seen[path] && hasFile(path, firefoxExtensionsFile) {
			seen[path] = true
			dirs = append(dirs, path)
		}
		pending = ""
	}

	for _, line := range strings.Split(string(iniData), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			flush()
			section = line
			relative = true
		case section == "":
			continue
		case strings.HasPrefix(line, "Path="):
			pending = strings.TrimPrefix(line, "Path=")
		case strings.HasPrefix(line, "IsRelative="):
			relative = strings.TrimPrefix(line, "IsRelative=") != "0"
		}
	}
	flush()
	return dirs, nil
}
