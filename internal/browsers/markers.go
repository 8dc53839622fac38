package browsers

import (
	"os"
	"path/filepath"
)

// Sentinel files written by the extension side when it detects that it has
// been turned off.
const (
	detectedDisabledMarker  = "guardianDetectedDisabled"
	extensionDisabledMarker = "extensionDisabled"
)

// LegacyMarker looks for a disable marker in the Default profile of every
// root and returns the first one found.
func LegacyMarker(def Definition, id string) (string, bool) {
	if def.Layout != LayoutChromium && def.Layout != "" {
		return "", false
	}
	for _, root := range def.Roots {
		profile := filepath.Join(root, "Default")
		for _, path := range []string{
			filepath.Join(profile, "Local Storage", "leveldb", detectedDisabledMarker),
			filepath.Join(profile, "Storage", "ext", id, extensionDisabledMarker),
		} {
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}
