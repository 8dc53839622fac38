package browsers

import (
	"errors"
	"fmt"
	"strings"
)

// Layout selects how profiles and extension state are stored on disk.
type Layout string

const (
	LayoutChromium Layout = "chromium"
	LayoutFirefox  Layout = "firefox"
)

// Definition describes one monitored browser: the process image to look for
// and the user-data roots of every install channel (stable, beta, dev, ...).
type Definition struct {
	Name   string
	Image  string
	Layout Layout
	Roots  []string
}

// State is the tri-state enabled flag of an extension record.
type State int

const (
	StateUnknown State = iota
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ExtensionRecord is the extension state read from one profile.
type ExtensionRecord struct {
	Profile          string `json:"profile"`
	Enabled          State  `json:"-"`
	DisableReasons   []int  `json:"disable_reasons,omitempty"`
	IncognitoAllowed bool   `json:"incognito_allowed"`
}

// Disabled reports whether the record violates policy: explicitly disabled,
// disabled for any reason, or not allowed in private browsing.
func (r ExtensionRecord) Disabled() bool {
	return r.Enabled == StateDisabled || len(r.DisableReasons) > 0 || !r.IncognitoAllowed
}

// Reason describes why a record is disabled.
func (r ExtensionRecord) Reason() string {
	switch {
	case r.Enabled == StateDisabled && len(r.DisableReasons) > 0:
		return fmt.Sprintf("state=0 disable_reasons=%v", r.DisableReasons)
	case r.Enabled == StateDisabled:
		return "state=0"
	case len(r.DisableReasons) > 0:
		return fmt.Sprintf("disable_reasons=%v", r.DisableReasons)
	case !r.IncognitoAllowed:
		return "incognito not allowed"
	default:
		return ""
	}
}

// ErrNotPresent is returned when the extension has no entry in a profile.
var ErrNotPresent = errors.New("extension not present in profile")

// ReadError wraps a failure to read or parse a profile's preference store.
// It is never evidence of the extension's state.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader reads the extension record for id from one profile directory.
type Reader func(profileDir, id string) (ExtensionRecord, error)

// ReaderFor returns the record reader matching a profile layout.
func ReaderFor(layout Layout) Reader {
	if layout == LayoutFirefox {
		return ReadFirefoxProfile
	}
	return ReadChromiumProfile
}

// MatchName reports whether name selects def (case-insensitive name or image).
func (d Definition) MatchName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return true
	}
	return name == strings.ToLower(d.Name) ||
		name == strings.ToLower(d.Image) ||
		name == strings.TrimSuffix(strings.ToLower(d.Image), ".exe")
}
