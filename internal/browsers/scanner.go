package browsers

import (
	"errors"
	"io/fs"

	"github.com/lotekdan/extguard/internal/logging"
)

// Verdict is the reduction of every profile record of one browser.
type Verdict int

const (
	VerdictIndeterminate Verdict = iota
	VerdictEnabled
	VerdictDisabled
)

func (v Verdict) String() string {
	switch v {
	case VerdictEnabled:
		return "Enabled"
	case VerdictDisabled:
		return "Disabled"
	default:
		return "Indeterminate"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ProfileOutcome is the result of reading one profile.
type ProfileOutcome struct {
	Profile string           `json:"profile"`
	Present bool             `json:"present"`
	Record  *ExtensionRecord `json:"record,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Scan is the result of scanning every profile of one browser.
type Scan struct {
	Browser    string           `json:"browser"`
	Verdict    Verdict          `json:"verdict"`
	Checked    int              `json:"checked"`
	Present    int              `json:"present"`
	ReadErrors int              `json:"read_errors"`
	Outcomes   []ProfileOutcome `json:"profiles"`
	Reason     string           `json:"reason,omitempty"`
}

// Readable is the number of profiles that were read without error.
func (s Scan) Readable() int {
	return s.Checked - s.ReadErrors
}

// ProfileDirs lists every profile directory under root for layout.
func ProfileDirs(root string, layout Layout) ([]string, error) {
	if layout == LayoutFirefox {
		return firefoxProfileDirs(root)
	}
	return chromiumProfileDirs(root)
}

// Scanner reduces the profile records of a browser into a verdict.
type Scanner struct {
	ExtensionID string
	// LegacyMarkers enables the marker-file fallback when no profile at all
	// could be read.
	LegacyMarkers bool
	Log           *logging.Logger
}

// NewScanner returns a scanner for id.
func NewScanner(id string, log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.Discard()
	}
	return &Scanner{ExtensionID: id, LegacyMarkers: true, Log: log}
}

// Scan reads every profile of def. A single disabled profile short-circuits
// to Disabled; read errors never count as evidence of disablement; absence
// with no read errors is a violation.
func (s *Scanner) Scan(def Definition) Scan {
	log := s.Log
	if log == nil {
		log = logging.Discard()
	}
	read := ReaderFor(def.Layout)
	result := Scan{Browser: def.Name}
	enabledSeen := false

	for _, root := range def.Roots {
		dirs, err := ProfileDirs(root, def.Layout)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result.ReadErrors++
			result.Checked++
			result.Outcomes = append(result.Outcomes, ProfileOutcome{Profile: root, Error: err.Error()})
			log.Warnf("%s: cannot enumerate %s: %v", def.Name, root, err)
			continue
		}

		for _, dir := range dirs {
			result.Checked++
			record, err := read(dir, s.ExtensionID)
			switch {
			case errors.Is(err, ErrNotPresent):
				result.Outcomes = append(result.Outcomes, ProfileOutcome{Profile: dir})
			case err != nil:
				result.ReadErrors++
				result.Outcomes = append(result.Outcomes, ProfileOutcome{Profile: dir, Error: err.Error()})
				log.Debugf("%s: %v", def.Name, err)
			default:
				result.Present++
				rec := record
				result.Outcomes = append(result.Outcomes, ProfileOutcome{Profile: dir, Present: true, Record: &rec})
				if record.Disabled() {
					result.Verdict = VerdictDisabled
					result.Reason = dir + ": " + record.Reason()
					return result
				}
				enabledSeen = true
			}
		}
	}

	switch {
	case enabledSeen:
		result.Verdict = VerdictEnabled
	case result.ReadErrors > 0:
		result.Verdict = VerdictIndeterminate
		result.Reason = "no profile could be evaluated"
		if s.LegacyMarkers && result.Readable() == 0 {
			if marker, ok := LegacyMarker(def, s.ExtensionID); ok {
				result.Verdict = VerdictDisabled
				result.Reason = "legacy marker " + marker
			}
		}
	case result.Checked == 0:
		result.Verdict = VerdictDisabled
		result.Reason = "no profiles found"
	default:
		result.Verdict = VerdictDisabled
		result.Reason = "extension not installed"
	}
	return result
}
