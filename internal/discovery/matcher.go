// Package discovery finds installed browser executables and sweeps away the
// ones that are not on the allow-list.
package discovery

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher classifies executable names. All comparisons are
// case-insensitive; a trailing .exe is ignored for the known-image set.
type Matcher struct {
	allowed  []glob.Glob
	exclude  []glob.Glob
	keywords []glob.Glob
	known    map[string]bool
}

// NewMatcher compiles the allow-list and exclusion patterns (globs such as
// "chrome.exe" or "extguard*"), the known image names and vendor keywords.
func NewMatcher(allowed, known, keywords, exclude []string) (*Matcher, error) {
	m := &Matcher{known: make(map[string]bool)}

	var err error
	if m.allowed, err = compileAll(allowed, "allowed"); err != nil {
		return nil, err
	}
	if m.exclude, err = compileAll(exclude, "exclude"); err != nil {
		return nil, err
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		g, err := glob.Compile(keywordPattern(kw))
		if err != nil {
			return nil, fmt.Errorf("invalid keyword '%s': %w", kw, err)
		}
		m.keywords = append(m.keywords, g)
	}
	for _, image := range known {
		m.known[stripExe(strings.ToLower(image))] = true
	}
	return m, nil
}

// keywordPattern matches kw at the start of a name or right after a
// separator, so "tor" matches "tor.exe" and "start-tor-browser" but not
// "perfmonitor.exe".
func keywordPattern(kw string) string {
	q := glob.QuoteMeta(kw)
	return "{" + q + "*,*-" + q + "*,*_" + q + "*,*." + q + "*,* " + q + "*}"
}

func compileAll(patterns []string, kind string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern '%s': %w", kind, pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func normalize(image string) string {
	return strings.ToLower(filepath.Base(strings.TrimSpace(image)))
}

func stripExe(name string) string {
	return strings.TrimSuffix(name, ".exe")
}

func matchAny(patterns []glob.Glob, name string) bool {
	base := stripExe(name)
	for _, p := range patterns {
		if p.Match(name) || p.Match(base) || p.Match(base+".exe") {
			return true
		}
	}
	return false
}

// Allowed reports whether image may keep running.
func (m *Matcher) Allowed(image string) bool {
	return matchAny(m.allowed, normalize(image))
}

// Excluded reports whether image must never be touched.
func (m *Matcher) Excluded(image string) bool {
	return matchAny(m.exclude, normalize(image))
}

// Known reports whether image is a known browser image.
func (m *Matcher) Known(image string) bool {
	return m.known[stripExe(normalize(image))]
}

// Candidate reports whether a file name looks like a browser executable.
func (m *Matcher) Candidate(name string) bool {
	name = normalize(name)
	if m.Excluded(name) {
		return false
	}
	return m.Known(name) || matchAny(m.keywords, name)
}

// KnownImages returns the known image names.
func (m *Matcher) KnownImages() []string {
	images := make([]string, 0, len(m.known))
	for image := range m.known {
		images = append(images, image)
	}
	return images
}
