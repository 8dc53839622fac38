// Package consensus debounces per-browser verdicts so a single transient
// Disabled reading (for example a preference file caught mid-write) never
// triggers enforcement.
package consensus

import (
	"sync"

	"github.com/lotekdan/extguard/internal/browsers"
)

// DefaultThreshold is the number of consecutive Disabled verdicts needed.
const DefaultThreshold = 3

// Observation is the counter state after one verdict.
type Observation struct {
	Browser string
	Count   int
	// Confirmed is true exactly once per threshold crossing.
	Confirmed bool
}

type entry struct {
	count   int
	latched bool
}

// Tracker holds one counter per browser.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	entries   map[string]*entry
}

// New returns a tracker confirming after threshold Disabled verdicts.
func New(threshold int) *Tracker {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold, entries: make(map[string]*entry)}
}

// Observe feeds one verdict. Disabled increments the counter, Enabled resets
// it and clears the latch, Indeterminate leaves everything untouched.
func (t *Tracker) Observe(browser string, verdict browsers.Verdict) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(browser)
	obs := Observation{Browser: browser}
	switch verdict {
	case browsers.VerdictDisabled:
		e.count++
		if e.count >= t.threshold && !e.latched {
			e.latched = true
			obs.Confirmed = true
		}
	case browsers.VerdictEnabled:
		e.count = 0
		e.latched = false
	}
	obs.Count = e.count
	return obs
}

// Release clears the latch so the next Disabled verdict at or above the
// threshold confirms again. The counter is kept.
func (t *Tracker) Release(browser string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[browser]; ok {
		e.latched = false
	}
}

// Count returns the current counter for browser.
func (t *Tracker) Count(browser string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[browser]; ok {
		return e.count
	}
	return 0
}

// Latched reports whether a confirmation for browser is outstanding.
func (t *Tracker) Latched(browser string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[browser]; ok {
		return e.latched
	}
	return false
}

// Threshold returns the confirmation threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

func (t *Tracker) entry(browser string) *entry {
	e, ok := t.entries[browser]
	if !ok {
		e = &entry{}
		t.entries[browser] = e
	}
	return e
}
