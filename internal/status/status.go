// Package status reports the current extension verdict of every configured
// browser for the extguard command.
package status

import (
	"context"
	"strings"

	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/process"
)

// Inventory lists running processes by image name.
type Inventory interface {
	ListRunning(ctx context.Context, images []string) ([]process.Running, error)
}

// Entry is the status of one browser.
type Entry struct {
	browsers.Scan
	Image   string `json:"image"`
	Running int    `json:"running"`
}

// Collect scans every definition matching filter (all when empty). Unlike the
// monitor it also scans browsers that are not running. A process listing
// failure leaves Running at zero.
func Collect(ctx context.Context, defs []browsers.Definition, scanner *browsers.Scanner, inv Inventory, filter string) []Entry {
	var selected []browsers.Definition
	for _, def := range defs {
		if filter == "" || def.MatchName(filter) {
			selected = append(selected, def)
		}
	}

	counts := make(map[string]int)
	if inv != nil && len(selected) > 0 {
		if running, err := inv.ListRunning(ctx, config.Images(selected)); err == nil {
			for _, p := range running {
				counts[p.Image]++
			}
		}
	}

	entries := make([]Entry, 0, len(selected))
	for _, def := range selected {
		entries = append(entries, Entry{
			Scan:    scanner.Scan(def),
			Image:   def.Image,
			Running: counts[def.Image],
		})
	}
	return entries
}

// Violations counts entries whose verdict is Disabled.
func Violations(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Verdict == browsers.VerdictDisabled {
			n++
		}
	}
	return n
}

// Names lists the browser names of defs, for usage text.
func Names(defs []browsers.Definition) string {
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return strings.Join(names, ", ")
}
