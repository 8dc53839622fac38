package monitor

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/logging"
)

var watchedFiles = map[string]bool{
	browsers.PreferencesFile:     true,
	"extensions.json":            true,
	"extension-preferences.json": true,
}

// PreferenceWatcher calls onChange whenever a watched preference store is
// written, so a tick can run before the next interval.
type PreferenceWatcher struct {
	w        *fsnotify.Watcher
	onChange func()
	log      *logging.Logger
	watched  int
}

// NewPreferenceWatcher watches every profile directory of defs that exists
// now. Profiles created later are picked up by the regular tick.
func NewPreferenceWatcher(defs []browsers.Definition, onChange func(), log *logging.Logger) (*PreferenceWatcher, error) {
	if log == nil {
		log = logging.Discard()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	pw := &PreferenceWatcher{w: w, onChange: onChange, log: log}
	for _, def := range defs {
		for _, root := range def.Roots {
			dirs, err := browsers.ProfileDirs(root, def.Layout)
			if err != nil {
				continue
			}
			for _, dir := range dirs {
				if err := w.Add(dir); err != nil {
					log.Debugf("Cannot watch %s: %v", dir, err)
					continue
				}
				pw.watched++
			}
		}
	}
	return pw, nil
}

// Watched is the number of directories being watched.
func (p *PreferenceWatcher) Watched() int {
	return p.watched
}

// Run forwards relevant events until ctx is cancelled or the watcher closes.
func (p *PreferenceWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.w.Events:
			if !ok {
				return
			}
			if !watchedFiles[filepath.Base(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				p.log.Debugf("Preference change: %s", ev)
				p.onChange()
			}
		case err, ok := <-p.w.Errors:
			if !ok {
				return
			}
			p.log.Warnf("Preference watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (p *PreferenceWatcher) Close() error {
	return p.w.Close()
}
