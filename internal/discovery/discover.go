package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/lotekdan/extguard/internal/logging"
)

// Discoverer finds installed browser executables.
type Discoverer struct {
	// InstallRoots are walked at most MaxDepth directories deep.
	InstallRoots []string
	// KnownPaths are checked relative to every install root.
	KnownPaths []string
	MaxDepth   int
	Matcher    *Matcher
	// Registered lists executables from the OS browser registrations.
	Registered func() ([]string, error)
	Log        *logging.Logger
}

// Discover returns the sorted, de-duplicated executable paths.
func (d *Discoverer) Discover(ctx context.Context) []string {
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}
	found := make(map[string]bool)

	if d.Registered != nil {
		exes, err := d.Registered()
		if err != nil {
			log.Debugf("Registered browser lookup failed: %v", err)
		}
		for _, exe := range exes {
			if exe == "" {
				continue
			}
			// registrations can point at launchers rather than the browser
			if !d.Matcher.Candidate(exe) {
				log.Debugf("Ignoring registered program '%s': not a browser executable", exe)
				continue
			}
			found[filepath.Clean(exe)] = true
		}
	}

	for _, root := range d.InstallRoots {
		if root == "" {
			continue
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		for _, rel := range d.KnownPaths {
			p := filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/")))
			if isExecutable(p) {
				found[filepath.Clean(p)] = true
			}
		}
		if ctx.Err() != nil {
			break
		}
		d.walk(ctx, root, found)
	}

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (d *Discoverer) walk(ctx context.Context, root string, found map[string]bool) {
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if entry.IsDir() {
			if depth+1 > maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Matcher.Candidate(entry.Name()) && isExecutable(path) {
			found[filepath.Clean(path)] = true
		}
		return nil
	})
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(path), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}

// ExtractExe returns the program path of a shell command line: the quoted
// first token, or everything up to the first space.
func ExtractExe(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if command[0] == '"' {
		if end := strings.IndexByte(command[1:], '"'); end >= 0 {
			return command[1 : end+1]
		}
		return strings.Trim(command, `"`)
	}
	if i := strings.IndexAny(command, " \t"); i >= 0 {
		return command[:i]
	}
	return command
}
