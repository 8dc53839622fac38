//go:build !windows

package discovery

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RegisteredBrowsers lists the executables of .desktop entries in the XDG
// application directories whose Categories include WebBrowser.
func RegisteredBrowsers() ([]string, error) {
	return desktopBrowsers(applicationDirs())
}

func applicationDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return dirs
}

func desktopBrowsers(dirs []string) ([]string, error) {
	var exes []string
	for _, dir := range dirs {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.desktop"))
		for _, path := range matches {
			exe, ok := desktopExec(path)
			if !ok {
				continue
			}
			if !filepath.IsAbs(exe) {
				resolved, err := exec.LookPath(exe)
				if err != nil {
					continue
				}
				exe = resolved
			}
			exes = append(exes, exe)
		}
	}
	return exes, nil
}

func desktopExec(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	var execLine string
	browser := false
	sc := bufio.NewScanner(f)
	inEntry := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Exec="):
			execLine = strings.TrimPrefix(line, "Exec=")
		case strings.HasPrefix(line, "Categories="):
			for _, c := range strings.Split(strings.TrimPrefix(line, "Categories="), ";") {
				if c == "WebBrowser" {
					browser = true
				}
			}
		}
	}
	if !browser || execLine == "" {
		return "", false
	}
	return desktopProgram(execLine)
}

// sandboxLaunchers start the browser inside a sandbox where its executable
// path and process name differ from anything in the Exec line.
var sandboxLaunchers = map[string]bool{"flatpak": true, "snap": true, "firejail": true}

// desktopProgram returns the program an Exec line runs, looking through an
// env prefix and its VAR=value assignments. Sandboxed launches are skipped.
func desktopProgram(execLine string) (string, bool) {
	fields := execFields(execLine)
	i := 0
	if i < len(fields) && filepath.Base(fields[i]) == "env" {
		i++
		for i < len(fields) && strings.HasPrefix(fields[i], "-") {
			if fields[i] == "-u" || fields[i] == "--unset" || fields[i] == "-C" || fields[i] == "--chdir" {
				i++
			}
			i++
		}
	}
	for i < len(fields) && isAssignment(fields[i]) {
		i++
	}
	if i >= len(fields) {
		return "", false
	}
	program := fields[i]
	if sandboxLaunchers[filepath.Base(program)] {
		return "", false
	}
	return program, true
}

func isAssignment(field string) bool {
	eq := strings.IndexByte(field, '=')
	return eq > 0 && !strings.ContainsRune(field[:eq], '/')
}

// execFields splits an Exec value on blanks, honoring double quotes.
func execFields(line string) []string {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
		inWord bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inWord = true
		case (r == ' ' || r == '\t') && !quoted:
			if inWord {
				fields = append(fields, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		fields = append(fields, cur.String())
	}
	return fields
}
