package autostart

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// XDG registers a freedesktop autostart entry (<dir>/<name>.desktop).
type XDG struct {
	dir string
}

// NewXDG returns a registrar writing into dir, or ~/.config/autostart when
// dir is empty.
func NewXDG(dir string) *XDG {
	if dir == "" {
		if cfg, err := os.UserConfigDir(); err == nil {
			dir = filepath.Join(cfg, "autostart")
		}
	}
	return &XDG{dir: dir}
}

func (x *XDG) path(name string) string {
	return filepath.Join(x.dir, name+".desktop")
}

func (x *XDG) Lookup(name string) (string, bool, error) {
	data, err := os.ReadFile(x.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Exec=") {
			return strings.TrimPrefix(line, "Exec="), true, nil
		}
	}
	return "", false, sc.Err()
}

func (x *XDG) Register(name, command string) error {
	if x.dir == "" {
		return fmt.Errorf("no autostart directory")
	}
	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return err
	}
	entry := fmt.Sprintf("[Desktop Entry]\nType=Application\nName=%s\nExec=%s\nX-GNOME-Autostart-enabled=true\nNoDisplay=true\n", name, command)

	// write then rename so a crash never leaves a truncated entry
	tmp := x.path(name) + ".tmp"
	if err := os.WriteFile(tmp, []byte(entry), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, x.path(name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
