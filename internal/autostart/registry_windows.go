//go:build windows

package autostart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const runKey = `Software\Microsoft\Windows\CurrentVersion\Run`

var views = []uint32{registry.WOW64_64KEY, registry.WOW64_32KEY}

// Registry writes the HKCU Run value in both the 64-bit and 32-bit views.
type Registry struct{}

// NewSystem returns the registry-backed registrar.
func NewSystem() Registrar {
	return Registry{}
}

// Lookup only reports an entry when every view holds the same command.
func (Registry) Lookup(name string) (string, bool, error) {
	var found string
	for i, view := range views {
		k, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.QUERY_VALUE|view)
		if errors.Is(err, registry.ErrNotExist) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		val, _, err := k.GetStringValue(name)
		k.Close()
		if errors.Is(err, registry.ErrNotExist) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if i > 0 && val != found {
			return "", false, nil
		}
		found = val
	}
	return found, true, nil
}

func (Registry) Register(name, command string) error {
	var errs []error
	for _, view := range views {
		k, _, err := registry.CreateKey(registry.CURRENT_USER, runKey, registry.SET_VALUE|view)
		if err != nil {
			errs = append(errs, fmt.Errorf("open run key: %w", err))
			continue
		}
		if err := k.SetStringValue(name, command); err != nil {
			errs = append(errs, fmt.Errorf("set value: %w", err))
		}
		k.Close()
	}
	return errors.Join(errs...)
}
