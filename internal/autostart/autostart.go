// Package autostart keeps the monitor registered to start at user logon.
package autostart

import (
	"fmt"
	"sync"
)

// Registrar reads and writes one named logon-startup entry.
type Registrar interface {
	// Lookup returns the registered command for name, if any.
	Lookup(name string) (string, bool, error)
	Register(name, command string) error
}

// RegistrationError reports a failed autostart write. Callers retry on their
// next interval.
type RegistrationError struct {
	Name string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("autostart registration %q failed: %v", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Ensure registers command under name unless an identical entry exists. It
// reports whether the entry was (re)written.
func Ensure(r Registrar, name, command string) (bool, error) {
	current, ok, err := r.Lookup(name)
	if err == nil && ok && current == command {
		return false, nil
	}
	if err := r.Register(name, command); err != nil {
		return false, &RegistrationError{Name: name, Err: err}
	}
	return true, nil
}

// Command builds the autostart command line for exe: "<exe>" --background.
func Command(exe string) string {
	return `"` + exe + `" --background`
}

// Memory is an in-memory Registrar.
type Memory struct {
	mu      sync.Mutex
	entries map[string]string
	failErr error
	writes  int
}

// NewMemory returns an empty registrar.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Lookup(name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[name]
	return v, ok, nil
}

func (m *Memory) Register(name, command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.entries[name] = command
	m.writes++
	return nil
}

// Delete removes an entry, as an external tool would.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
}

// FailWith makes every Register return err until called with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Writes counts successful registrations.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
