package watchdog

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// Launcher starts the monitor process.
type Launcher interface {
	Launch(ctx context.Context, exe string, args []string) (int, error)
}

// ExecLauncher starts the monitor detached from the watchdog, so it outlives
// the watchdog's console and session.
type ExecLauncher struct{}

func (ExecLauncher) Launch(ctx context.Context, exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// reap the child if it exits while we are still around
	go cmd.Wait()
	return pid, nil
}

// SplitCommand splits a command line into executable and arguments. Double
// quotes group words; backslashes are kept literally.
func SplitCommand(line string) (string, []string, error) {
	var (
		words   []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				words = append(words, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return "", nil, errors.New("unterminated quote in command")
	}
	if started {
		words = append(words, cur.String())
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], words[1:], nil
}

// MemoryLauncher records launches instead of starting processes. OnLaunch,
// when set, runs for every launch.
type MemoryLauncher struct {
	mu       sync.Mutex
	launches [][]string
	err      error
	OnLaunch func(exe string, args []string) int
}

func (m *MemoryLauncher) Launch(ctx context.Context, exe string, args []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.launches = append(m.launches, append([]string{exe}, args...))
	pid := 0
	if m.OnLaunch != nil {
		pid = m.OnLaunch(exe, args)
	}
	return pid, nil
}

// FailWith makes every later launch fail with err. nil clears it.
func (m *MemoryLauncher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Launches returns the recorded command lines.
func (m *MemoryLauncher) Launches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.launches...)
}
