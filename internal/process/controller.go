// Package process lists and terminates OS processes by image name.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	gproc "github.com/shirou/gopsutil/v3/process"
)

// Info is one entry of the process table.
type Info struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`
	Exe  string `json:"exe,omitempty"`
}

// Controller is the process-table capability.
type Controller interface {
	Processes(ctx context.Context) ([]Info, error)
	Terminate(ctx context.Context, pid int32) error
	Kill(ctx context.Context, pid int32) error
	Running(ctx context.Context, pid int32) (bool, error)
}

// ErrNotRunning is returned when the target process has already exited.
var ErrNotRunning = errors.New("process not running")

// AccessError reports insufficient rights to act on a process.
type AccessError struct {
	PID int32
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s pid %d: access denied: %v", e.Op, e.PID, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// SystemController is the gopsutil-backed Controller.
type SystemController struct{}

// NewSystemController returns the real process controller.
func NewSystemController() *SystemController {
	return &SystemController{}
}

// Processes returns every process whose name could be read.
func (SystemController) Processes(ctx context.Context) ([]Info, error) {
	procs, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		// exe is best effort: it is often unreadable for other users' processes
		exe, _ := p.ExeWithContext(ctx)
		infos = append(infos, Info{PID: p.Pid, Name: name, Exe: exe})
	}
	return infos, nil
}

// Terminate requests a graceful exit.
func (SystemController) Terminate(ctx context.Context, pid int32) error {
	p, err := gproc.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classify(pid, "terminate", err)
	}
	return classify(pid, "terminate", p.TerminateWithContext(ctx))
}

// Kill forcibly ends the process.
func (SystemController) Kill(ctx context.Context, pid int32) error {
	p, err := gproc.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classify(pid, "kill", err)
	}
	return classify(pid, "kill", p.KillWithContext(ctx))
}

// Running reports whether pid is still alive.
func (SystemController) Running(ctx context.Context, pid int32) (bool, error) {
	p, err := gproc.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(classify(pid, "query", err), ErrNotRunning) {
			return false, nil
		}
		return false, err
	}
	return p.IsRunningWithContext(ctx)
}

func classify(pid int32, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gproc.ErrorProcessNotRunning),
		errors.Is(err, os.ErrProcessDone),
		errors.Is(err, syscall.ESRCH):
		return ErrNotRunning
	case errors.Is(err, os.ErrPermission):
		return &AccessError{PID: pid, Op: op, Err: err}
	default:
		return fmt.Errorf("%s pid %d: %w", op, pid, err)
	}
}
