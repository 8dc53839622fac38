package process

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/logging"
)

const (
	defaultGrace = 500 * time.Millisecond
	pollInterval = 100 * time.Millisecond
)

// Running is a live process matched against a configured image name.
type Running struct {
	Info
	Image string `json:"image"`
}

// Inventory matches the process table against image names and terminates
// matching processes.
type Inventory struct {
	ctrl  Controller
	clock clock.Clock
	log   *logging.Logger
	Grace time.Duration
}

// NewInventory wires an inventory. clk and log may be nil.
func NewInventory(ctrl Controller, clk clock.Clock, log *logging.Logger) *Inventory {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Inventory{ctrl: ctrl, clock: clk, log: log, Grace: defaultGrace}
}

// MatchImage compares a process name to an image name, case-insensitively,
// falling back to the base names without executable extension.
func MatchImage(name, image string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	image = strings.ToLower(strings.TrimSpace(filepath.Base(image)))
	if name == "" || image == "" {
		return false
	}
	if name == image {
		return true
	}
	return baseName(name) == baseName(image)
}

func baseName(image string) string {
	ext := filepath.Ext(image)
	if strings.EqualFold(ext, ".exe") {
		return strings.TrimSuffix(image, ext)
	}
	return image
}

// ListRunning makes a single pass over the process table and returns every
// process matching one of images.
func (inv *Inventory) ListRunning(ctx context.Context, images []string) ([]Running, error) {
	procs, err := inv.ctrl.Processes(ctx)
	if err != nil {
		return nil, err
	}
	var running []Running
	for _, p := range procs {
		for _, image := range images {
			if MatchImage(p.Name, image) {
				running = append(running, Running{Info: p, Image: image})
				break
			}
		}
	}
	return running, nil
}

// Terminate asks every process matching image to exit, waits up to Grace,
// then force-kills survivors. It returns the number of processes ended.
// Processes that vanish first or that cannot be touched are not counted.
func (inv *Inventory) Terminate(ctx context.Context, image string) int {
	procs, err := inv.ListRunning(ctx, []string{image})
	if err != nil {
		inv.log.Errorf("Error listing processes for %s: %v", image, err)
		return 0
	}
	if len(procs) == 0 {
		return 0
	}

	var signalled []int32
	for _, p := range procs {
		err := inv.ctrl.Terminate(ctx, p.PID)
		switch {
		case err == nil:
			signalled = append(signalled, p.PID)
		case errors.Is(err, ErrNotRunning):
		default:
			inv.logActionError(p.PID, err)
		}
	}

	deadline := inv.clock.Now().Add(inv.Grace)
	survivors := signalled
	for len(survivors) > 0 && inv.clock.Now().Before(deadline) {
		if err := inv.clock.Sleep(ctx, pollInterval); err != nil {
			break
		}
		survivors = inv.alive(ctx, survivors)
	}

	killed := len(signalled)
	for _, pid := range survivors {
		err := inv.ctrl.Kill(ctx, pid)
		if err != nil && !errors.Is(err, ErrNotRunning) {
			inv.logActionError(pid, err)
			killed--
		}
	}

	if killed > 0 {
		inv.log.Infof("Terminated %d process(es) for %s", killed, image)
	}
	return killed
}

func (inv *Inventory) alive(ctx context.Context, pids []int32) []int32 {
	var alive []int32
	for _, pid := range pids {
		running, err := inv.ctrl.Running(ctx, pid)
		if err != nil || running {
			alive = append(alive, pid)
		}
	}
	return alive
}

func (inv *Inventory) logActionError(pid int32, err error) {
	var accessErr *AccessError
	if errors.As(err, &accessErr) {
		inv.log.Warnf("Skipping pid %d: %v", pid, err)
		return
	}
	inv.log.Errorf("Error ending pid %d: %v", pid, err)
}
