// Package watchdog keeps the monitor process running and registered to start
// at logon.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotekdan/extguard/internal/autostart"
	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/process"
)

// Inventory lists running processes by image name.
type Inventory interface {
	ListRunning(ctx context.Context, images []string) ([]process.Running, error)
}

// Options configures a Watchdog.
type Options struct {
	Interval             time.Duration
	RegistrationInterval time.Duration
	ErrorBackoff         time.Duration

	MonitorImage string
	MonitorExe   string
	MonitorArgs  []string

	// AutostartName and AutostartCommand describe the logon entry.
	// Registration is skipped when Registrar is nil.
	AutostartName    string
	AutostartCommand string

	Inventory Inventory
	Launcher  Launcher
	Registrar autostart.Registrar
	Clock     clock.Clock
	Log       *logging.Logger
}

// Status is the outcome of one check.
type Status struct {
	Running    int  `json:"running"`
	Launched   bool `json:"launched"`
	PID        int  `json:"pid,omitempty"`
	Registered bool `json:"registered"`
}

type Watchdog struct {
	opts         Options
	log          *logging.Logger
	clock        clock.Clock
	registeredAt time.Time
	registered   bool
}

func New(opts Options) (*Watchdog, error) {
	if opts.Inventory == nil || opts.Launcher == nil {
		return nil, errors.New("watchdog: inventory and launcher are required")
	}
	if opts.MonitorImage == "" || opts.MonitorExe == "" {
		return nil, errors.New("watchdog: monitor image and executable are required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.RegistrationInterval <= 0 {
		opts.RegistrationInterval = time.Minute
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Watchdog{opts: opts, log: opts.Log, clock: opts.Clock}, nil
}

// Check relaunches the monitor if no instance is running and re-asserts the
// autostart entry when it is due. Launch and registration failures are
// both reported; a failed registration is retried on the next check.
func (w *Watchdog) Check(ctx context.Context) (Status, error) {
	var st Status
	var errs []error

	running, err := w.opts.Inventory.ListRunning(ctx, []string{w.opts.MonitorImage})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list processes: %w", err))
	} else {
		st.Running = len(running)
		if st.Running == 0 {
			w.log.Warnf("Monitor %s not running; launching %s", w.opts.MonitorImage, w.opts.MonitorExe)
			pid, err := w.opts.Launcher.Launch(ctx, w.opts.MonitorExe, w.opts.MonitorArgs)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to launch monitor: %w", err))
			} else {
				st.Launched = true
				st.PID = pid
				w.log.Infof("Monitor launched (pid %d)", pid)
			}
		}
	}

	if err := w.register(); err != nil {
		errs = append(errs, err)
	}
	st.Registered = w.registered
	return st, errors.Join(errs...)
}

func (w *Watchdog) register() error {
	if w.opts.Registrar == nil || w.opts.AutostartName == "" {
		return nil
	}
	now := w.clock.Now()
	if w.registered && now.Sub(w.registeredAt) < w.opts.RegistrationInterval {
		return nil
	}
	changed, err := autostart.Ensure(w.opts.Registrar, w.opts.AutostartName, w.opts.AutostartCommand)
	if err != nil {
		w.registered = false
		return err
	}
	if changed {
		w.log.Infof("Autostart entry %q restored", w.opts.AutostartName)
	}
	w.registered = true
	w.registeredAt = now
	return nil
}

// Run checks every Interval, or after ErrorBackoff when a check failed,
// until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	w.log.Infof("Watching %s every %s", w.opts.MonitorImage, w.opts.Interval)
	for {
		wait := w.opts.Interval
		if _, err := w.safeCheck(ctx); err != nil && ctx.Err() == nil {
			w.log.Errorf("Watchdog check failed: %v; retrying in %s", err, w.opts.ErrorBackoff)
			wait = w.opts.ErrorBackoff
		}
		if err := w.clock.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

func (w *Watchdog) safeCheck(ctx context.Context) (st Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Check(ctx)
}
