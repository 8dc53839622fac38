// Package enforce runs the per-browser enforcement cycle
// Idle -> Armed -> Closing -> Cooldown -> Idle.
package enforce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/logging"
)

// MinCountdown is enforced regardless of configuration.
const MinCountdown = 15 * time.Second

// State of a browser's enforcement cycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateClosing
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateClosing:
		return "closing"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrEnforcementDisabled = errors.New("enforcement disabled")
	ErrCycleActive         = errors.New("enforcement cycle already active")
	ErrCooldown            = errors.New("browser is in cooldown")
)

// Terminator closes every process of one image and returns the count.
type Terminator interface {
	Terminate(ctx context.Context, image string) int
}

// Notifier surfaces cycle progress to the user.
type Notifier interface {
	Armed(browser string, countdown time.Duration)
	Countdown(browser string, remaining time.Duration)
	Closed(browser string, killed int)
}

// Snapshotter captures log excerpts. *logging.Sink implements it.
type Snapshotter interface {
	AnchorBefore(lines int) (int64, error)
	Tail() int64
	Snapshot(reason string, anchor int64) (string, error)
}

// Recorder persists finished cycles.
type Recorder interface {
	RecordCycle(ctx context.Context, c Cycle) error
}

// Config controls enforcement.
type Config struct {
	Enabled       bool
	Countdown     time.Duration
	Cooldown      time.Duration
	SnapshotLines int
}

// Deps are the collaborators of an Orchestrator. Only Terminator is required.
type Deps struct {
	Clock       clock.Clock
	Terminator  Terminator
	Notifier    Notifier
	Snapshotter Snapshotter
	Recorder    Recorder
	Log         *logging.Logger
}

// Cycle is one enforcement cycle for one browser.
type Cycle struct {
	ID        string    `json:"id"`
	Browser   string    `json:"browser"`
	Image     string    `json:"image"`
	Reason    string    `json:"reason,omitempty"`
	State     State     `json:"state"`
	ArmedAt   time.Time `json:"armed_at"`
	ClosedAt  time.Time `json:"closed_at,omitempty"`
	Killed    int       `json:"killed"`
	Snapshots []string  `json:"snapshots,omitempty"`
}

// Orchestrator owns the cycle state of every browser. Cycles of different
// browsers run independently; at most one cycle per browser is in flight.
type Orchestrator struct {
	mu     sync.Mutex
	cfg    Config
	deps   Deps
	cycles map[string]*Cycle
	wg     sync.WaitGroup
}

// New returns an orchestrator. The countdown is raised to MinCountdown.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Countdown < MinCountdown {
		cfg.Countdown = MinCountdown
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Orchestrator{cfg: cfg, deps: deps, cycles: make(map[string]*Cycle)}
}

// Trigger arms a cycle for browser after a confirmed violation. The cycle
// then runs to completion in its own goroutine; cancelling ctx does not stop
// a cycle once armed.
func (o *Orchestrator) Trigger(ctx context.Context, browser, image, reason string) (Cycle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.cfg.Enabled {
		o.deps.Log.Debugf("Violation for %s ignored: enforcement disabled", browser)
		return Cycle{}, ErrEnforcementDisabled
	}
	switch o.stateLocked(browser) {
	case StateIdle:
	case StateCooldown:
		c := o.cycles[browser]
		o.deps.Log.Infof("Violation for %s dropped: cooldown until %s", browser,
			c.ClosedAt.Add(o.cfg.Cooldown).Format(time.TimeOnly))
		return Cycle{}, ErrCooldown
	default:
		o.deps.Log.Infof("Violation for %s dropped: cycle %s already active", browser, o.cycles[browser].ID)
		return Cycle{}, ErrCycleActive
	}

	c := &Cycle{
		ID:      uuid.New().String(),
		Browser: browser,
		Image:   image,
		Reason:  reason,
		State:   StateArmed,
		ArmedAt: o.deps.Clock.Now(),
	}
	o.deps.Log.Warnf("Enforcement armed for %s (cycle %s): %s", browser, c.ID, reason)

	var tail int64 = -1
	if o.deps.Snapshotter != nil {
		tail = o.deps.Snapshotter.Tail()
		anchor, err := o.deps.Snapshotter.AnchorBefore(o.cfg.SnapshotLines)
		if err != nil {
			o.deps.Log.Warnf("Snapshot anchor failed: %v", err)
		}
		if path, err := o.deps.Snapshotter.Snapshot("armed-"+browser, anchor); err != nil {
			o.deps.Log.Errorf("Failed to write snapshot for %s: %v", browser, err)
		} else {
			c.Snapshots = append(c.Snapshots, path)
		}
	}
	o.cycles[browser] = c

	o.wg.Add(1)
	go o.run(context.WithoutCancel(ctx), c, tail)
	return *c, nil
}

func (o *Orchestrator) run(ctx context.Context, c *Cycle, tail int64) {
	defer o.wg.Done()

	o.deps.Notifier.Armed(c.Browser, o.cfg.Countdown)
	for remaining := o.cfg.Countdown; remaining > 0; {
		o.deps.Notifier.Countdown(c.Browser, remaining)
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if err := o.deps.Clock.Sleep(ctx, step); err != nil {
			break
		}
		remaining -= step
	}

	o.setState(c, StateClosing)
	o.deps.Log.Warnf("Closing %s (%s)", c.Browser, c.Image)
	killed := 0
	if o.deps.Terminator != nil {
		killed = o.deps.Terminator.Terminate(ctx, c.Image)
	}
	o.deps.Notifier.Closed(c.Browser, killed)

	o.mu.Lock()
	c.State = StateCooldown
	c.ClosedAt = o.deps.Clock.Now()
	c.Killed = killed
	o.mu.Unlock()
	o.deps.Log.Infof("Closed %d process(es) for %s; cooldown %s", killed, c.Browser, o.cfg.Cooldown)

	if o.deps.Snapshotter != nil && tail >= 0 {
		if path, err := o.deps.Snapshotter.Snapshot("closed-"+c.Browser, tail); err != nil {
			o.deps.Log.Errorf("Failed to write snapshot for %s: %v", c.Browser, err)
		} else {
			o.mu.Lock()
			c.Snapshots = append(c.Snapshots, path)
			o.mu.Unlock()
		}
	}

	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.RecordCycle(ctx, o.copyOf(c)); err != nil {
			o.deps.Log.Errorf("Failed to record cycle %s: %v", c.ID, err)
		}
	}
}

func (o *Orchestrator) setState(c *Cycle, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c.State = s
}

func (o *Orchestrator) copyOf(c *Cycle) Cycle {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := *c
	cp.Snapshots = append([]string(nil), c.Snapshots...)
	return cp
}

// stateLocked returns the browser's state, moving an expired cooldown to Idle.
func (o *Orchestrator) stateLocked(browser string) State {
	c, ok := o.cycles[browser]
	if !ok {
		return StateIdle
	}
	if c.State == StateCooldown && o.deps.Clock.Now().Sub(c.ClosedAt) >= o.cfg.Cooldown {
		delete(o.cycles, browser)
		return StateIdle
	}
	return c.State
}

// State returns the current state for browser.
func (o *Orchestrator) State(browser string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked(browser)
}

// Cycles returns the non-idle cycles.
func (o *Orchestrator) Cycles() []Cycle {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Cycle
	for browser, c := range o.cycles {
		if o.stateLocked(browser) == StateIdle {
			continue
		}
		cp := *c
		cp.Snapshots = append([]string(nil), c.Snapshots...)
		out = append(out, cp)
	}
	return out
}

// Wait blocks until every running cycle has finished closing.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
