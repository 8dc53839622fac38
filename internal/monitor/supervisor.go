// Package monitor runs the per-second extension check and the
// unauthorized-browser sweep.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/consensus"
	"github.com/lotekdan/extguard/internal/discovery"
	"github.com/lotekdan/extguard/internal/enforce"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/process"
)

// Inventory lists running processes by image name.
type Inventory interface {
	ListRunning(ctx context.Context, images []string) ([]process.Running, error)
}

// Sweeper runs one unauthorized-browser sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (discovery.Result, error)
}

// History persists verdict changes.
type History interface {
	RecordVerdict(ctx context.Context, scan browsers.Scan, at time.Time) error
}

// Options configures a Supervisor. Definitions, Scanner, Inventory,
// Consensus and Orchestrator are required.
type Options struct {
	Enabled       bool
	CheckInterval time.Duration
	SweepInterval time.Duration
	ErrorBackoff  time.Duration

	Definitions  []browsers.Definition
	Scanner      *browsers.Scanner
	Inventory    Inventory
	Consensus    *consensus.Tracker
	Orchestrator *enforce.Orchestrator
	Sweeper      Sweeper
	History      History
	Clock        clock.Clock
	Log          *logging.Logger
}

// Report is what one tick observed for one running browser.
type Report struct {
	Browser     string                `json:"browser"`
	Image       string                `json:"image"`
	Processes   int                   `json:"processes"`
	Scan        browsers.Scan         `json:"scan"`
	Observation consensus.Observation `json:"-"`
	Cycle       *enforce.Cycle        `json:"cycle,omitempty"`
}

// Supervisor holds every piece of monitoring state: counters, cycles and
// the last verdict per browser. Ticks are serialized.
type Supervisor struct {
	opts   Options
	log    *logging.Logger
	clock  clock.Clock
	tickMu sync.Mutex
	last   map[string]browsers.Verdict
	nudge  chan struct{}
}

// New validates opts and returns a supervisor.
func New(opts Options) (*Supervisor, error) {
	switch {
	case opts.Scanner == nil:
		return nil, errors.New("monitor: scanner is required")
	case opts.Inventory == nil:
		return nil, errors.New("monitor: inventory is required")
	case opts.Consensus == nil:
		return nil, errors.New("monitor: consensus tracker is required")
	case opts.Orchestrator == nil:
		return nil, errors.New("monitor: orchestrator is required")
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Supervisor{
		opts:  opts,
		log:   opts.Log,
		clock: opts.Clock,
		last:  make(map[string]browsers.Verdict),
		nudge: make(chan struct{}, 1),
	}, nil
}

// Nudge requests an early tick.
func (s *Supervisor) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Tick runs one monitoring pass: one process-table scan, then a profile scan
// of every running monitored browser, feeding consensus and enforcement.
func (s *Supervisor) Tick(ctx context.Context) ([]Report, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if !s.opts.Enabled {
		return nil, nil
	}

	running, err := s.opts.Inventory.ListRunning(ctx, config.Images(s.opts.Definitions))
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	counts := make(map[string]int)
	for _, p := range running {
		counts[p.Image]++
	}

	var reports []Report
	for _, def := range s.opts.Definitions {
		if counts[def.Image] == 0 {
			continue
		}
		reports = append(reports, s.check(ctx, def, counts[def.Image]))
	}
	return reports, nil
}

func (s *Supervisor) check(ctx context.Context, def browsers.Definition, processes int) Report {
	name := def.Name
	// a finished cycle re-arms the consensus for this browser
	if s.opts.Orchestrator.State(name) == enforce.StateIdle && s.opts.Consensus.Latched(name) {
		s.opts.Consensus.Release(name)
	}

	scan := s.opts.Scanner.Scan(def)
	s.recordChange(ctx, scan)

	obs := s.opts.Consensus.Observe(name, scan.Verdict)
	report := Report{Browser: name, Image: def.Image, Processes: processes, Scan: scan, Observation: obs}

	switch scan.Verdict {
	case browsers.VerdictDisabled:
		s.log.Warnf("%s verdict Disabled (%d/%d): %s", name, obs.Count, s.opts.Consensus.Threshold(), scan.Reason)
	case browsers.VerdictIndeterminate:
		s.log.Debugf("%s verdict Indeterminate: %d profile(s), %d read error(s)", name, scan.Checked, scan.ReadErrors)
	}

	if obs.Confirmed {
		s.log.Warnf("Confirmed violation for %s", name)
		cycle, err := s.opts.Orchestrator.Trigger(ctx, name, def.Image, scan.Reason)
		if err == nil {
			report.Cycle = &cycle
		}
	}
	return report
}

// recordChange logs and persists a verdict that differs from the previous
// one. Indeterminate never overwrites the prior verdict.
func (s *Supervisor) recordChange(ctx context.Context, scan browsers.Scan) {
	if scan.Verdict == browsers.VerdictIndeterminate {
		return
	}
	prev, seen := s.last[scan.Browser]
	if seen && prev == scan.Verdict {
		return
	}
	s.last[scan.Browser] = scan.Verdict
	s.log.Infof("%s extension status: %s (%d profile(s), %d with extension)", scan.Browser, scan.Verdict, scan.Checked, scan.Present)
	if s.opts.History != nil {
		if err := s.opts.History.RecordVerdict(ctx, scan, s.clock.Now()); err != nil {
			s.log.Errorf("Failed to record verdict: %v", err)
		}
	}
}

// LastVerdict returns the last determinate verdict seen for browser.
func (s *Supervisor) LastVerdict(browser string) (browsers.Verdict, bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	v, ok := s.last[browser]
	return v, ok
}

// Run drives the tick loop and, when a sweeper is configured, the sweep loop
// until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Infof("Monitoring %d browser(s) every %s", len(s.opts.Definitions), s.opts.CheckInterval)

	var wg sync.WaitGroup
	if s.opts.Sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, "sweep", s.opts.SweepInterval, nil, func(ctx context.Context) error {
				_, err := s.opts.Sweeper.Sweep(ctx)
				return err
			})
		}()
	}

	s.loop(ctx, "monitor", s.opts.CheckInterval, s.nudge, func(ctx context.Context) error {
		_, err := s.Tick(ctx)
		return err
	})
	wg.Wait()
	return nil
}

func (s *Supervisor) loop(ctx context.Context, name string, interval time.Duration, nudge <-chan struct{}, fn func(context.Context) error) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.safely(ctx, fn); err != nil && ctx.Err() == nil {
			s.log.Errorf("%s loop error: %v; backing off %s", name, err, s.opts.ErrorBackoff)
			if s.clock.Sleep(ctx, s.opts.ErrorBackoff) != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		case <-nudge:
		}
	}
}

func (s *Supervisor) safely(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
