package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/firewall"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/process"
)

// Result is the outcome of one sweep: every discovered executable and, for
// each unauthorized one, the number of processes ended.
type Result struct {
	Discovered []string       `json:"discovered"`
	Killed     map[string]int `json:"killed"`
}

// Total is the number of processes ended.
func (r Result) Total() int {
	n := 0
	for _, k := range r.Killed {
		n += k
	}
	return n
}

// Inventory is the process capability the sweep needs.
type Inventory interface {
	ListRunning(ctx context.Context, images []string) ([]process.Running, error)
	Terminate(ctx context.Context, image string) int
}

// Recorder persists sweeps that ended at least one process.
type Recorder interface {
	RecordSweep(ctx context.Context, r Result) error
}

// Sweeper terminates and firewalls every browser that is not allowed.
type Sweeper struct {
	Discoverer         *Discoverer
	Matcher            *Matcher
	Inventory          Inventory
	Firewall           firewall.Controller
	BlockFirewall      bool
	RulePrefix         string
	RediscoverInterval time.Duration
	Clock              clock.Clock
	Recorder           Recorder
	Log                *logging.Logger

	mu           sync.Mutex
	discovered   []string
	discoveredAt time.Time
	haveCache    bool
	blocked      map[string]bool
	fwDisabled   bool
}

// Sweep runs one pass. Discovery results are cached for RediscoverInterval.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.log()

	result := Result{Discovered: s.discover(ctx), Killed: make(map[string]int)}

	// image -> executables to report against it
	targets := make(map[string][]string)
	var images []string
	addImage := func(image string) {
		if _, ok := targets[image]; !ok {
			targets[image] = nil
			images = append(images, image)
		}
	}
	for _, exe := range result.Discovered {
		image := filepath.Base(exe)
		if s.Matcher.Allowed(image) || s.Matcher.Excluded(image) {
			log.Debugf("Skipping allowed browser image='%s'", image)
			continue
		}
		addImage(image)
		targets[image] = append(targets[image], exe)
		result.Killed[exe] = 0
		s.block(ctx, exe)
	}
	for _, image := range s.Matcher.KnownImages() {
		if !s.Matcher.Allowed(image) && !s.Matcher.Excluded(image) {
			addImage(image)
		}
	}

	running, err := s.Inventory.ListRunning(ctx, images)
	if err != nil {
		return result, err
	}

	done := make(map[string]bool)
	for _, p := range running {
		if done[p.Image] {
			continue
		}
		done[p.Image] = true

		killed := s.Inventory.Terminate(ctx, p.Image)
		exes := targets[p.Image]
		if len(exes) == 0 {
			// running but never discovered on disk
			key := p.Exe
			if key == "" {
				key = p.Name
			}
			result.Killed[key] += killed
			if p.Exe != "" {
				s.block(ctx, p.Exe)
			}
			continue
		}
		result.Killed[exes[0]] += killed
	}

	if total := result.Total(); total > 0 {
		log.Warnf("Unauthorized browser sweep ended %d process(es)", total)
		if s.Recorder != nil {
			if err := s.Recorder.RecordSweep(ctx, result); err != nil {
				log.Errorf("Failed to record sweep: %v", err)
			}
		}
	}
	return result, nil
}

func (s *Sweeper) discover(ctx context.Context) []string {
	now := s.now()
	if s.haveCache && s.RediscoverInterval > 0 && now.Sub(s.discoveredAt) < s.RediscoverInterval {
		return append([]string(nil), s.discovered...)
	}
	s.discovered = s.Discoverer.Discover(ctx)
	s.discoveredAt = now
	s.haveCache = true
	return append([]string(nil), s.discovered...)
}

// block installs the firewall rule for exe once per process lifetime.
func (s *Sweeper) block(ctx context.Context, exe string) {
	if !s.BlockFirewall || s.Firewall == nil || s.fwDisabled {
		return
	}
	if s.blocked == nil {
		s.blocked = make(map[string]bool)
	}
	if s.blocked[exe] {
		return
	}
	if info, err := os.Stat(exe); err != nil || info.IsDir() {
		return
	}
	prefix := s.RulePrefix
	if prefix == "" {
		prefix = "ExtensionGuardian"
	}
	err := s.Firewall.Block(ctx, firewall.RuleName(prefix, exe), exe)
	switch {
	case errors.Is(err, firewall.ErrUnsupported):
		s.log().Infof("Firewall blocking unavailable: %v", err)
		s.fwDisabled = true
	case err != nil:
		s.log().Errorf("Failed to add firewall rule for %s: %v", exe, err)
	default:
		s.blocked[exe] = true
		s.log().Infof("Firewall block ensured for %s", exe)
	}
}

func (s *Sweeper) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Sweeper) log() *logging.Logger {
	if s.Log == nil {
		return logging.Discard()
	}
	return s.Log
}
