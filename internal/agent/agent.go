// Package agent wires configuration, logging, history and the process
// inventory into the components each extguard binary runs.
package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotekdan/extguard/db"
	"github.com/lotekdan/extguard/internal/autostart"
	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/consensus"
	"github.com/lotekdan/extguard/internal/discovery"
	"github.com/lotekdan/extguard/internal/enforce"
	"github.com/lotekdan/extguard/internal/firewall"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/monitor"
	"github.com/lotekdan/extguard/internal/process"
)

// Runtime holds what every binary shares. History is nil when the history
// database could not be opened.
type Runtime struct {
	Config      *config.Config
	Sink        *logging.Sink
	Log         *logging.Logger
	History     *db.DB
	Clock       clock.Clock
	Inventory   *process.Inventory
	Definitions []browsers.Definition
}

// Open starts logging for the named binary under cfg.LogDir and opens the history
// database. When mirror is non-nil every log line is copied to it.
func Open(cfg *config.Config, name string, mirror io.Writer) (*Runtime, error) {
	sink, err := logging.Open(cfg.LogDir, name)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		sink.SetMirror(mirror)
	}
	log := sink.Logger(name)
	log.Infof("Session %s started, logging to %s", sink.SessionID(), sink.Path())

	rt := &Runtime{
		Config:      cfg,
		Sink:        sink,
		Log:         log,
		Clock:       clock.New(),
		Definitions: cfg.Definitions(runtime.GOOS),
	}
	rt.Inventory = process.NewInventory(process.NewSystemController(), rt.Clock, log.With("process"))
	rt.Inventory.Grace = cfg.TerminateGrace

	if cfg.HistoryPath != "" {
		history, err := db.NewDB(cfg.HistoryPath)
		if err != nil {
			log.Warnf("History disabled: %v", err)
		} else {
			rt.History = history
		}
	}
	return rt, nil
}

// Close releases the history database and the log file.
func (rt *Runtime) Close() {
	if rt.History != nil {
		rt.History.Close()
	}
	rt.Sink.Close()
}

// Sweeper builds the unauthorized-browser sweep. fw may be nil to disable
// firewall blocking.
func (rt *Runtime) Sweeper(fw firewall.Controller) (*discovery.Sweeper, error) {
	sc := rt.Config.Sweep
	matcher, err := discovery.NewMatcher(sc.AllowedImages, sc.KnownImages, sc.Keywords, sc.ExcludeImages)
	if err != nil {
		return nil, fmt.Errorf("sweep patterns: %w", err)
	}

	roots := make([]string, 0, len(sc.InstallRoots))
	for _, root := range sc.InstallRoots {
		if r := config.ExpandPath(root); r != "" {
			roots = append(roots, r)
		}
	}
	log := rt.Log.With("sweep")

	s := &discovery.Sweeper{
		Discoverer: &discovery.Discoverer{
			InstallRoots: roots,
			KnownPaths:   sc.KnownPaths,
			MaxDepth:     sc.MaxDepth,
			Matcher:      matcher,
			Registered:   discovery.RegisteredBrowsers,
			Log:          log,
		},
		Matcher:            matcher,
		Inventory:          rt.Inventory,
		BlockFirewall:      sc.BlockFirewall && fw != nil,
		Firewall:           fw,
		RulePrefix:         sc.FirewallRulePrefix,
		RediscoverInterval: sc.RediscoverInterval,
		Clock:              rt.Clock,
		Log:                log,
	}
	if rt.History != nil {
		s.Recorder = rt.History
	}
	return s, nil
}

// Supervisor builds the monitor with its own consensus tracker and
// orchestrator. sweeper may be nil.
func (rt *Runtime) Supervisor(notifier enforce.Notifier, sweeper monitor.Sweeper) (*monitor.Supervisor, *enforce.Orchestrator, error) {
	cfg := rt.Config
	deps := enforce.Deps{
		Clock:       rt.Clock,
		Terminator:  rt.Inventory,
		Notifier:    notifier,
		Snapshotter: rt.Sink,
		Log:         rt.Log.With("enforce"),
	}
	if rt.History != nil {
		deps.Recorder = rt.History
	}
	orch := enforce.New(enforce.Config{
		Enabled:       cfg.EnforcementEnabled,
		Countdown:     cfg.Countdown,
		Cooldown:      cfg.Cooldown,
		SnapshotLines: cfg.SnapshotLines,
	}, deps)

	scanner := browsers.NewScanner(cfg.ExtensionID, rt.Log.With("scan"))
	scanner.LegacyMarkers = cfg.LegacyMarkers

	opts := monitor.Options{
		Enabled:       cfg.MonitoringEnabled,
		CheckInterval: cfg.CheckInterval,
		SweepInterval: cfg.Sweep.Interval,
		ErrorBackoff:  cfg.ErrorBackoff,
		Definitions:   rt.Definitions,
		Scanner:       scanner,
		Inventory:     rt.Inventory,
		Consensus:     consensus.New(cfg.ConfirmationThreshold),
		Orchestrator:  orch,
		Sweeper:       sweeper,
		Clock:         rt.Clock,
		Log:           rt.Log,
	}
	if rt.History != nil {
		opts.History = rt.History
	}
	sup, err := monitor.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return sup, orch, nil
}

// MonitorCommand is the command line the monitor is launched and autostarted
// with: watchdog.monitor_command when set, otherwise the monitor binary
// beside the running executable. The monitor and the watchdog both register
// this command so they never rewrite each other's autostart entry.
func MonitorCommand(cfg *config.Config) (string, error) {
	if cfg.Watchdog.MonitorCommand != "" {
		return cfg.Watchdog.MonitorCommand, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	return monitorCommandFor(self, cfg.Watchdog.MonitorImage), nil
}

func monitorCommandFor(self, image string) string {
	if strings.EqualFold(filepath.Base(self), image) {
		return autostart.Command(self)
	}
	return autostart.Command(filepath.Join(filepath.Dir(self), image))
}
