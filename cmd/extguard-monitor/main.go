package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lotekdan/extguard/internal/agent"
	"github.com/lotekdan/extguard/internal/autostart"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/enforce"
	"github.com/lotekdan/extguard/internal/firewall"
	"github.com/lotekdan/extguard/internal/monitor"
)

type options struct {
	configPath string
	background bool
	once       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flag.BoolVar(&opts.background, "background", false, "Run without console output (logon startup)")
	flag.BoolVar(&opts.once, "once", false, "Run a single check, print the result and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	var mirror io.Writer = os.Stderr
	if opts.background {
		mirror = nil
	}
	rt, err := agent.Open(cfg, "extguard-monitor", mirror)
	if err != nil {
		return err
	}
	defer rt.Close()

	var notifier enforce.Notifier = enforce.LogNotifier{Log: rt.Log.With("notify")}
	if !opts.background {
		notifier = enforce.Multi{enforce.NewConsoleNotifier(os.Stdout), notifier}
	}

	var sweeper monitor.Sweeper
	if cfg.Sweep.Enabled {
		s, err := rt.Sweeper(firewall.NewSystem())
		if err != nil {
			return err
		}
		sweeper = s
	}

	sup, orch, err := rt.Supervisor(notifier, sweeper)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.once {
		reports, err := sup.Tick(ctx)
		if err != nil {
			return err
		}
		orch.Wait()
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshalling JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if command, err := agent.MonitorCommand(cfg); err != nil {
		rt.Log.Warnf("Autostart not registered: %v", err)
	} else if changed, err := autostart.Ensure(autostart.NewSystem(), cfg.Watchdog.AutostartName, command); err != nil {
		rt.Log.Errorf("%v", err)
	} else if changed {
		rt.Log.Infof("Autostart entry %q registered", cfg.Watchdog.AutostartName)
	}

	if cfg.WatchPreferences {
		watcher, err := monitor.NewPreferenceWatcher(rt.Definitions, sup.Nudge, rt.Log.With("watch"))
		if err != nil {
			rt.Log.Warnf("Preference watcher unavailable: %v", err)
		} else {
			defer watcher.Close()
			rt.Log.Infof("Watching %d profile director(ies) for preference changes", watcher.Watched())
			go watcher.Run(ctx)
		}
	}

	err = sup.Run(ctx)
	rt.Log.Infof("Monitor stopped")
	return err
}
