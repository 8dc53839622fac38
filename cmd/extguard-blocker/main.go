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
	"time"

	"github.com/lotekdan/extguard/internal/agent"
	"github.com/lotekdan/extguard/internal/clock"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/discovery"
	"github.com/lotekdan/extguard/internal/firewall"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/monitor"
)

type options struct {
	configPath string
	watch      bool
	interval   time.Duration
	noFirewall bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flag.BoolVar(&opts.watch, "watch", false, "Keep sweeping until interrupted")
	flag.DurationVar(&opts.interval, "interval", 10*time.Second, "Sweep interval with -watch")
	flag.BoolVar(&opts.noFirewall, "no-firewall", false, "Do not add firewall rules")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

const minInterval = time.Second

type output struct {
	Discovered []string       `json:"discovered"`
	Killed     map[string]int `json:"killed"`
	Total      int            `json:"total"`
}

func printResult(w io.Writer, r discovery.Result) error {
	jsonData, err := json.MarshalIndent(output{Discovered: r.Discovered, Killed: r.Killed, Total: r.Total()}, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	rt, err := agent.Open(cfg, "extguard-blocker", os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	var fw firewall.Controller
	if !opts.noFirewall {
		fw = firewall.NewSystem()
	}
	sweeper, err := rt.Sweeper(fw)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sweepLoop(ctx, sweeper, rt.Clock, opts, os.Stdout, rt.Log)
}

// sweepLoop sweeps once, or every interval with -watch, printing each result.
func sweepLoop(ctx context.Context, s monitor.Sweeper, clk clock.Clock, opts options, w io.Writer, log *logging.Logger) error {
	interval := opts.interval
	if interval < minInterval {
		interval = minInterval
	}
	for {
		result, err := s.Sweep(ctx)
		if err != nil {
			log.Errorf("Sweep failed: %v", err)
			if !opts.watch {
				return err
			}
		}
		if perr := printResult(w, result); perr != nil {
			log.Errorf("Failed to print sweep result: %v", perr)
			if !opts.watch {
				return perr
			}
		}
		if !opts.watch {
			return nil
		}
		if err := clk.Sleep(ctx, interval); err != nil {
			return nil
		}
	}
}
