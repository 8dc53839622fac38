package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"

	"github.com/lotekdan/extguard/db"
	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/logging"
	"github.com/lotekdan/extguard/internal/process"
	"github.com/lotekdan/extguard/internal/status"
)

type options struct {
	browser    string
	jsonOutput bool
	debug      bool
	configPath string
	history    int
}

type output struct {
	Browsers   []status.Entry  `json:"browsers"`
	Violations int             `json:"violations"`
	History    []db.Event      `json:"history,omitempty"`
	Latest     []db.VerdictRow `json:"last_verdicts,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.browser, "browser", "", "Browser to check (Chrome, Edge, Brave, Comet)")
	flag.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug output")
	flag.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flag.IntVar(&opts.history, "history", 0, "Show the N most recent recorded events")
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

	log := logging.Discard()
	if opts.debug {
		log = logging.Stderr("status")
	}
	defs := cfg.Definitions(runtime.GOOS)
	scanner := browsers.NewScanner(cfg.ExtensionID, log)
	scanner.LegacyMarkers = cfg.LegacyMarkers
	inv := process.NewInventory(process.NewSystemController(), nil, log)

	ctx := context.Background()
	out := output{Browsers: status.Collect(ctx, defs, scanner, inv, opts.browser)}
	if opts.browser != "" && len(out.Browsers) == 0 {
		return fmt.Errorf("unknown browser %q (configured: %s)", opts.browser, status.Names(defs))
	}
	out.Violations = status.Violations(out.Browsers)

	if opts.history > 0 {
		if out.History, out.Latest, err = loadHistory(ctx, cfg.HistoryPath, opts.history); err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshalling JSON: %w", err)
		}
		fmt.Println(string(jsonData))
		return nil
	}

	printStatus(cfg.ExtensionID, out)
	return nil
}

// loadHistory reads the n most recent events and the last recorded verdict
// of every browser from the history database at path.
func loadHistory(ctx context.Context, path string, n int) ([]db.Event, []db.VerdictRow, error) {
	history, err := db.NewDB(path)
	if err != nil {
		return nil, nil, err
	}
	defer history.Close()
	events, err := history.RecentEvents(ctx, n)
	if err != nil {
		return nil, nil, err
	}
	latest, err := history.LatestVerdicts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return events, latest, nil
}

func printStatus(extensionID string, out output) {
	figure.NewColorFigure("EXTGUARD", "doom", "cyan", true).Print()
	cyan := color.New(color.FgCyan)
	_, _ = cyan.Println("════════════════════════════════════════════════")
	fmt.Printf("Extension: %s\n\n", extensionID)

	if len(out.Browsers) == 0 {
		fmt.Println("No browsers configured for this platform.")
		return
	}

	for i, e := range out.Browsers {
		fmt.Printf("%d. %s\n", i+1, e.Browser)
		fmt.Printf("   Verdict: %s\n", verdictString(e.Verdict))
		fmt.Printf("   Running: %d process(es) of %s\n", e.Running, e.Image)
		fmt.Printf("   Profiles: %d checked, %d with extension, %d unreadable\n", e.Checked, e.Present, e.ReadErrors)
		if e.Reason != "" {
			fmt.Printf("   Reason: %s\n", e.Reason)
		}
		for _, o := range e.Outcomes {
			switch {
			case o.Error != "":
				fmt.Printf("   - %s: %s\n", o.Profile, color.YellowString(o.Error))
			case !o.Present:
				fmt.Printf("   - %s: not installed\n", o.Profile)
			case o.Record != nil && o.Record.Disabled():
				fmt.Printf("   - %s: %s\n", o.Profile, color.RedString(o.Record.Reason()))
			default:
				fmt.Printf("   - %s: enabled\n", o.Profile)
			}
		}
		fmt.Println("------------------")
	}
	if out.Violations > 0 {
		color.Red("%d browser(s) with the extension disabled", out.Violations)
	} else {
		color.Green("No violations")
	}

	if len(out.History) > 0 {
		fmt.Println()
		_, _ = cyan.Println("Recent events:")
		for _, ev := range out.History {
			fmt.Printf("  %s  %-11s  %s  %s\n", ev.At.Format("2006-01-02 15:04:05"), ev.Kind, ev.Target, ev.Detail)
		}
	}
	if len(out.Latest) > 0 {
		fmt.Println()
		_, _ = cyan.Println("Last recorded verdicts:")
		for _, v := range out.Latest {
			fmt.Printf("  %-10s %-13s %s  %s\n", v.Browser, v.Verdict, v.At.Format("2006-01-02 15:04:05"), v.Reason)
		}
	}
}

func verdictString(v browsers.Verdict) string {
	switch v {
	case browsers.VerdictEnabled:
		return color.GreenString(v.String())
	case browsers.VerdictDisabled:
		return color.RedString(v.String())
	default:
		return color.YellowString(v.String())
	}
}
