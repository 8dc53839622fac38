package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lotekdan/extguard/internal/agent"
	"github.com/lotekdan/extguard/internal/autostart"
	"github.com/lotekdan/extguard/internal/config"
	"github.com/lotekdan/extguard/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rt, err := agent.Open(cfg, "extguard-watchdog", os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	command, err := agent.MonitorCommand(cfg)
	if err != nil {
		return err
	}
	exe, args, err := watchdog.SplitCommand(command)
	if err != nil {
		return fmt.Errorf("monitor command %q: %w", command, err)
	}

	wd, err := watchdog.New(watchdog.Options{
		Interval:             cfg.Watchdog.Interval,
		RegistrationInterval: cfg.Watchdog.RegistrationInterval,
		ErrorBackoff:         cfg.Watchdog.ErrorBackoff,
		MonitorImage:         cfg.Watchdog.MonitorImage,
		MonitorExe:           exe,
		MonitorArgs:          args,
		AutostartName:        cfg.Watchdog.AutostartName,
		AutostartCommand:     command,
		Inventory:            rt.Inventory,
		Launcher:             watchdog.ExecLauncher{},
		Registrar:            autostart.NewSystem(),
		Clock:                rt.Clock,
		Log:                  rt.Log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return wd.Run(ctx)
}
