// Command fes-console is an interactive console for driving a
// stimulation board.
//
// It loads a stimulator configuration, opens the serial links, and
// offers an interactive prompt for the full enable, schedule, write,
// update, disable cycle. Protocol traffic can be captured to a file
// for later analysis with fes-log.
//
// Usage:
//
//	fes-console -config <file.yaml> [flags]
//
// Flags:
//
//	-config string     Stimulator configuration file (required)
//	-capture string    Write protocol traffic to a capture file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-trace             Echo protocol traffic to the operational log
//
// Examples:
//
//	# Drive the board described in left-leg.yaml
//	fes-console -config left-leg.yaml
//
//	# Same, recording all traffic for fes-log
//	fes-console -config left-leg.yaml -capture session.fcap
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fes-protocol/fes-go/cmd/fes-console/interactive"
	"github.com/fes-protocol/fes-go/pkg/log"
	"github.com/fes-protocol/fes-go/pkg/stim"
)

func main() {
	configPath := flag.String("config", "", "Stimulator configuration file (required)")
	capturePath := flag.String("capture", "", "Write protocol traffic to a capture file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	trace := flag.Bool("trace", false, "Echo protocol traffic to the operational log")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fc, err := stim.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var taps []log.Logger
	if *capturePath != "" {
		fl, err := log.NewFileLogger(*capturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer fl.Close()
		taps = append(taps, fl)
		logger.Info("capturing protocol traffic", "path", *capturePath)
	}
	if *trace {
		taps = append(taps, log.NewSlogAdapter(logger))
	}

	cfg := fc.StimulatorConfig()
	cfg.Slog = logger
	if len(taps) > 0 {
		cfg.Logger = log.NewMultiLogger(taps...)
	}

	s, err := stim.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// All shutdown paths funnel into Disable: the console quit command,
	// SIGINT, and SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("signal received, disabling stimulator")
		s.Disable()
		os.Exit(0)
	}()

	console, err := interactive.New(s, fc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	console.Run()

	s.Disable()
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
