// Command fes-log is a tool for viewing and analyzing protocol capture
// files.
//
// Capture files are written by fes-console with the -capture flag, or
// by any program that taps its stimulator with a log.FileLogger.
//
// Usage:
//
//	fes-log <command> [flags] <file.fcap>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	fes-log view session.fcap
//
//	# View only outbound frames on board 1
//	fes-log view -direction out -board 1 session.fcap
//
//	# Export to JSONL
//	fes-log export session.fcap > session.jsonl
//
//	# Show statistics
//	fes-log stats session.fcap
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fes-protocol/fes-go/pkg/log"
)

const usage = `fes-log - Stimulation Protocol Capture Analyzer

Usage:
  fes-log <command> [flags] <file.fcap>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL
  stats    Show statistics about the capture file

Use "fes-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs and returns a
// builder that resolves them into a log.Filter after parsing.
func filterFlags(fs *flag.FlagSet) func() (log.Filter, error) {
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (frame, state, error)")
	board := fs.Int("board", -1, "Filter by board index")
	connID := fs.String("conn-id", "", "Filter by connection ID")

	return func() (log.Filter, error) {
		var filter log.Filter
		filter.ConnectionID = *connID
		if *direction != "" {
			d, err := parseDirection(*direction)
			if err != nil {
				return filter, err
			}
			filter.Direction = &d
		}
		if *category != "" {
			c, err := parseCategory(*category)
			if err != nil {
				return filter, err
			}
			filter.Category = &c
		}
		if *board >= 0 {
			if *board > 255 {
				return filter, fmt.Errorf("board index %d out of range", *board)
			}
			b := uint8(*board)
			filter.Board = &b
		}
		return filter, nil
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch s {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want in or out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch s {
	case "frame":
		return log.CategoryFrame, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (want frame, state, or error)", s)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
