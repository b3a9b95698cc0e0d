package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fes-protocol/fes-go/pkg/log"
)

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `fes-log view - View capture file in human-readable format

Usage:
  fes-log view [flags] <file.fcap>

Flags:
`)
		fs.PrintDefaults()
	}
	buildFilter := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requireFile(fs)
	filter, err := buildFilter()
	if err != nil {
		fatalf("%v", err)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		fatalf("%v", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		fmt.Println(formatEvent(event))
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `fes-log export - Export capture file to JSONL on stdout

Usage:
  fes-log export [flags] <file.fcap>

Flags:
`)
		fs.PrintDefaults()
	}
	buildFilter := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requireFile(fs)
	filter, err := buildFilter()
	if err != nil {
		fatalf("%v", err)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		fatalf("%v", err)
	}
	defer reader.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		if err := enc.Encode(event); err != nil {
			fatalf("encode: %v", err)
		}
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `fes-log stats - Show statistics about the capture file

Usage:
  fes-log stats <file.fcap>
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requireFile(fs)

	reader, err := log.NewReader(path)
	if err != nil {
		fatalf("%v", err)
	}
	defer reader.Close()

	stats := captureStats{
		perBoard:  map[uint8]int{},
		perOpcode: map[string]int{},
	}
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		stats.add(event)
	}
	stats.print(os.Stdout)
}

// captureStats accumulates per-file counters for the stats command.
type captureStats struct {
	total     int
	frames    int
	inbound   int
	outbound  int
	invalid   int
	states    int
	errors    int
	perBoard  map[uint8]int
	perOpcode map[string]int
}

func (s *captureStats) add(event log.Event) {
	s.total++
	s.perBoard[event.Board]++
	switch event.Category {
	case log.CategoryFrame:
		s.frames++
		if event.Direction == log.DirectionIn {
			s.inbound++
		} else {
			s.outbound++
		}
		if event.Frame != nil {
			s.perOpcode[event.Frame.Opcode]++
			if !event.Frame.Valid {
				s.invalid++
			}
		}
	case log.CategoryState:
		s.states++
	case log.CategoryError:
		s.errors++
	}
}

func (s *captureStats) print(w io.Writer) {
	fmt.Fprintf(w, "Events:        %d\n", s.total)
	fmt.Fprintf(w, "Frames:        %d (%d in, %d out, %d invalid)\n", s.frames, s.inbound, s.outbound, s.invalid)
	fmt.Fprintf(w, "State changes: %d\n", s.states)
	fmt.Fprintf(w, "Errors:        %d\n", s.errors)
	for board, n := range s.perBoard {
		fmt.Fprintf(w, "Board %d:       %d events\n", board, n)
	}
	if len(s.perOpcode) > 0 {
		fmt.Fprintln(w, "Per opcode:")
		for op, n := range s.perOpcode {
			fmt.Fprintf(w, "  %-24s %d\n", op, n)
		}
	}
}

// formatEvent renders one event as a single display line.
func formatEvent(event log.Event) string {
	ts := event.Timestamp.Format("15:04:05.000")
	prefix := fmt.Sprintf("%s #%-5d board %d", ts, event.Seq, event.Board)
	switch event.Category {
	case log.CategoryFrame:
		if event.Frame == nil {
			return prefix + " FRAME <empty>"
		}
		valid := ""
		if !event.Frame.Valid {
			valid = " INVALID"
		}
		return fmt.Sprintf("%s %-3s %-22s%s %s",
			prefix, event.Direction, event.Frame.Opcode, valid, hexBytes(event.Frame.Data))
	case log.CategoryState:
		if event.StateChange == nil {
			return prefix + " STATE <empty>"
		}
		return fmt.Sprintf("%s STATE %s: %s -> %s (%s)",
			prefix, event.StateChange.Entity, event.StateChange.OldState,
			event.StateChange.NewState, event.StateChange.Reason)
	case log.CategoryError:
		if event.Error == nil {
			return prefix + " ERROR <empty>"
		}
		line := fmt.Sprintf("%s ERROR %s", prefix, event.Error.Message)
		if event.Error.Context != "" {
			line += " (" + event.Error.Context + ")"
		}
		if len(event.Error.Frame) > 0 {
			line += " " + hexBytes(event.Error.Frame)
		}
		return line
	default:
		return prefix + " UNKNOWN"
	}
}

func hexBytes(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	b.WriteByte('|')
	return b.String()
}

func requireFile(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}
