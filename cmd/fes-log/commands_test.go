package main

import (
	"strings"
	"testing"
	"time"

	"github.com/fes-protocol/fes-go/pkg/log"
)

func TestParseDirection(t *testing.T) {
	if d, err := parseDirection("in"); err != nil || d != log.DirectionIn {
		t.Errorf("parseDirection(in) = %v, %v", d, err)
	}
	if d, err := parseDirection("out"); err != nil || d != log.DirectionOut {
		t.Errorf("parseDirection(out) = %v, %v", d, err)
	}
	if _, err := parseDirection("sideways"); err == nil {
		t.Error("parseDirection(sideways) did not fail")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want log.Category
		ok   bool
	}{
		{"frame", log.CategoryFrame, true},
		{"state", log.CategoryState, true},
		{"error", log.CategoryError, true},
		{"bogus", 0, false},
	}
	for _, tc := range tests {
		got, err := parseCategory(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("parseCategory(%q) error = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("parseCategory(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	frame := log.Event{
		Timestamp: ts,
		Seq:       7,
		Board:     1,
		Direction: log.DirectionOut,
		Category:  log.CategoryFrame,
		Frame:     &log.FrameEvent{Opcode: "EVENT_EDIT", Data: []byte{0x04, 0x80}, Valid: true},
	}
	line := formatEvent(frame)
	for _, want := range []string{"#7", "board 1", "OUT", "EVENT_EDIT", "|04 80|"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatEvent(frame) = %q, missing %q", line, want)
		}
	}
	if strings.Contains(line, "INVALID") {
		t.Errorf("formatEvent(frame) = %q, flags valid frame as invalid", line)
	}

	state := log.Event{
		Timestamp:   ts,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: "scheduler", OldState: "CREATED", NewState: "RUNNING", Reason: "sync acknowledged"},
	}
	line = formatEvent(state)
	if !strings.Contains(line, "CREATED -> RUNNING") {
		t.Errorf("formatEvent(state) = %q", line)
	}

	fail := log.Event{
		Timestamp: ts,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: "invalid inbound frame", Frame: []byte{0xFF}},
	}
	line = formatEvent(fail)
	if !strings.Contains(line, "invalid inbound frame") || !strings.Contains(line, "|FF|") {
		t.Errorf("formatEvent(error) = %q", line)
	}
}

func TestCaptureStats(t *testing.T) {
	stats := captureStats{perBoard: map[uint8]int{}, perOpcode: map[string]int{}}
	stats.add(log.Event{Category: log.CategoryFrame, Direction: log.DirectionOut,
		Frame: &log.FrameEvent{Opcode: "CHANNEL_SETUP", Valid: true}})
	stats.add(log.Event{Category: log.CategoryFrame, Direction: log.DirectionIn, Board: 1,
		Frame: &log.FrameEvent{Opcode: "CHANNEL_SETUP_ACK", Valid: false}})
	stats.add(log.Event{Category: log.CategoryState})
	stats.add(log.Event{Category: log.CategoryError})

	if stats.total != 4 || stats.frames != 2 || stats.inbound != 1 || stats.outbound != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.invalid != 1 || stats.states != 1 || stats.errors != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.perBoard[1] != 1 || stats.perOpcode["CHANNEL_SETUP"] != 1 {
		t.Errorf("per-board/per-opcode = %+v %+v", stats.perBoard, stats.perOpcode)
	}
}
