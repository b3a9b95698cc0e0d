package fes_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fes-protocol/fes-go/pkg/link"
	"github.com/fes-protocol/fes-go/pkg/log"
	"github.com/fes-protocol/fes-go/pkg/message"
	"github.com/fes-protocol/fes-go/pkg/stim"
	"github.com/fes-protocol/fes-go/pkg/virtualstim"
)

const (
	testDelay   = 2 * time.Millisecond
	testTimeout = 200 * time.Millisecond
)

// rig is one stimulator wired to virtual devices over in-memory pipes.
type rig struct {
	stim    *stim.Stimulator
	devices []*virtualstim.Device
	tap     *recordingTap
}

// recordingTap keeps every protocol event for assertions.
type recordingTap struct {
	events []log.Event
}

func (r *recordingTap) Log(event log.Event) {
	r.events = append(r.events, event)
}

func (r *recordingTap) count(dir log.Direction, opcode string) int {
	n := 0
	for _, e := range r.events {
		if e.Category == log.CategoryFrame && e.Direction == dir && e.Frame != nil && e.Frame.Opcode == opcode {
			n++
		}
	}
	return n
}

func newRig(t *testing.T, channels []stim.Channel, boards int) *rig {
	t.Helper()
	r := &rig{tap: &recordingTap{}}
	links := make([]link.Link, boards)
	for i := range links {
		host, devEnd := link.NewPipe()
		links[i] = host
		dev := virtualstim.New(devEnd)
		dev.Start()
		r.devices = append(r.devices, dev)
		t.Cleanup(dev.Stop)
	}
	s, err := stim.New(stim.Config{
		Name:       "integration",
		Links:      links,
		Channels:   channels,
		Logger:     r.tap,
		Delay:      testDelay,
		AckTimeout: testTimeout,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.stim = s
	t.Cleanup(s.Disable)
	return r
}

func legChannels() []stim.Channel {
	return []stim.Channel{
		{Name: "quadriceps", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "hamstring", ChannelID: 2, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "tibialis", ChannelID: 3, Board: 0, MaxAmplitude: 80, MaxPulseWidth: 250},
		{Name: "gastroc", ChannelID: 4, Board: 0, MaxAmplitude: 80, MaxPulseWidth: 250},
	}
}

func TestFullSessionSingleBoard(t *testing.T) {
	channels := legChannels()
	r := newRig(t, channels, 1)

	if err := r.stim.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := r.stim.CreateScheduler(0xAA, 40); err != nil {
		t.Fatalf("CreateScheduler() error = %v", err)
	}
	if err := r.stim.AddEvents(); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}

	events := r.stim.Schedulers()[0].Events()
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	seen := map[byte]bool{}
	for _, ev := range events {
		if ev.EventID() < 1 || ev.EventID() > 4 {
			t.Errorf("event id %d out of range 1..4", ev.EventID())
		}
		if seen[ev.EventID()] {
			t.Errorf("duplicate event id %d", ev.EventID())
		}
		seen[ev.EventID()] = true
	}

	if err := r.stim.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	// one dirty channel flushes exactly one edit frame
	if err := r.stim.WriteAmp("quadriceps", 40); err != nil {
		t.Fatalf("WriteAmp() error = %v", err)
	}
	if err := r.stim.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := r.tap.count(log.DirectionOut, message.OpEventEdit.String()); got != 1 {
		t.Errorf("edit frames after one write = %d, want 1", got)
	}
	if got := r.stim.Amplitudes()["quadriceps"]; got != 40 {
		t.Errorf("Amplitudes()[quadriceps] = %d, want 40", got)
	}

	// a steady tick flushes nothing further
	if err := r.stim.Update(); err != nil {
		t.Fatalf("second Update() error = %v", err)
	}
	if got := r.tap.count(log.DirectionOut, message.OpEventEdit.String()); got != 1 {
		t.Errorf("edit frames after idle tick = %d, want 1", got)
	}

	r.stim.Disable()
	if r.stim.Enabled() {
		t.Error("Enabled() = true after Disable")
	}
	if got := r.tap.count(log.DirectionOut, message.OpSchedulerHalt.String()); got != 1 {
		t.Errorf("halt frames = %d, want 1", got)
	}
}

func TestDroppedAckDisables(t *testing.T) {
	channels := legChannels()
	r := newRig(t, channels, 1)

	if err := r.stim.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := r.stim.CreateScheduler(0xAA, 40); err != nil {
		t.Fatalf("CreateScheduler() error = %v", err)
	}
	if err := r.stim.AddEvents(); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if err := r.stim.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.stim.WriteAmp("quadriceps", 40); err != nil {
		t.Fatalf("WriteAmp() error = %v", err)
	}
	r.devices[0].DropNextAck()
	err := r.stim.Update()
	if !errors.Is(err, stim.ErrDeviceNack) {
		t.Fatalf("Update() error = %v, want ErrDeviceNack", err)
	}
	if r.stim.Enabled() {
		t.Error("Enabled() = true after dropped acknowledgement")
	}
	if err := r.stim.Update(); !errors.Is(err, stim.ErrNotEnabled) {
		t.Errorf("Update() error = %v, want ErrNotEnabled", err)
	}
}

func TestCorruptAckDisables(t *testing.T) {
	channels := legChannels()
	r := newRig(t, channels, 1)

	if err := r.stim.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := r.stim.CreateScheduler(0xAA, 40); err != nil {
		t.Fatalf("CreateScheduler() error = %v", err)
	}
	if err := r.stim.AddEvents(); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if err := r.stim.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.stim.WriteAmp("quadriceps", 40); err != nil {
		t.Fatalf("WriteAmp() error = %v", err)
	}
	r.devices[0].CorruptNextAck()
	err := r.stim.Update()
	if err == nil {
		t.Fatal("Update() succeeded with a corrupt acknowledgement")
	}
	if r.stim.Enabled() {
		t.Error("Enabled() = true after corrupt acknowledgement")
	}
}

func TestDualBoardAllOrNothing(t *testing.T) {
	channels := []stim.Channel{
		{Name: "left", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "right", ChannelID: 1, Board: 1, MaxAmplitude: 100, MaxPulseWidth: 250},
	}
	r := newRig(t, channels, 2)

	if err := r.stim.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	// scheduler setup fails on the second board, so neither board may
	// keep a schedule
	r.devices[1].DropNextAck()
	err := r.stim.CreateScheduler(0xAA, 40)
	if !errors.Is(err, stim.ErrDeviceNack) {
		t.Fatalf("CreateScheduler() error = %v, want ErrDeviceNack", err)
	}
	if r.stim.Enabled() {
		t.Error("Enabled() = true after failed scheduler creation")
	}
	if err := r.stim.WriteAmp("left", 10); !errors.Is(err, stim.ErrNotEnabled) {
		t.Errorf("WriteAmp() error = %v, want ErrNotEnabled", err)
	}
}

func TestDualBoardIndependentRouting(t *testing.T) {
	channels := []stim.Channel{
		{Name: "left", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "right", ChannelID: 1, Board: 1, MaxAmplitude: 100, MaxPulseWidth: 250},
	}
	r := newRig(t, channels, 2)

	if err := r.stim.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := r.stim.CreateScheduler(0xAA, 40); err != nil {
		t.Fatalf("CreateScheduler() error = %v", err)
	}
	if err := r.stim.AddEvents(); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if err := r.stim.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.stim.WriteAmp("right", 25); err != nil {
		t.Fatalf("WriteAmp() error = %v", err)
	}
	if err := r.stim.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// only board 1 received an edit
	edits := map[uint8]int{}
	for _, e := range r.tap.events {
		if e.Category == log.CategoryFrame && e.Direction == log.DirectionOut &&
			e.Frame != nil && e.Frame.Opcode == message.OpEventEdit.String() {
			edits[e.Board]++
		}
	}
	if edits[0] != 0 || edits[1] != 1 {
		t.Errorf("edits per board = %v, want board 1 only", edits)
	}
}
