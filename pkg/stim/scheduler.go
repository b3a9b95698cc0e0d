package stim

import (
	"fmt"
	"time"

	"github.com/fes-protocol/fes-go/pkg/message"
)

// Scheduler mirrors one board's stimulation schedule. It holds the
// board-assigned schedule id, the sync signature, and the events added
// so far in insertion order.
//
// The lifecycle is Uninitialized -> Created -> Running -> Halted.
// Create assigns the id, Begin starts execution, Halt pauses it, and
// Delete tears the schedule down. Events can only be added before
// Begin.
type Scheduler struct {
	board      *board
	delay      time.Duration
	ackTimeout time.Duration

	sync     byte
	periodMs uint16

	scheduleID byte
	state      SchedulerState
	events     []*Event
}

func newScheduler(b *board, sync byte, periodMs uint16, delay, ackTimeout time.Duration) *Scheduler {
	return &Scheduler{
		board:      b,
		delay:      delay,
		ackTimeout: ackTimeout,
		sync:       sync,
		periodMs:   periodMs,
		state:      SchedulerUninitialized,
	}
}

// create registers the schedule on the board and stores the
// board-assigned schedule id from the acknowledgement.
func (s *Scheduler) create() error {
	if s.state != SchedulerUninitialized {
		return fmt.Errorf("create schedule: already created, scheduler is %v", s.state)
	}
	frame := message.CreateSchedule(s.sync, s.periodMs)
	ack, err := s.board.roundTrip(message.OpSchedulerSetup, frame, s.delay, s.ackTimeout)
	if err != nil {
		return fmt.Errorf("create schedule: %w: %v", ErrDeviceNack, err)
	}
	if ack.Category() != message.CategorySchedulerSetupAck {
		s.board.tap.failure(s.board.index, "bad schedule setup ack", "", ack.Bytes())
		return fmt.Errorf("create schedule: %w", ErrDeviceNack)
	}
	data := ack.Data()
	if len(data) == 0 {
		return fmt.Errorf("create schedule: %w: ack carries no schedule id", ErrDeviceNack)
	}
	s.scheduleID = data[0]
	s.state = SchedulerCreated
	s.board.tap.state(s.board.index, "scheduler", SchedulerUninitialized.String(), SchedulerCreated.String(), "setup acknowledged")
	return nil
}

// AddEvent creates a new event for ch on the board and appends it to
// the schedule. Valid from Created onward; the board caps a schedule
// at MaxEventsPerBoard events.
func (s *Scheduler) AddEvent(ch Channel, delayMs uint16, amplitude, pulseWidth uint) (*Event, error) {
	if s.state == SchedulerUninitialized {
		return nil, fmt.Errorf("add event for %q: %w: scheduler is %v", ch.Name, ErrNotEnabled, s.state)
	}
	if len(s.events) >= MaxEventsPerBoard {
		return nil, fmt.Errorf("add event for %q: %w: schedule holds %d events", ch.Name, ErrScheduleFull, len(s.events))
	}
	ev := newEvent(s.board, s.scheduleID, ch, message.StimEvent, s.delay, s.ackTimeout)
	ev.SetAmplitude(amplitude)
	ev.SetPulseWidth(pulseWidth)
	if err := ev.Create(delayMs); err != nil {
		return nil, err
	}
	s.events = append(s.events, ev)
	return ev, nil
}

// Begin starts schedule execution by syncing it with the signature it
// was created with.
func (s *Scheduler) Begin() error {
	if s.state != SchedulerCreated && s.state != SchedulerHalted {
		return fmt.Errorf("begin schedule %d: %w: scheduler is %v", s.scheduleID, ErrNotEnabled, s.state)
	}
	frame := message.SyncSchedule(s.scheduleID, s.sync)
	ack, err := s.board.roundTrip(message.OpSchedulerSync, frame, s.delay, s.ackTimeout)
	if err != nil {
		return fmt.Errorf("begin schedule %d: %w: %v", s.scheduleID, ErrDeviceNack, err)
	}
	if ack.Category() != message.CategorySchedulerSyncAck {
		s.board.tap.failure(s.board.index, "bad schedule sync ack", "", ack.Bytes())
		return fmt.Errorf("begin schedule %d: %w", s.scheduleID, ErrDeviceNack)
	}
	prev := s.state
	s.state = SchedulerRunning
	s.board.tap.state(s.board.index, "scheduler", prev.String(), SchedulerRunning.String(), "sync acknowledged")
	return nil
}

// Update flushes pending parameter changes. Only events whose cached
// amplitude or pulse width differs from the last acknowledged value
// are edited; an untouched schedule sends nothing.
func (s *Scheduler) Update() error {
	if s.state != SchedulerRunning {
		return fmt.Errorf("update schedule %d: %w: scheduler is %v", s.scheduleID, ErrNotEnabled, s.state)
	}
	for _, ev := range s.events {
		if !ev.dirty() {
			continue
		}
		if err := ev.Edit(); err != nil {
			return err
		}
	}
	return nil
}

// Halt pauses schedule execution. The halt command is fire and forget:
// the board stops stimulating immediately and its acknowledgement is
// drained later rather than awaited.
func (s *Scheduler) Halt() error {
	if s.state != SchedulerRunning {
		return nil
	}
	if err := s.board.send(message.OpSchedulerHalt, message.HaltSchedule(s.scheduleID)); err != nil {
		return fmt.Errorf("halt schedule %d: %w", s.scheduleID, err)
	}
	s.state = SchedulerHalted
	s.board.tap.state(s.board.index, "scheduler", SchedulerRunning.String(), SchedulerHalted.String(), "halt sent")
	return nil
}

// Delete removes every event and then the schedule itself. Like Halt
// it does not await acknowledgements for the final teardown command.
func (s *Scheduler) Delete() error {
	if s.state == SchedulerUninitialized {
		return nil
	}
	for _, ev := range s.events {
		if err := ev.Delete(); err != nil {
			return err
		}
	}
	if err := s.board.send(message.OpSchedulerDelete, message.DeleteSchedule(s.scheduleID)); err != nil {
		return fmt.Errorf("delete schedule %d: %w", s.scheduleID, err)
	}
	prev := s.state
	s.state = SchedulerUninitialized
	s.board.tap.state(s.board.index, "scheduler", prev.String(), SchedulerUninitialized.String(), "delete sent")
	return nil
}

// Events returns the schedule's events in insertion order.
func (s *Scheduler) Events() []*Event { return s.events }

// ScheduleID returns the board-assigned schedule id (zero until
// created).
func (s *Scheduler) ScheduleID() byte { return s.scheduleID }

// State returns the scheduler lifecycle state.
func (s *Scheduler) State() SchedulerState { return s.state }

// drain reads and discards any acknowledgements still queued on the
// link, typically after fire-and-forget halt or delete commands. Each
// drained frame still passes through the log tap via recv.
func (s *Scheduler) drain() {
	for {
		_, err := s.board.recv(drainTimeout)
		if err != nil {
			return
		}
	}
}
