package stim

import (
	"errors"
	"time"
)

// Core errors.
var (
	// ErrNotEnabled indicates an operation before a successful Enable
	// or CreateScheduler.
	ErrNotEnabled = errors.New("stimulator not enabled")

	// ErrDeviceNack indicates a missing or malformed acknowledgement
	// for a sent command.
	ErrDeviceNack = errors.New("missing or malformed acknowledgement")

	// ErrProtocolViolation indicates an unexpected opcode in an
	// otherwise well-formed frame.
	ErrProtocolViolation = errors.New("unexpected frame from board")

	// ErrChannelNotFound indicates a channel lookup by name failed.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrLimitExceeded indicates a write above a channel's configured
	// ceiling.
	ErrLimitExceeded = errors.New("value exceeds channel limit")

	// ErrInvalidConfig indicates an invalid stimulator configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrScheduleFull indicates the board's four event slots are
	// already taken.
	ErrScheduleFull = errors.New("schedule already holds four events")
)

// Timing defaults. The board needs a short processing pause between a
// command and the read of its acknowledgement; acknowledgements that
// take longer than the ack timeout count as missing.
const (
	// DefaultDelay is the pause between a send and the matching read.
	DefaultDelay = 5 * time.Millisecond

	// DefaultAckTimeout bounds the wait for one acknowledgement.
	DefaultAckTimeout = 100 * time.Millisecond

	// DefaultPeriod is the scheduler update period used when no valid
	// frequency is given.
	DefaultPeriod = 50 * time.Millisecond

	// drainTimeout bounds the per-frame wait while draining pending
	// inbound messages during Update.
	drainTimeout = 2 * time.Millisecond
)

// MaxBoards is the number of boards one stimulator can drive.
const MaxBoards = 2

// MaxEventsPerBoard is the board's fixed event capacity; event ids and
// edit slots run 1..4.
const MaxEventsPerBoard = 4

// SchedulerState is the lifecycle state of one board's scheduler.
type SchedulerState uint8

const (
	// SchedulerUninitialized - no schedule exists on the board yet.
	SchedulerUninitialized SchedulerState = iota

	// SchedulerCreated - the board acknowledged schedule creation.
	SchedulerCreated

	// SchedulerRunning - the sync message was sent; the board honors
	// the schedule.
	SchedulerRunning

	// SchedulerHalted - the schedule was halted.
	SchedulerHalted
)

// String returns the state name.
func (s SchedulerState) String() string {
	switch s {
	case SchedulerUninitialized:
		return "UNINITIALIZED"
	case SchedulerCreated:
		return "CREATED"
	case SchedulerRunning:
		return "RUNNING"
	case SchedulerHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// DeviceState is the board-side lifecycle state of one event.
type DeviceState uint8

const (
	// EventUncreated - the event exists locally but not on the board.
	EventUncreated DeviceState = iota

	// EventCreated - the board acknowledged creation and assigned an
	// event id.
	EventCreated

	// EventDeleted - the board acknowledged deletion.
	EventDeleted
)

// String returns the state name.
func (s DeviceState) String() string {
	switch s {
	case EventUncreated:
		return "UNCREATED"
	case EventCreated:
		return "CREATED"
	case EventDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}
