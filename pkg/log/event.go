package log

import (
	"time"
)

// Event is one observation of board traffic or stimulator state.
// CBOR encoding uses integer keys for compact capture files.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Seq is the event sequence number, monotonically increasing per
	// stimulator.
	Seq uint64 `cbor:"2,keyasint"`

	// ConnectionID identifies the link the event belongs to (UUID).
	ConnectionID string `cbor:"3,keyasint,omitempty"`

	// Board is the board index (0 or 1).
	Board uint8 `cbor:"4,keyasint"`

	// Direction indicates frame flow for frame events.
	Direction Direction `cbor:"5,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"6,keyasint"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates a frame received from the board.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame sent to the board.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a protocol frame (command or ack).
	CategoryFrame Category = 0
	// CategoryState indicates a scheduler or stimulator state change.
	CategoryState Category = 1
	// CategoryError indicates a protocol or link error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one wire frame.
type FrameEvent struct {
	// Opcode is the decoded opcode category name (e.g. EVENT_EDIT_ACK
	// for inbound frames, EVENT_EDIT for outbound commands).
	Opcode string `cbor:"1,keyasint"`

	// Data is the raw frame bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Valid reports whether the frame passed signature, length, and
	// checksum checks. Always true for outbound frames.
	Valid bool `cbor:"3,keyasint"`
}

// StateChangeEvent captures scheduler and stimulator lifecycle changes.
type StateChangeEvent struct {
	// Entity names what changed state ("scheduler", "stimulator").
	Entity string `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures protocol and link errors.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Frame holds the raw offending frame bytes, when one exists.
	Frame []byte `cbor:"3,keyasint,omitempty"`
}
