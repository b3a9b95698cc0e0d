package stim

import (
	"fmt"
	"time"

	"github.com/fes-protocol/fes-go/pkg/message"
)

// Event is one board-resident stimulation instruction bound to a
// Channel. Its event id is assigned by the board when Create succeeds
// and doubles as the edit slot (1..4) that identifies later edits and
// their acknowledgements. Event ids are never invented locally.
//
// Events are owned by a Scheduler and are not safe for concurrent use.
type Event struct {
	board      *board
	scheduleID byte
	channel    Channel
	delay      time.Duration
	ackTimeout time.Duration

	eventType byte
	priority  byte
	zone      byte

	eventID byte
	state   DeviceState

	amplitude  uint
	pulseWidth uint

	// last values acknowledged by the board; Edit is skipped while the
	// cache matches them
	sentAmplitude  uint
	sentPulseWidth uint
}

func newEvent(b *board, scheduleID byte, ch Channel, eventType byte, delay, ackTimeout time.Duration) *Event {
	return &Event{
		board:      b,
		scheduleID: scheduleID,
		channel:    ch,
		delay:      delay,
		ackTimeout: ackTimeout,
		eventType:  eventType,
		state:      EventUncreated,
	}
}

// Create registers the event on the board and blocks for the creation
// acknowledgement, which carries the board-assigned event id. On a
// missing or malformed acknowledgement the event stays Uncreated and
// the error wraps ErrDeviceNack.
func (e *Event) Create(delayMs uint16) error {
	frame := message.CreateEvent(e.scheduleID, delayMs, message.EventParams{
		Channel:    e.channel.ChannelID,
		PulseWidth: byte(e.pulseWidth),
		Amplitude:  byte(e.amplitude),
		EventType:  e.eventType,
		Priority:   e.priority,
		Zone:       e.zone,
	})
	ack, err := e.board.roundTrip(message.OpEventCreate, frame, e.delay, e.ackTimeout)
	if err != nil {
		return fmt.Errorf("create event for %q: %w: %v", e.channel.Name, ErrDeviceNack, err)
	}
	switch ack.Category() {
	case message.CategoryEventCreateAck:
		data := ack.Data()
		if len(data) == 0 {
			return fmt.Errorf("create event for %q: %w: ack carries no event id", e.channel.Name, ErrDeviceNack)
		}
		e.eventID = data[0]
		e.state = EventCreated
		e.sentAmplitude = e.amplitude
		e.sentPulseWidth = e.pulseWidth
		return nil
	case message.CategoryInvalid:
		e.board.tap.failure(e.board.index, "invalid event create ack", "channel "+e.channel.Name, ack.Bytes())
		return fmt.Errorf("create event for %q: %w", e.channel.Name, ErrDeviceNack)
	default:
		e.board.tap.failure(e.board.index, "unexpected ack "+ack.Category().String(), "channel "+e.channel.Name, ack.Bytes())
		return fmt.Errorf("create event for %q: %w: got %v", e.channel.Name, ErrProtocolViolation, ack.Category())
	}
}

// Edit pushes the cached amplitude, pulse width, and zone to the board
// under the event's edit slot and awaits the slot's acknowledgement.
// Only valid while the event is Created.
func (e *Event) Edit() error {
	if e.state != EventCreated {
		return fmt.Errorf("edit event for %q: %w: event is %v", e.channel.Name, ErrNotEnabled, e.state)
	}
	frame := message.EditEvent(e.eventID, byte(e.pulseWidth), byte(e.amplitude), e.zone)
	ack, err := e.board.roundTrip(message.OpEventEdit, frame, e.delay, e.ackTimeout)
	if err != nil {
		return fmt.Errorf("edit event %d for %q: %w: %v", e.eventID, e.channel.Name, ErrDeviceNack, err)
	}
	if ack.Category() != message.CategoryEventEditAck {
		e.board.tap.failure(e.board.index, "bad edit ack", "channel "+e.channel.Name, ack.Bytes())
		return fmt.Errorf("edit event %d for %q: %w", e.eventID, e.channel.Name, ErrDeviceNack)
	}
	if slot, ok := ack.EditSlot(); !ok || slot != message.Slot(e.eventID) {
		e.board.tap.failure(e.board.index, "edit ack for wrong slot", "channel "+e.channel.Name, ack.Bytes())
		return fmt.Errorf("edit event %d for %q: %w: ack for wrong slot", e.eventID, e.channel.Name, ErrProtocolViolation)
	}
	e.sentAmplitude = e.amplitude
	e.sentPulseWidth = e.pulseWidth
	return nil
}

// Delete removes the event from the board's schedule. Deleting an
// Uncreated or already-Deleted event is a no-op success.
func (e *Event) Delete() error {
	if e.state != EventCreated {
		return nil
	}
	frame := message.DeleteEvent(e.eventID)
	ack, err := e.board.roundTrip(message.OpEventDelete, frame, e.delay, e.ackTimeout)
	if err != nil {
		return fmt.Errorf("delete event %d for %q: %w: %v", e.eventID, e.channel.Name, ErrDeviceNack, err)
	}
	if ack.Category() != message.CategoryEventDeleteAck {
		e.board.tap.failure(e.board.index, "bad delete ack", "channel "+e.channel.Name, ack.Bytes())
		return fmt.Errorf("delete event %d for %q: %w", e.eventID, e.channel.Name, ErrDeviceNack)
	}
	e.state = EventDeleted
	return nil
}

// SetAmplitude caches a new amplitude. No I/O happens until the next
// Edit; range checking against the channel ceiling is the caller's
// contract (the Stimulator enforces it).
func (e *Event) SetAmplitude(v uint) { e.amplitude = v }

// SetPulseWidth caches a new pulse width. See SetAmplitude.
func (e *Event) SetPulseWidth(v uint) { e.pulseWidth = v }

// Amplitude returns the cached amplitude.
func (e *Event) Amplitude() uint { return e.amplitude }

// PulseWidth returns the cached pulse width.
func (e *Event) PulseWidth() uint { return e.pulseWidth }

// Channel returns the channel the event drives.
func (e *Event) Channel() Channel { return e.channel }

// EventID returns the board-assigned event id (zero until Created).
func (e *Event) EventID() byte { return e.eventID }

// State returns the board-side lifecycle state.
func (e *Event) State() DeviceState { return e.state }

// dirty reports whether the cache differs from the last value the
// board acknowledged.
func (e *Event) dirty() bool {
	return e.amplitude != e.sentAmplitude || e.pulseWidth != e.sentPulseWidth
}
