package message

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Decode errors.
var (
	// ErrNoData indicates no bytes were pending on the link.
	ErrNoData = errors.New("no message data available")
)

// Category classifies a decoded inbound frame.
type Category uint8

const (
	// CategoryInvalid indicates a frame with a bad signature, short
	// body, or checksum mismatch.
	CategoryInvalid Category = iota

	// CategoryUnknown indicates a well-formed frame with an
	// undocumented opcode.
	CategoryUnknown

	CategoryChannelSetupAck
	CategorySchedulerSetupAck
	CategorySchedulerSyncAck
	CategorySchedulerHaltAck
	CategorySchedulerDeleteAck
	CategoryEventCreateAck
	CategoryEventEditAck
	CategoryEventDeleteAck
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInvalid:
		return "INVALID"
	case CategoryUnknown:
		return "UNKNOWN"
	case CategoryChannelSetupAck:
		return "CHANNEL_SETUP_ACK"
	case CategorySchedulerSetupAck:
		return "SCHEDULER_SETUP_ACK"
	case CategorySchedulerSyncAck:
		return "SCHEDULER_SYNC_ACK"
	case CategorySchedulerHaltAck:
		return "SCHEDULER_HALT_ACK"
	case CategorySchedulerDeleteAck:
		return "SCHEDULER_DELETE_ACK"
	case CategoryEventCreateAck:
		return "EVENT_CREATE_ACK"
	case CategoryEventEditAck:
		return "EVENT_EDIT_ACK"
	case CategoryEventDeleteAck:
		return "EVENT_DELETE_ACK"
	default:
		return "UNKNOWN"
	}
}

// Slot identifies one of the four event-edit slots.
type Slot byte

// The board supports exactly four concurrent events per schedule, so
// edit acknowledgements demultiplex over a fixed set of slots.
const (
	Slot1 Slot = 1
	Slot2 Slot = 2
	Slot3 Slot = 3
	Slot4 Slot = 4
)

// Inbound is a decoded frame received from the board.
type Inbound struct {
	// Header holds the four header bytes as read from the wire.
	Header [HeaderSize]byte

	// Body holds the body bytes actually read, including the trailing
	// checksum when the frame arrived complete.
	Body []byte

	// Received is the time the frame finished arriving.
	Received time.Time
}

// Decode builds an Inbound from a frame header and the body bytes read
// for it. The body may be shorter than the header declares when the read
// timed out; such frames classify as Invalid but retain the bytes for
// diagnosis.
func Decode(header [HeaderSize]byte, body []byte) Inbound {
	return Inbound{Header: header, Body: body, Received: time.Now()}
}

// Valid reports whether the frame carries the expected address markers,
// a body matching the declared length, and a correct checksum.
func (m Inbound) Valid() bool {
	if m.Header[0] != MarkerDest || m.Header[1] != MarkerSrc {
		return false
	}
	declared := int(m.Header[3]) + 1
	if len(m.Body) != declared {
		return false
	}
	frame := append(m.Header[:len(m.Header):len(m.Header)], m.Body[:len(m.Body)-1]...)
	return Checksum(frame) == m.Body[len(m.Body)-1]
}

// Opcode returns the frame's opcode byte.
func (m Inbound) Opcode() Opcode {
	return Opcode(m.Header[2])
}

// Category classifies the frame. Invalid frames classify as
// CategoryInvalid regardless of opcode.
func (m Inbound) Category() Category {
	if !m.Valid() {
		return CategoryInvalid
	}
	switch m.Opcode() {
	case OpChannelSetup:
		return CategoryChannelSetupAck
	case OpSchedulerSetup:
		return CategorySchedulerSetupAck
	case OpSchedulerSync:
		return CategorySchedulerSyncAck
	case OpSchedulerHalt:
		return CategorySchedulerHaltAck
	case OpSchedulerDelete:
		return CategorySchedulerDeleteAck
	case OpEventCreate:
		return CategoryEventCreateAck
	case OpEventEdit:
		return CategoryEventEditAck
	case OpEventDelete:
		return CategoryEventDeleteAck
	default:
		return CategoryUnknown
	}
}

// Data returns the body without the trailing checksum. For invalid
// frames it returns whatever bytes arrived.
func (m Inbound) Data() []byte {
	if len(m.Body) == 0 {
		return nil
	}
	if !m.Valid() {
		return m.Body
	}
	return m.Body[:len(m.Body)-1]
}

// EditSlot returns the edit slot an event-edit acknowledgement belongs
// to. ok is false for any other category or an out-of-range slot byte.
func (m Inbound) EditSlot() (Slot, bool) {
	if m.Category() != CategoryEventEditAck {
		return 0, false
	}
	data := m.Data()
	if len(data) == 0 {
		return 0, false
	}
	s := Slot(data[0])
	if s < Slot1 || s > Slot4 {
		return 0, false
	}
	return s, true
}

// Bytes returns the full raw frame (header plus body bytes read).
func (m Inbound) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(m.Body))
	out = append(out, m.Header[:]...)
	return append(out, m.Body...)
}

// String formats the frame as hex with the header and body separated,
// the way board traffic is conventionally logged.
func (m Inbound) String() string {
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range m.Header {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "0x%02X", v)
	}
	b.WriteString(" | ")
	for i, v := range m.Body {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "0x%02X", v)
	}
	b.WriteByte('|')
	return b.String()
}

// Reader is the byte-stream capability frames are read from. A read
// returns at most max bytes, possibly fewer when the timeout expires
// first (a zero-length result means nothing arrived).
type Reader interface {
	Read(max int, timeout time.Duration) ([]byte, error)
}

// ReadInbound reads one frame from r within the given timeout. When no
// header bytes arrive at all it returns ErrNoData, which callers use to
// detect an idle link. A frame that starts arriving but falls short of
// its declared length decodes as an Invalid message, not an error.
func ReadInbound(r Reader, timeout time.Duration) (Inbound, error) {
	deadline := time.Now().Add(timeout)

	header, err := readFull(r, HeaderSize, deadline)
	if err != nil {
		return Inbound{}, err
	}
	if len(header) == 0 {
		return Inbound{}, ErrNoData
	}

	var hdr [HeaderSize]byte
	copy(hdr[:], header)
	if len(header) < HeaderSize {
		return Decode(hdr, nil), nil
	}

	declared := int(hdr[3]) + 1
	body, err := readFull(r, declared, deadline)
	if err != nil {
		return Inbound{}, err
	}
	return Decode(hdr, body), nil
}

// readFull accumulates up to n bytes from r until the deadline passes.
func readFull(r Reader, n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		chunk, err := r.Read(n-len(buf), remaining)
		if err != nil {
			return buf, err
		}
		if len(chunk) == 0 {
			break
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}
