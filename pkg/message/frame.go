package message

// Frame layout constants.
const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 4

	// MarkerDest is the first header byte, the board address marker.
	MarkerDest = 0x04

	// MarkerSrc is the second header byte, the host address marker.
	MarkerSrc = 0x80

	// MaxBodySize is the largest body a frame can declare (len-1 byte of
	// 0xFF plus one).
	MaxBodySize = 256
)

// Opcode identifies a board command or its acknowledgement.
type Opcode byte

// Documented opcodes. Commands and their acknowledgements share the
// same opcode; direction disambiguates.
const (
	OpChannelSetup    Opcode = 0x47
	OpSchedulerSetup  Opcode = 0x10
	OpSchedulerSync   Opcode = 0x1B
	OpSchedulerHalt   Opcode = 0x04
	OpSchedulerDelete Opcode = 0x12
	OpEventCreate     Opcode = 0x15
	OpEventDelete     Opcode = 0x17
	OpEventEdit       Opcode = 0x19
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpChannelSetup:
		return "CHANNEL_SETUP"
	case OpSchedulerSetup:
		return "SCHEDULER_SETUP"
	case OpSchedulerSync:
		return "SCHEDULER_SYNC"
	case OpSchedulerHalt:
		return "SCHEDULER_HALT"
	case OpSchedulerDelete:
		return "SCHEDULER_DELETE"
	case OpEventCreate:
		return "EVENT_CREATE"
	case OpEventDelete:
		return "EVENT_DELETE"
	case OpEventEdit:
		return "EVENT_EDIT"
	default:
		return "UNKNOWN"
	}
}

// Checksum computes the additive checksum over the given bytes: the low
// eight bits of the byte sum. A complete frame ends with the checksum of
// everything before it.
func Checksum(data []byte) byte {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return byte(sum & 0xFF)
}

// Encode builds a complete frame for the given opcode and payload. The
// body is the payload followed by the checksum byte, and the declared
// length always matches it.
func Encode(op Opcode, payload []byte) []byte {
	frame := make([]byte, 0, HeaderSize+len(payload)+1)
	frame = append(frame, MarkerDest, MarkerSrc, byte(op), byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame))
	return frame
}
