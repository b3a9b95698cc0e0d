// Package message implements the binary wire protocol spoken by the
// stimulation board.
//
// Every message, in either direction, is a single frame:
//
//	┌──────┬──────┬────────┬────────┬──────────────────┬──────────┐
//	│ 0x04 │ 0x80 │ opcode │ len-1  │   payload bytes  │ checksum │
//	└──────┴──────┴────────┴────────┴──────────────────┴──────────┘
//	 ← 4-byte header                 → ← body of len bytes        →
//
// The first two header bytes are fixed address markers. The length byte
// declares the body size minus one; the body always ends with an additive
// checksum (the low eight bits of the sum of every preceding frame byte).
//
// # Opcodes
//
// The board documents eight commands, each acknowledged with a frame
// carrying the same opcode:
//
//	0x47  channel setup
//	0x10  scheduler setup   (ack body[0] = assigned schedule id)
//	0x1B  scheduler sync
//	0x04  scheduler halt
//	0x12  scheduler delete
//	0x15  event create      (ack body[0] = assigned event id)
//	0x17  event delete
//	0x19  event edit        (body[0] = edit slot 1..4)
//
// The board assigns event ids 1 through 4 per schedule; the event-edit
// command and its acknowledgement identify themselves through that id,
// which is why the four values are also called edit slots.
//
// Encoding performs no semantic validation of amplitude or pulse-width
// ranges; that is the caller's job. Decoding classifies every inbound
// frame into an acknowledgement category, Unknown for undocumented
// opcodes, or Invalid for frames with a bad signature, short body, or
// checksum mismatch.
package message
