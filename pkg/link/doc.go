// Package link provides the byte-stream transport the stimulator core
// drives boards over.
//
// The core only requires the Link capability: blocking writes, reads
// bounded by a timeout, and close. Two implementations are provided:
//
//   - Serial: a physical serial port (9600 8N1, the board's fixed
//     configuration) via go.bug.st/serial.
//   - Pipe: an in-memory duplex pair for tests and the virtual
//     stimulator.
//
// Every link carries a UUID connection ID so traffic from multiple
// boards can be told apart in protocol captures.
package link
