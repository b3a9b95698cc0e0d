// Package log provides the protocol event tap for board traffic.
//
// Every frame the stimulator sends or receives, every scheduler state
// change, and every protocol error can be observed as an Event without
// altering core behavior. Monitors and visualizers consume events
// through the Logger interface; the core never waits on them.
//
// # Loggers
//
//   - NoopLogger discards events (logging disabled).
//   - SlogAdapter prints events through log/slog for development.
//   - FileLogger appends CBOR-encoded events to a capture file.
//   - MultiLogger fans out to several loggers at once.
//
// Capture files written by FileLogger are read back with Reader, which
// supports filtering by board, direction, category, and time range. The
// fes-log command renders them.
package log
