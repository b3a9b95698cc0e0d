package log

// Logger is the interface monitors implement to receive protocol
// events. Pass nil or NoopLogger to disable the tap.
type Logger interface {
	// Log records a protocol event. Implementations must be
	// thread-safe and should return quickly; the stimulator's update
	// loop calls Log on its tick path.
	Log(event Event)
}

// NoopLogger discards all events. Use when the tap is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
