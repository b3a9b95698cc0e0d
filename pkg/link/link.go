package link

import (
	"errors"
	"time"
)

// Link errors.
var (
	// ErrClosed indicates an operation on a closed link.
	ErrClosed = errors.New("link closed")

	// ErrOpenFailed indicates the underlying port could not be opened.
	ErrOpenFailed = errors.New("failed to open link")

	// ErrConfigFailed indicates the port opened but could not be
	// configured (mode, timeouts, buffer purge).
	ErrConfigFailed = errors.New("failed to configure link")
)

// Link is a duplex byte stream to one stimulation board. Reads block
// for at most the given timeout and may return fewer than max bytes; a
// zero-length result means nothing arrived in time.
//
// Implementations must be safe for one concurrent reader and one
// concurrent writer.
type Link interface {
	// Write sends the given bytes, blocking until accepted.
	Write(data []byte) error

	// Read returns up to max pending bytes, waiting at most timeout.
	Read(max int, timeout time.Duration) ([]byte, error)

	// Close releases the underlying transport. Close is idempotent.
	Close() error

	// ID returns the connection ID used in protocol captures.
	ID() string
}
