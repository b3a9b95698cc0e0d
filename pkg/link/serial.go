package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"
)

// Board serial parameters. The stimulation board speaks 9600 8N1 with
// no flow control; these are not configurable.
const (
	boardBaudRate = 9600
)

// Serial is a Link over a physical serial port.
type Serial struct {
	port serial.Port
	path string
	id   string

	mu     sync.Mutex
	closed bool
}

// OpenSerial opens and configures the serial port at path. The input
// and output buffers are purged so a previous session's traffic cannot
// be misread as acknowledgements.
func OpenSerial(path string) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: boardBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFailed, path, err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFailed, path, err)
	}

	return &Serial{
		port: port,
		path: path,
		id:   uuid.NewString(),
	}, nil
}

// Write sends data to the board.
func (s *Serial) Write(data []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if _, err := s.port.Write(data); err != nil {
		return fmt.Errorf("serial write on %s: %w", s.path, err)
	}
	return nil
}

// Read returns up to max pending bytes, waiting at most timeout.
func (s *Serial) Read(max int, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if err := s.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFailed, s.path, err)
	}
	buf := make([]byte, max)
	n, err := s.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("serial read on %s: %w", s.path, err)
	}
	return buf[:n], nil
}

// Close closes the port. Safe to call more than once.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// ID returns the connection ID assigned at open time.
func (s *Serial) ID() string { return s.id }

// Compile-time interface satisfaction check.
var _ Link = (*Serial)(nil)
