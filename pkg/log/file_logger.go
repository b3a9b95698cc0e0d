package log

import (
	"bufio"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends CBOR-encoded events to a capture file. Writes are
// buffered; Close flushes the buffer. Safe for concurrent use.
type FileLogger struct {
	mu   sync.Mutex
	out  *os.File
	buf  *bufio.Writer
	enc  *cbor.Encoder
	done bool
}

// NewFileLogger opens the capture file at path, creating it if needed
// and appending if it already exists.
func NewFileLogger(path string) (*FileLogger, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out)
	return &FileLogger{out: out, buf: buf, enc: NewEncoder(buf)}, nil
}

// Log appends one event. Encoding errors are swallowed: the tap must
// never disturb the update loop, and a broken capture file is found at
// read time.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	_ = l.enc.Encode(event)
}

// Close flushes and closes the capture file. Subsequent Log calls are
// ignored; calling Close again is a no-op.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil
	}
	l.done = true
	flushErr := l.buf.Flush()
	if err := l.out.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ Logger = (*FileLogger)(nil)
