package link

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pipe is an in-memory Link. NewPipe returns two ends wired to each
// other: bytes written to one end become readable on the other. Used by
// tests and the virtual stimulator in place of a serial port.
type Pipe struct {
	id   string
	peer *byteQueue // written bytes land here
	own  *byteQueue // reads drain from here
}

// NewPipe creates a connected pair of in-memory links.
func NewPipe() (*Pipe, *Pipe) {
	a := newByteQueue()
	b := newByteQueue()
	return &Pipe{id: uuid.NewString(), peer: b, own: a},
		&Pipe{id: uuid.NewString(), peer: a, own: b}
}

// Write delivers data to the peer end.
func (p *Pipe) Write(data []byte) error {
	return p.peer.push(data)
}

// Read returns up to max bytes written by the peer, waiting at most
// timeout for the first byte.
func (p *Pipe) Read(max int, timeout time.Duration) ([]byte, error) {
	return p.own.pop(max, timeout)
}

// Close closes both directions. The peer's reads fail with ErrClosed
// once its pending bytes drain.
func (p *Pipe) Close() error {
	p.own.close()
	p.peer.close()
	return nil
}

// ID returns the connection ID of this end.
func (p *Pipe) ID() string { return p.id }

// Compile-time interface satisfaction check.
var _ Link = (*Pipe)(nil)

// byteQueue is a closable byte buffer with timeout-bounded reads.
type byteQueue struct {
	mu     sync.Mutex
	data   []byte
	closed bool
	notify chan struct{}
}

func newByteQueue() *byteQueue {
	return &byteQueue{notify: make(chan struct{}, 1)}
}

func (q *byteQueue) push(data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.data = append(q.data, data...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *byteQueue) pop(max int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.data) > 0 {
			n := max
			if len(q.data) < n {
				n = len(q.data)
			}
			out := append([]byte(nil), q.data[:n]...)
			q.data = q.data[n:]
			q.mu.Unlock()
			return out, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		}
	}
}

func (q *byteQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}
