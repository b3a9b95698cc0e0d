package virtualstim

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fes-protocol/fes-go/pkg/link"
	"github.com/fes-protocol/fes-go/pkg/message"
)

const (
	// pollTimeout bounds one read of the device poll loop.
	pollTimeout = 5 * time.Millisecond

	// recentLimit caps the recent-frame feed.
	recentLimit = 64

	// maxEvents is the board's per-schedule event capacity.
	maxEvents = 4
)

// schedule tracks one board-side schedule: the signature it was
// created with and how many event slots are taken.
type schedule struct {
	sync   byte
	events byte
}

// Device emulates one stimulation board on the far end of a link.
type Device struct {
	link link.Link
	slog *slog.Logger

	mu           sync.Mutex
	running      bool
	done         chan struct{}
	stopped      chan struct{}
	nextSchedule byte
	schedules    map[byte]*schedule
	recent       []message.Inbound
	last         map[message.Category]message.Inbound
	dropNext     bool
	corruptNext  bool
}

// Option configures a Device.
type Option func(*Device)

// WithSlog routes the device's operational logging to l.
func WithSlog(l *slog.Logger) Option {
	return func(d *Device) { d.slog = l }
}

// New builds a Device reading from and acknowledging on l.
func New(l link.Link, opts ...Option) *Device {
	d := &Device{
		link:      l,
		slog:      slog.Default(),
		schedules: map[byte]*schedule{},
		last:      map[message.Category]message.Inbound{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the poll loop. Calling Start on a running device is a
// no-op.
func (d *Device) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.done = make(chan struct{})
	d.stopped = make(chan struct{})
	go d.loop(d.done, d.stopped)
}

// Stop terminates the poll loop and waits for it to exit.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	done, stopped := d.done, d.stopped
	d.mu.Unlock()
	close(done)
	<-stopped
}

func (d *Device) loop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		default:
		}
		msg, err := message.ReadInbound(d.link, pollTimeout)
		if errors.Is(err, message.ErrNoData) {
			continue
		}
		if err != nil {
			// link closed underneath us
			d.slog.Debug("device read failed, stopping", "error", err)
			return
		}
		d.record(msg)
		d.handle(msg)
	}
}

func (d *Device) record(msg message.Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, msg)
	if len(d.recent) > recentLimit {
		d.recent = d.recent[len(d.recent)-recentLimit:]
	}
	d.last[msg.Category()] = msg
}

// handle validates one command and sends its acknowledgement. Commands
// the board would refuse get no acknowledgement at all.
func (d *Device) handle(msg message.Inbound) {
	if !msg.Valid() {
		d.slog.Warn("invalid frame received", "frame", msg.String())
		return
	}
	data := msg.Data()
	var payload []byte
	switch msg.Opcode() {
	case message.OpChannelSetup:
		if len(data) < 1 {
			return
		}
		payload = []byte{data[0]}
	case message.OpSchedulerSetup:
		if len(data) < 3 {
			return
		}
		d.mu.Lock()
		d.nextSchedule++
		id := d.nextSchedule
		d.schedules[id] = &schedule{sync: data[0]}
		d.mu.Unlock()
		payload = []byte{id}
	case message.OpSchedulerSync:
		if len(data) < 2 {
			return
		}
		d.mu.Lock()
		sch, ok := d.schedules[data[0]]
		d.mu.Unlock()
		if !ok || sch.sync != data[1] {
			d.slog.Warn("sync refused", "schedule", data[0])
			return
		}
		payload = []byte{data[0]}
	case message.OpSchedulerHalt:
		if len(data) < 1 {
			return
		}
		payload = []byte{data[0]}
	case message.OpSchedulerDelete:
		if len(data) < 1 {
			return
		}
		d.mu.Lock()
		delete(d.schedules, data[0])
		d.mu.Unlock()
		payload = []byte{data[0]}
	case message.OpEventCreate:
		if len(data) < 9 {
			return
		}
		d.mu.Lock()
		sch, ok := d.schedules[data[0]]
		if !ok || sch.events >= maxEvents {
			d.mu.Unlock()
			d.slog.Warn("event create refused", "schedule", data[0])
			return
		}
		sch.events++
		id := sch.events
		d.mu.Unlock()
		payload = []byte{id}
	case message.OpEventEdit:
		if len(data) < 4 || data[0] < 1 || data[0] > maxEvents {
			return
		}
		payload = []byte{data[0]}
	case message.OpEventDelete:
		if len(data) < 1 {
			return
		}
		payload = []byte{data[0]}
	default:
		d.slog.Warn("unknown opcode", "frame", msg.String())
		return
	}
	d.sendAck(msg.Opcode(), payload)
}

func (d *Device) sendAck(op message.Opcode, payload []byte) {
	d.mu.Lock()
	drop, corrupt := d.dropNext, d.corruptNext
	d.dropNext, d.corruptNext = false, false
	d.mu.Unlock()
	if drop {
		return
	}
	frame := message.Encode(op, payload)
	if corrupt {
		frame[len(frame)-1] ^= 0xFF
	}
	if err := d.link.Write(frame); err != nil {
		d.slog.Debug("ack write failed", "error", err)
	}
}

// DropNextAck suppresses the next acknowledgement the device would
// send.
func (d *Device) DropNextAck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropNext = true
}

// CorruptNextAck breaks the checksum of the next acknowledgement.
func (d *Device) CorruptNextAck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corruptNext = true
}

// Recent returns a copy of the bounded recent-frame feed, oldest
// first.
func (d *Device) Recent() []message.Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]message.Inbound, len(d.recent))
	copy(out, d.recent)
	return out
}

// Last returns the most recent frame seen for the given category.
func (d *Device) Last(cat message.Category) (message.Inbound, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg, ok := d.last[cat]
	return msg, ok
}

// Schedules returns the ids of the schedules currently held.
func (d *Device) Schedules() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, 0, len(d.schedules))
	for id := range d.schedules {
		out = append(out, id)
	}
	return out
}
