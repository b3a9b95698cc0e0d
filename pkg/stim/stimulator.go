package stim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fes-protocol/fes-go/pkg/link"
	"github.com/fes-protocol/fes-go/pkg/log"
	"github.com/fes-protocol/fes-go/pkg/message"
)

// Config describes a Stimulator before Enable.
//
// Exactly one of Ports and Links must be set. Ports names serial
// devices to open on Enable; Links supplies already opened links and
// exists mainly so tests can wire the stimulator to an in-memory pipe.
type Config struct {
	// Name identifies the stimulator in operational logs.
	Name string
	// Ports holds one serial device path per board, max MaxBoards.
	Ports []string
	// Links holds one pre-opened link per board, max MaxBoards.
	Links []link.Link
	// Channels lists every stimulation output across all boards.
	Channels []Channel
	// Logger taps the protocol traffic. Nil means no tap.
	Logger log.Logger
	// Slog receives operational logging. Nil means slog.Default().
	Slog *slog.Logger
	// Delay is the wait between sending a command and reading its
	// acknowledgement. Zero means DefaultDelay.
	Delay time.Duration
	// AckTimeout bounds each acknowledgement read. Zero means
	// DefaultAckTimeout.
	AckTimeout time.Duration
}

func (c *Config) boardCount() int {
	if len(c.Links) > 0 {
		return len(c.Links)
	}
	return len(c.Ports)
}

func (c *Config) validate() error {
	n := c.boardCount()
	if len(c.Ports) > 0 && len(c.Links) > 0 {
		return fmt.Errorf("%w: both ports and links set", ErrInvalidConfig)
	}
	if n < 1 || n > MaxBoards {
		return fmt.Errorf("%w: need 1 to %d boards, got %d", ErrInvalidConfig, MaxBoards, n)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidConfig)
	}
	seen := map[string]bool{}
	perBoard := make([]int, n)
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("%w: channel without name", ErrInvalidConfig)
		}
		if seen[ch.Name] {
			return fmt.Errorf("%w: duplicate channel %q", ErrInvalidConfig, ch.Name)
		}
		seen[ch.Name] = true
		if int(ch.Board) >= n {
			return fmt.Errorf("%w: channel %q on board %d but only %d boards configured", ErrInvalidConfig, ch.Name, ch.Board, n)
		}
		perBoard[ch.Board]++
		if perBoard[ch.Board] > MaxEventsPerBoard {
			return fmt.Errorf("%w: more than %d channels on board %d", ErrInvalidConfig, MaxEventsPerBoard, ch.Board)
		}
	}
	return nil
}

// Stimulator is the façade over one or two boards. It owns one
// Scheduler per board, routes channel writes to the owning board, and
// enforces the teardown policy: any protocol failure on either board
// disables the whole stimulator.
//
// One control goroutine drives the stimulator: Enable, AddEvents,
// WriteAmp, WritePW, Update, and Disable mutate event and link state
// and must not run concurrently with each other. The snapshot
// accessors (Amplitudes, PulseWidths, MaxAmplitudes, MaxPulseWidths)
// and Enabled are safe to call from other goroutines; the internal
// mutex guards the snapshot tables and the enabled flag and is never
// held across link I/O.
type Stimulator struct {
	name       string
	slog       *slog.Logger
	tap        *tap
	delay      time.Duration
	ackTimeout time.Duration

	ports    []string
	channels []Channel

	boards     []*board
	schedulers []*Scheduler
	events     map[string]*Event

	mu          sync.Mutex
	enabled     bool
	amplitudes  map[string]uint
	pulsewidths map[string]uint
	maxAmps     map[string]uint
	maxPWs      map[string]uint
}

// New builds a Stimulator from cfg. Links stay closed until Enable,
// unless cfg.Links supplied them pre-opened.
func New(cfg Config) (*Stimulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sl := cfg.Slog
	if sl == nil {
		sl = slog.Default()
	}
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	timeout := cfg.AckTimeout
	if timeout == 0 {
		timeout = DefaultAckTimeout
	}
	s := &Stimulator{
		name:        cfg.Name,
		slog:        sl.With("stimulator", cfg.Name),
		tap:         newTap(cfg.Logger),
		delay:       delay,
		ackTimeout:  timeout,
		ports:       cfg.Ports,
		channels:    cfg.Channels,
		events:      map[string]*Event{},
		amplitudes:  map[string]uint{},
		pulsewidths: map[string]uint{},
		maxAmps:     map[string]uint{},
		maxPWs:      map[string]uint{},
	}
	for _, ch := range cfg.Channels {
		s.maxAmps[ch.Name] = ch.MaxAmplitude
		s.maxPWs[ch.Name] = ch.MaxPulseWidth
	}
	for i, l := range cfg.Links {
		s.boards = append(s.boards, &board{link: l, index: uint8(i), tap: s.tap})
	}
	return s, nil
}

// Enable opens the board links and runs the channel setup handshake
// for every configured channel. Any failure tears everything back
// down; the stimulator is never left partially enabled.
func (s *Stimulator) Enable() error {
	if s.isEnabled() {
		return nil
	}
	if len(s.ports) > 0 {
		// a previous failed attempt may have left stale boards behind;
		// every port-based Enable reopens from scratch
		for _, b := range s.boards {
			if b != nil && b.link != nil {
				b.link.Close()
			}
		}
		s.boards = nil
		for i, port := range s.ports {
			l, err := link.OpenSerial(port)
			if err != nil {
				s.teardown("link open failed")
				return fmt.Errorf("enable %s: %w", s.name, err)
			}
			s.boards = append(s.boards, &board{link: l, index: uint8(i), tap: s.tap})
		}
	}
	for _, ch := range s.channels {
		b := s.boards[ch.Board]
		if err := ch.setup(b, s.delay, s.ackTimeout); err != nil {
			s.slog.Error("channel setup failed", "channel", ch.Name, "board", ch.Board, "error", err)
			s.teardown("channel setup failed")
			return fmt.Errorf("enable %s: %w", s.name, err)
		}
	}
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	s.tap.state(0, "stimulator", "disabled", "enabled", "all channels set up")
	s.slog.Info("stimulator enabled", "boards", len(s.boards), "channels", len(s.channels))
	return nil
}

// Disable halts every scheduler and closes every link. Teardown
// failures are logged, not returned; Disable always leaves the
// stimulator disabled. Like the other mutating methods it belongs to
// the control goroutine; stop any background ticking before calling
// it from elsewhere.
func (s *Stimulator) Disable() {
	s.mu.Lock()
	wasEnabled := s.enabled
	s.enabled = false
	s.mu.Unlock()
	s.teardown("disable requested")
	if wasEnabled {
		s.tap.state(0, "stimulator", "enabled", "disabled", "disable requested")
		s.slog.Info("stimulator disabled")
	}
}

// teardown is the shared halt-and-close path behind Disable and the
// failure policy. Every step is best effort.
func (s *Stimulator) teardown(reason string) {
	for _, sch := range s.schedulers {
		if sch == nil {
			continue
		}
		if err := sch.Halt(); err != nil {
			s.slog.Warn("halt during teardown failed", "schedule", sch.ScheduleID(), "error", err)
		}
		sch.drain()
	}
	for _, b := range s.boards {
		if b == nil || b.link == nil {
			continue
		}
		if err := b.link.Close(); err != nil && !errors.Is(err, link.ErrClosed) {
			s.slog.Warn("link close during teardown failed", "board", b.index, "error", err)
		}
	}
	s.slog.Debug("teardown complete", "reason", reason)
}

// fail disables the whole stimulator in response to a protocol
// failure on any board. One bad frame on either board tears down both;
// driving a board with unconfirmed protocol state is unsafe.
func (s *Stimulator) fail(boardIndex uint8, msg string, frame []byte) {
	s.slog.Error("protocol failure, disabling", "board", boardIndex, "detail", msg)
	s.tap.failure(boardIndex, msg, "stimulator self-disable", frame)
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	s.teardown(msg)
}

func (s *Stimulator) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// periodFromFrequency converts a tick frequency in Hz to a schedule
// period in milliseconds, rounding to the nearest. Non-positive
// frequencies fall back to the default period.
func periodFromFrequency(frequencyHz float64) uint16 {
	if frequencyHz <= 0 {
		return uint16(DefaultPeriod / time.Millisecond)
	}
	ms := math.Round(1000 / frequencyHz)
	if ms < 1 {
		ms = 1
	}
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	return uint16(ms)
}

// CreateScheduler provisions one schedule per board with the given
// sync signature. Creation is all or nothing; a failure on any board
// disables the stimulator.
func (s *Stimulator) CreateScheduler(sync byte, frequencyHz float64) error {
	if !s.isEnabled() {
		return fmt.Errorf("create scheduler: %w", ErrNotEnabled)
	}
	period := periodFromFrequency(frequencyHz)
	created := make([]*Scheduler, len(s.boards))
	for i, b := range s.boards {
		sch := newScheduler(b, sync, period, s.delay, s.ackTimeout)
		if err := sch.create(); err != nil {
			s.fail(b.index, "scheduler setup failed", nil)
			return fmt.Errorf("create scheduler on board %d: %w", i, err)
		}
		created[i] = sch
	}
	s.schedulers = created
	s.slog.Info("schedulers created", "sync", sync, "period_ms", period)
	return nil
}

// AddEvents creates one stimulation event per configured channel, in
// configuration order, each on the channel's own board. Every event
// starts at zero amplitude and pulse width.
func (s *Stimulator) AddEvents() error {
	if !s.isEnabled() {
		return fmt.Errorf("add events: %w", ErrNotEnabled)
	}
	if len(s.schedulers) == 0 {
		return fmt.Errorf("add events: %w: no scheduler", ErrNotEnabled)
	}
	for _, ch := range s.channels {
		sch := s.schedulers[ch.Board]
		ev, err := sch.AddEvent(ch, uint16(s.delay/time.Millisecond), 0, 0)
		if err != nil {
			s.fail(ch.Board, "event creation failed", nil)
			return fmt.Errorf("add events: %w", err)
		}
		s.events[ch.Name] = ev
	}
	s.slog.Info("events created", "count", len(s.events))
	return nil
}

// Begin starts every board's schedule.
func (s *Stimulator) Begin() error {
	if !s.isEnabled() {
		return fmt.Errorf("begin: %w", ErrNotEnabled)
	}
	for i, sch := range s.schedulers {
		if sch == nil {
			continue
		}
		if err := sch.Begin(); err != nil {
			s.fail(uint8(i), "schedule sync failed", nil)
			return fmt.Errorf("begin: %w", err)
		}
	}
	s.slog.Info("stimulation running")
	return nil
}

// WriteAmp caches a new amplitude for the named channel. No I/O
// happens until Update. Values above the channel ceiling are rejected.
func (s *Stimulator) WriteAmp(channel string, value uint) error {
	return s.write(channel, value, true)
}

// WritePW caches a new pulse width for the named channel. Same
// contract as WriteAmp.
func (s *Stimulator) WritePW(channel string, value uint) error {
	return s.write(channel, value, false)
}

func (s *Stimulator) write(channel string, value uint, amp bool) error {
	if !s.isEnabled() {
		return fmt.Errorf("write %q: %w", channel, ErrNotEnabled)
	}
	ev, ok := s.events[channel]
	if !ok {
		return fmt.Errorf("write %q: %w", channel, ErrChannelNotFound)
	}
	s.mu.Lock()
	var max uint
	if amp {
		max = s.maxAmps[channel]
	} else {
		max = s.maxPWs[channel]
	}
	s.mu.Unlock()
	if value > max {
		return fmt.Errorf("write %q: %w: %d exceeds ceiling %d", channel, ErrLimitExceeded, value, max)
	}
	if amp {
		ev.SetAmplitude(value)
	} else {
		ev.SetPulseWidth(value)
	}
	return nil
}

// UpdateMaxAmp changes the named channel's amplitude ceiling. Purely
// local; no device round trip.
func (s *Stimulator) UpdateMaxAmp(channel string, value uint) error {
	return s.updateMax(channel, value, true)
}

// UpdateMaxPW changes the named channel's pulse width ceiling.
func (s *Stimulator) UpdateMaxPW(channel string, value uint) error {
	return s.updateMax(channel, value, false)
}

func (s *Stimulator) updateMax(channel string, value uint, amp bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amp {
		if _, ok := s.maxAmps[channel]; !ok {
			return fmt.Errorf("update max for %q: %w", channel, ErrChannelNotFound)
		}
		s.maxAmps[channel] = value
	} else {
		if _, ok := s.maxPWs[channel]; !ok {
			return fmt.Errorf("update max for %q: %w", channel, ErrChannelNotFound)
		}
		s.maxPWs[channel] = value
	}
	return nil
}

// Update is the per-tick flush. It snapshots event state into the
// externally visible tables, pushes pending edits through every
// scheduler, then drains and validates all queued inbound frames on
// every link. Any failed edit or invalid inbound frame disables the
// whole stimulator.
func (s *Stimulator) Update() error {
	if !s.isEnabled() {
		return fmt.Errorf("update: %w", ErrNotEnabled)
	}

	s.mu.Lock()
	for name, ev := range s.events {
		s.amplitudes[name] = ev.Amplitude()
		s.pulsewidths[name] = ev.PulseWidth()
	}
	s.mu.Unlock()

	for i, sch := range s.schedulers {
		if sch == nil {
			continue
		}
		if err := sch.Update(); err != nil {
			s.fail(uint8(i), "scheduler update failed", nil)
			return fmt.Errorf("update: %w", err)
		}
	}

	for _, b := range s.boards {
		for {
			msg, err := b.recv(drainTimeout)
			if errors.Is(err, message.ErrNoData) {
				break
			}
			if err != nil {
				s.fail(b.index, "inbound read failed", nil)
				return fmt.Errorf("update: drain board %d: %w: %v", b.index, ErrProtocolViolation, err)
			}
			if !msg.Valid() {
				s.fail(b.index, "invalid inbound frame", msg.Bytes())
				return fmt.Errorf("update: board %d: %w: invalid frame", b.index, ErrProtocolViolation)
			}
		}
	}
	return nil
}

// Amplitudes returns a copy of the last snapshotted amplitude table,
// keyed by channel name. Safe to call from a reader thread.
func (s *Stimulator) Amplitudes() map[string]uint { return s.snapshot(&s.amplitudes) }

// PulseWidths returns a copy of the last snapshotted pulse width
// table.
func (s *Stimulator) PulseWidths() map[string]uint { return s.snapshot(&s.pulsewidths) }

// MaxAmplitudes returns a copy of the current amplitude ceilings.
func (s *Stimulator) MaxAmplitudes() map[string]uint { return s.snapshot(&s.maxAmps) }

// MaxPulseWidths returns a copy of the current pulse width ceilings.
func (s *Stimulator) MaxPulseWidths() map[string]uint { return s.snapshot(&s.maxPWs) }

func (s *Stimulator) snapshot(m *map[string]uint) map[string]uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint, len(*m))
	for k, v := range *m {
		out[k] = v
	}
	return out
}

// Enabled reports whether the stimulator is currently enabled.
func (s *Stimulator) Enabled() bool { return s.isEnabled() }

// Name returns the configured stimulator name.
func (s *Stimulator) Name() string { return s.name }

// Channels returns the configured channels in configuration order.
func (s *Stimulator) Channels() []Channel { return s.channels }

// Schedulers returns the per-board schedulers, nil before
// CreateScheduler.
func (s *Stimulator) Schedulers() []*Scheduler { return s.schedulers }
