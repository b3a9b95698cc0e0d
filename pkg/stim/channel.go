package stim

import (
	"fmt"
	"time"

	"github.com/fes-protocol/fes-go/pkg/message"
)

// Channel describes one stimulation output. Identity is the (Board,
// ChannelID) pair; Name is the key callers use to update limits.
type Channel struct {
	// Name is the human-readable label, e.g. the muscle name.
	Name string

	// ChannelID is the board-level output number.
	ChannelID byte

	// Board is the board index (0 or 1) the output lives on.
	Board uint8

	// MaxAmplitude is the board-enforced amplitude ceiling (mA).
	// Runtime amplitudes must never exceed it.
	MaxAmplitude uint

	// MaxPulseWidth is the board-enforced pulse-width ceiling (µs).
	MaxPulseWidth uint
}

// setup performs the channel-setup round trip that registers the
// channel and its ceilings with the board.
func (c Channel) setup(b *board, delay, timeout time.Duration) error {
	frame := message.ChannelSetup(c.ChannelID, byte(c.MaxAmplitude), byte(c.MaxPulseWidth))
	ack, err := b.roundTrip(message.OpChannelSetup, frame, delay, timeout)
	if err != nil {
		return fmt.Errorf("channel %q setup: %w: %v", c.Name, ErrDeviceNack, err)
	}
	switch ack.Category() {
	case message.CategoryChannelSetupAck:
		return nil
	case message.CategoryInvalid:
		b.tap.failure(b.index, "invalid channel setup ack", "channel "+c.Name, ack.Bytes())
		return fmt.Errorf("channel %q setup: %w", c.Name, ErrDeviceNack)
	default:
		b.tap.failure(b.index, "unexpected ack "+ack.Category().String(), "channel "+c.Name, ack.Bytes())
		return fmt.Errorf("channel %q setup: %w: got %v", c.Name, ErrProtocolViolation, ack.Category())
	}
}
