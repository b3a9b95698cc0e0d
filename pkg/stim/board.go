package stim

import (
	"sync/atomic"
	"time"

	"github.com/fes-protocol/fes-go/pkg/link"
	"github.com/fes-protocol/fes-go/pkg/log"
	"github.com/fes-protocol/fes-go/pkg/message"
)

// tap emits protocol events to the configured monitor logger, stamping
// each with a stimulator-wide sequence number.
type tap struct {
	logger log.Logger
	seq    atomic.Uint64
}

func newTap(logger log.Logger) *tap {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &tap{logger: logger}
}

func (t *tap) next() uint64 { return t.seq.Add(1) }

func (t *tap) frame(boardIdx uint8, connID string, dir log.Direction, opcode string, data []byte, valid bool) {
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		Seq:          t.next(),
		ConnectionID: connID,
		Board:        boardIdx,
		Direction:    dir,
		Category:     log.CategoryFrame,
		Frame:        &log.FrameEvent{Opcode: opcode, Data: data, Valid: valid},
	})
}

func (t *tap) state(boardIdx uint8, entity, oldState, newState, reason string) {
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Seq:       t.next(),
		Board:     boardIdx,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (t *tap) failure(boardIdx uint8, msg, context string, frame []byte) {
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Seq:       t.next(),
		Board:     boardIdx,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: msg, Context: context, Frame: frame},
	})
}

// board couples one link with its index and the event tap. All frame
// I/O of schedulers and events goes through it so every frame in either
// direction is observable.
type board struct {
	link  link.Link
	index uint8
	tap   *tap
}

// send transmits one command frame and reports it to the tap.
func (b *board) send(op message.Opcode, frame []byte) error {
	if err := b.link.Write(frame); err != nil {
		b.tap.failure(b.index, err.Error(), "write "+op.String(), frame)
		return err
	}
	b.tap.frame(b.index, b.link.ID(), log.DirectionOut, op.String(), frame, true)
	return nil
}

// recv reads one inbound frame and reports it to the tap. ErrNoData
// passes through untouched for idle-link detection.
func (b *board) recv(timeout time.Duration) (message.Inbound, error) {
	msg, err := message.ReadInbound(b.link, timeout)
	if err != nil {
		return message.Inbound{}, err
	}
	b.tap.frame(b.index, b.link.ID(), log.DirectionIn, msg.Category().String(), msg.Bytes(), msg.Valid())
	return msg, nil
}

// roundTrip sends a command, waits the board's processing delay, then
// reads the acknowledgement.
func (b *board) roundTrip(op message.Opcode, frame []byte, delay, timeout time.Duration) (message.Inbound, error) {
	if err := b.send(op, frame); err != nil {
		return message.Inbound{}, err
	}
	time.Sleep(delay)
	return b.recv(timeout)
}
