// Package stim implements the stimulator core: the per-board state
// machines that turn amplitude and pulse-width commands into correctly
// sequenced board messages and consume the resulting acknowledgements.
//
// # Composition
//
//	Stimulator ── owns 1..2 ──▶ Scheduler ── owns 0..4 ──▶ Event ── references ──▶ Channel
//
// A Channel describes one stimulation output (a muscle) with its
// amplitude and pulse-width ceilings. An Event is the board-resident
// stimulation instruction bound to one Channel; its event id is
// assigned by the board at creation time and is the handle for every
// later edit or delete. A Scheduler owns the ordered events of one
// board and the schedule's sync/halt lifecycle. The Stimulator façade
// routes per-channel commands to the right board and aggregates
// results.
//
// # Update loop
//
// The expected driver is a single real-time loop ticking at a fixed
// cadence: WriteAmp/WritePW mutate cached event state only, then one
// Update call flushes changed events to the boards, snapshots the
// externally visible amplitude tables, and drains and validates every
// pending inbound frame. Any invalid frame or failed edit disables the
// whole stimulator. Continuing to drive a board whose protocol state
// is unconfirmed risks unintended stimulation, so there are no retries.
//
// # Safety
//
// Disable is the single synchronization point for shutdown: it halts
// every scheduler and closes every link best-effort, logging teardown
// failures rather than raising them. A failure on either board tears
// down both.
package stim
