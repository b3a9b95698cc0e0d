// Package virtualstim emulates the device side of the stimulation
// board wire protocol.
//
// A Device speaks over any link.Link, which makes it the natural
// counterpart for a Stimulator wired to the other end of an in-memory
// pipe: integration tests and demos run the full command and
// acknowledgement exchange without hardware attached.
//
// # Behavior
//
// The device validates every inbound frame, assigns schedule ids and
// per-schedule event ids (1 to 4), and acknowledges each well-formed
// command the way the board does, echoing the relevant id in the
// acknowledgement data. Invalid frames and sync commands carrying the
// wrong signature are recorded but never acknowledged, so the driving
// side observes them as missing acknowledgements.
//
// # Inspection and fault injection
//
// The device keeps a bounded feed of recent inbound frames plus the
// last frame seen per category, and offers two fault hooks for failure
// testing: DropNextAck suppresses the next acknowledgement entirely,
// CorruptNextAck sends it with a broken checksum.
package virtualstim
