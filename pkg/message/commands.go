package message

// Event types accepted by the board.
const (
	// StimEvent is the only event type the board currently documents.
	StimEvent byte = 0x03
)

// Channel-setup electrode constants from the reference deployment.
const (
	interphaseDelayHi = 0x00
	interphaseDelayLo = 0x64 // 100 us
	aspectRatio       = 0x11
	anodeCathode      = 0x01
)

// ChannelSetup builds the channel-setup command configuring one output
// channel with its amplitude and pulse-width ceilings.
func ChannelSetup(channel, maxAmplitude, maxPulseWidth byte) []byte {
	return Encode(OpChannelSetup, []byte{
		channel,
		maxAmplitude,
		maxPulseWidth,
		interphaseDelayHi,
		interphaseDelayLo,
		aspectRatio,
		anodeCathode,
	})
}

// CreateSchedule builds the scheduler-setup command. The sync byte names
// the schedule on the wire; periodMs is the update period in
// milliseconds. The acknowledgement carries the assigned schedule id in
// its first data byte.
func CreateSchedule(sync byte, periodMs uint16) []byte {
	return Encode(OpSchedulerSetup, []byte{
		sync,
		byte(periodMs >> 8),
		byte(periodMs & 0xFF),
	})
}

// SyncSchedule builds the scheduler-sync command that tells the board to
// start honoring the identified schedule.
func SyncSchedule(scheduleID, sync byte) []byte {
	return Encode(OpSchedulerSync, []byte{scheduleID, sync})
}

// HaltSchedule builds the scheduler-halt command.
func HaltSchedule(scheduleID byte) []byte {
	return Encode(OpSchedulerHalt, []byte{scheduleID})
}

// DeleteSchedule builds the scheduler-delete command.
func DeleteSchedule(scheduleID byte) []byte {
	return Encode(OpSchedulerDelete, []byte{scheduleID})
}

// EventParams carries the per-event fields embedded in event-create and
// event-edit commands.
type EventParams struct {
	Channel    byte
	PulseWidth byte
	Amplitude  byte
	EventType  byte
	Priority   byte
	Zone       byte
}

// CreateEvent builds the event-create command binding a new event to the
// given schedule. delayMs is the board-side inter-pulse delay. The
// acknowledgement carries the assigned event id in its first data byte.
func CreateEvent(scheduleID byte, delayMs uint16, p EventParams) []byte {
	return Encode(OpEventCreate, []byte{
		scheduleID,
		byte(delayMs >> 8),
		byte(delayMs & 0xFF),
		p.Priority,
		p.EventType,
		p.Zone,
		p.Channel,
		p.PulseWidth,
		p.Amplitude,
	})
}

// EditEvent builds the event-edit command for the event id assigned at
// creation time. The id doubles as the edit slot (1..4) the board echoes
// back in its acknowledgement.
func EditEvent(eventID, pulseWidth, amplitude, zone byte) []byte {
	return Encode(OpEventEdit, []byte{eventID, pulseWidth, amplitude, zone})
}

// DeleteEvent builds the event-delete command.
func DeleteEvent(eventID byte) []byte {
	return Encode(OpEventDelete, []byte{eventID})
}
