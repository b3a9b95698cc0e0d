package stim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fes-protocol/fes-go/pkg/link"
	"github.com/fes-protocol/fes-go/pkg/message"
)

func newTestStimulator(t *testing.T, channels []Channel, boards int) (*Stimulator, []*fakeLink) {
	t.Helper()
	links := make([]link.Link, boards)
	fakes := make([]*fakeLink, boards)
	for i := range links {
		fakes[i] = &fakeLink{}
		links[i] = fakes[i]
	}
	s, err := New(Config{
		Name:       "test",
		Links:      links,
		Channels:   channels,
		Delay:      testDelay,
		AckTimeout: testTimeout,
	})
	require.NoError(t, err)
	return s, fakes
}

func fourChannels() []Channel {
	return []Channel{
		{Name: "quadriceps", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "hamstring", ChannelID: 2, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "tibialis", ChannelID: 3, Board: 0, MaxAmplitude: 80, MaxPulseWidth: 250},
		{Name: "gastroc", ChannelID: 4, Board: 0, MaxAmplitude: 80, MaxPulseWidth: 250},
	}
}

// runStimulator walks a stimulator through enable, scheduler creation,
// event creation, and begin, scripting every acknowledgement.
func runStimulator(t *testing.T, s *Stimulator, l *fakeLink, channels []Channel) {
	t.Helper()
	for _, ch := range channels {
		l.ack(message.OpChannelSetup, ch.ChannelID)
	}
	require.NoError(t, s.Enable())

	l.ack(message.OpSchedulerSetup, 1)
	require.NoError(t, s.CreateScheduler(0xAA, 40))

	for i := range channels {
		l.ack(message.OpEventCreate, byte(i+1))
	}
	require.NoError(t, s.AddEvents())

	l.ack(message.OpSchedulerSync)
	require.NoError(t, s.Begin())
}

func TestStimulatorEnableDisable(t *testing.T) {
	channels := fourChannels()
	s, fakes := newTestStimulator(t, channels, 1)

	for _, ch := range channels {
		fakes[0].ack(message.OpChannelSetup, ch.ChannelID)
	}
	require.NoError(t, s.Enable())
	assert.True(t, s.Enabled())

	s.Disable()
	assert.False(t, s.Enabled())
	assert.True(t, fakes[0].closed)

	err := s.WriteAmp("quadriceps", 10)
	assert.ErrorIs(t, err, ErrNotEnabled)
	err = s.Update()
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestStimulatorEnableFailureDisablesAll(t *testing.T) {
	channels := fourChannels()
	s, fakes := newTestStimulator(t, channels, 1)

	// ack only the first channel setup; the second gets nothing
	fakes[0].ack(message.OpChannelSetup, 1)
	err := s.Enable()
	require.ErrorIs(t, err, ErrDeviceNack)
	assert.False(t, s.Enabled())
	assert.True(t, fakes[0].closed)
}

func TestStimulatorEnableRetryAfterOpenFailure(t *testing.T) {
	channels := []Channel{
		{Name: "left", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "right", ChannelID: 1, Board: 1, MaxAmplitude: 100, MaxPulseWidth: 250},
	}
	s, err := New(Config{
		Name:       "test",
		Ports:      []string{"/dev/ptmx", "/dev/does-not-exist"},
		Channels:   channels,
		Delay:      testDelay,
		AckTimeout: testTimeout,
	})
	require.NoError(t, err)

	// the first port opens and the second does not; a retry must start
	// over from an empty board list instead of reusing the partial one
	err = s.Enable()
	require.ErrorIs(t, err, link.ErrOpenFailed)
	err = s.Enable()
	require.ErrorIs(t, err, link.ErrOpenFailed)
	assert.False(t, s.Enabled())
}

func TestStimulatorWriteLimits(t *testing.T) {
	channels := fourChannels()
	s, fakes := newTestStimulator(t, channels, 1)
	runStimulator(t, s, fakes[0], channels)

	require.NoError(t, s.WriteAmp("quadriceps", 100))
	err := s.WriteAmp("quadriceps", 101)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	err = s.WritePW("tibialis", 251)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	err = s.WriteAmp("deltoid", 10)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	// raising the ceiling admits the previously rejected value
	require.NoError(t, s.UpdateMaxAmp("quadriceps", 120))
	assert.NoError(t, s.WriteAmp("quadriceps", 101))

	err = s.UpdateMaxPW("deltoid", 300)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestStimulatorSingleEditFlush(t *testing.T) {
	channels := fourChannels()
	s, fakes := newTestStimulator(t, channels, 1)
	runStimulator(t, s, fakes[0], channels)

	events := s.Schedulers()[0].Events()
	require.Len(t, events, 4)
	seen := map[byte]bool{}
	for _, ev := range events {
		assert.False(t, seen[ev.EventID()], "duplicate event id %d", ev.EventID())
		seen[ev.EventID()] = true
	}

	require.NoError(t, s.WriteAmp("quadriceps", 40))

	writes := fakes[0].writeCount()
	fakes[0].ack(message.OpEventEdit, events[0].EventID())
	require.NoError(t, s.Update())
	assert.Equal(t, 1, fakes[0].writeCount()-writes, "one dirty channel must produce exactly one edit frame")

	assert.Equal(t, uint(40), s.Amplitudes()["quadriceps"])
	assert.Equal(t, uint(0), s.Amplitudes()["hamstring"])

	// steady state sends nothing
	writes = fakes[0].writeCount()
	require.NoError(t, s.Update())
	assert.Equal(t, writes, fakes[0].writeCount())
}

func TestStimulatorInvalidFrameDisablesBoth(t *testing.T) {
	channels := []Channel{
		{Name: "left", ChannelID: 1, Board: 0, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "right", ChannelID: 1, Board: 1, MaxAmplitude: 100, MaxPulseWidth: 250},
	}
	s, fakes := newTestStimulator(t, channels, 2)

	fakes[0].ack(message.OpChannelSetup, 1)
	fakes[1].ack(message.OpChannelSetup, 1)
	require.NoError(t, s.Enable())

	fakes[0].ack(message.OpSchedulerSetup, 1)
	fakes[1].ack(message.OpSchedulerSetup, 1)
	require.NoError(t, s.CreateScheduler(0xAA, 40))

	fakes[0].ack(message.OpEventCreate, 1)
	fakes[1].ack(message.OpEventCreate, 1)
	require.NoError(t, s.AddEvents())

	fakes[0].ack(message.OpSchedulerSync)
	fakes[1].ack(message.OpSchedulerSync)
	require.NoError(t, s.Begin())

	// a corrupt frame on board 1 tears down board 0 as well
	fakes[1].corrupt(message.OpEventEdit, 1)
	err := s.Update()
	require.ErrorIs(t, err, ErrProtocolViolation)
	assert.False(t, s.Enabled())
	assert.True(t, fakes[0].closed)
	assert.True(t, fakes[1].closed)

	err = s.Update()
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestStimulatorDeviceNackDisables(t *testing.T) {
	channels := fourChannels()
	s, fakes := newTestStimulator(t, channels, 1)
	runStimulator(t, s, fakes[0], channels)

	// dirty event but no acknowledgement scripted for the edit
	require.NoError(t, s.WriteAmp("quadriceps", 40))
	err := s.Update()
	require.ErrorIs(t, err, ErrDeviceNack)
	assert.False(t, s.Enabled())
}

func TestConfigValidate(t *testing.T) {
	valid := fourChannels()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no boards", Config{Channels: valid}},
		{"too many boards", Config{Ports: []string{"a", "b", "c"}, Channels: valid}},
		{"ports and links", Config{Ports: []string{"a"}, Links: []link.Link{&fakeLink{}}, Channels: valid}},
		{"no channels", Config{Ports: []string{"a"}}},
		{"unnamed channel", Config{Ports: []string{"a"}, Channels: []Channel{{ChannelID: 1}}}},
		{"duplicate name", Config{Ports: []string{"a"}, Channels: []Channel{
			{Name: "x", ChannelID: 1}, {Name: "x", ChannelID: 2},
		}}},
		{"channel on missing board", Config{Ports: []string{"a"}, Channels: []Channel{
			{Name: "x", ChannelID: 1, Board: 1},
		}}},
		{"too many channels per board", Config{Ports: []string{"a"}, Channels: []Channel{
			{Name: "a", ChannelID: 1}, {Name: "b", ChannelID: 2}, {Name: "c", ChannelID: 3},
			{Name: "d", ChannelID: 4}, {Name: "e", ChannelID: 5},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stim.yaml")
	data := `name: left-leg
ports: [/dev/ttyUSB0]
sync: 0xAA
frequency_hz: 40
channels:
  - {name: quadriceps, channel: 1, board: 0, max_amplitude: 100, max_pulse_width: 250}
  - {name: hamstring, channel: 2, board: 0, max_amplitude: 60, max_pulse_width: 200}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "left-leg", fc.Name)
	assert.Equal(t, byte(0xAA), fc.Sync)
	assert.Equal(t, 40.0, fc.FrequencyHz)

	cfg := fc.StimulatorConfig()
	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "quadriceps", cfg.Channels[0].Name)
	assert.Equal(t, uint(250), cfg.Channels[0].MaxPulseWidth)
	assert.Equal(t, uint8(0), cfg.Channels[1].Board)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ports: [/dev/ttyUSB0]\n"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
