package stim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChannelConfig is the YAML shape of one channel entry.
type ChannelConfig struct {
	Name          string `yaml:"name"`
	Channel       byte   `yaml:"channel"`
	Board         uint8  `yaml:"board"`
	MaxAmplitude  uint   `yaml:"max_amplitude"`
	MaxPulseWidth uint   `yaml:"max_pulse_width"`
}

// FileConfig is the YAML shape of a stimulator configuration file.
//
//	name: left-leg
//	ports: [/dev/ttyUSB0, /dev/ttyUSB1]
//	sync: 0xAA
//	frequency_hz: 40
//	channels:
//	  - {name: quadriceps, channel: 1, board: 0, max_amplitude: 100, max_pulse_width: 250}
type FileConfig struct {
	Name        string          `yaml:"name"`
	Ports       []string        `yaml:"ports"`
	Sync        byte            `yaml:"sync"`
	FrequencyHz float64         `yaml:"frequency_hz"`
	Channels    []ChannelConfig `yaml:"channels"`
}

// LoadConfig reads and validates a stimulator configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg := fc.StimulatorConfig()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &fc, nil
}

// StimulatorConfig converts the file form into a Config. Logger, Slog,
// and timing fields stay at their zero values for the caller to fill.
func (fc *FileConfig) StimulatorConfig() Config {
	cfg := Config{
		Name:  fc.Name,
		Ports: fc.Ports,
	}
	for _, cc := range fc.Channels {
		cfg.Channels = append(cfg.Channels, Channel{
			Name:          cc.Name,
			ChannelID:     cc.Channel,
			Board:         cc.Board,
			MaxAmplitude:  cc.MaxAmplitude,
			MaxPulseWidth: cc.MaxPulseWidth,
		})
	}
	return cfg
}
