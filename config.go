package spdif

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default clock names, as used by the devicetree binding.
const (
	ClockNameReference = "s_axi_aclk"  // AXI-lite register interface clock.
	ClockNameTxStream  = "s_axis_aclk" // AXI-stream slave clock (transmit).
	ClockNameRxStream  = "m_axis_aclk" // AXI-stream master clock (receive).
	ClockNameAudio     = "aud_clk_i"   // Audio reference clock for the bit clock divider.
)

// ClockNames names the gating clocks of a device, in enable order.
type ClockNames struct {
	Reference string `yaml:"reference"`
	Stream    string `yaml:"stream"`
	Audio     string `yaml:"audio"`
}

// ordered returns the names in enable order.
func (n ClockNames) ordered() []string {
	return []string{n.Reference, n.Stream, n.Audio}
}

// FirmwareConfig is the board description for one device instance.
type FirmwareConfig struct {
	Mode   Mode       `yaml:"mode"`
	Clocks ClockNames `yaml:"clocks"`
	IRQ    string     `yaml:"interrupt"` // Receive mode only.
}

// WithDefaults returns a copy with empty clock names replaced by the devicetree defaults for the mode.
func (fw FirmwareConfig) WithDefaults() FirmwareConfig {
	if fw.Clocks.Reference == "" {
		fw.Clocks.Reference = ClockNameReference
	}

	if fw.Clocks.Stream == "" {
		if fw.Mode == ModeTransmit {
			fw.Clocks.Stream = ClockNameTxStream
		} else {
			fw.Clocks.Stream = ClockNameRxStream
		}
	}

	if fw.Clocks.Audio == "" {
		fw.Clocks.Audio = ClockNameAudio
	}

	return fw
}

// Validate checks fw describes a device opened in mode.
func (fw FirmwareConfig) Validate(mode Mode) error {
	if mode != ModeReceive && mode != ModeTransmit {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(mode))
	}

	if fw.Mode != mode {
		return fmt.Errorf("%w: firmware mode %s does not match %s", ErrInvalidConfig, fw.Mode, mode)
	}

	for _, name := range fw.Clocks.ordered() {
		if name == "" {
			return fmt.Errorf("%w: missing clock name", ErrInvalidConfig)
		}
	}

	if fw.Clocks.Stream == fw.Clocks.Reference {
		return fmt.Errorf("%w: stream clock %q must be independent of the reference clock", ErrInvalidConfig, fw.Clocks.Stream)
	}

	if mode == ModeReceive && fw.IRQ == "" {
		return fmt.Errorf("%w: receive mode requires an interrupt line", ErrInvalidConfig)
	}

	return nil
}

// UnmarshalYAML accepts "receive"/"rx"/0 and "transmit"/"tx"/1.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mode must be a scalar", value.Line)
	}

	switch strings.ToLower(strings.TrimSpace(value.Value)) {
	case "receive", "rx", "capture", "0":
		*m = ModeReceive
	case "transmit", "tx", "playback", "1":
		*m = ModeTransmit
	default:
		return fmt.Errorf("line %d: unknown mode %q", value.Line, value.Value)
	}

	return nil
}

// MarshalYAML writes the mode name.
func (m Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// BoardConfig describes a device and the platform resources behind it.
type BoardConfig struct {
	Device     FirmwareConfig    `yaml:"device"`
	UIO        string            `yaml:"uio"`         // UIO device node, e.g. /dev/uio0.
	ClockRates map[string]uint64 `yaml:"clock-rates"` // Fixed rates in Hz keyed by clock name.
}

// ParseBoardConfig decodes a YAML board description and applies clock name defaults.
func ParseBoardConfig(data []byte) (*BoardConfig, error) {
	var cfg BoardConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse board config: %w", err)
	}

	cfg.Device = cfg.Device.WithDefaults()

	if err := cfg.Device.Validate(cfg.Device.Mode); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadBoardConfig reads and parses the board description at path.
func LoadBoardConfig(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	return ParseBoardConfig(data)
}

// Clocks builds fixed clocks from the configured rates.
func (b *BoardConfig) Clocks() ClockSet {
	set := make(ClockSet, len(b.ClockRates))
	for name, rate := range b.ClockRates {
		set[name] = NewFixedClock(name, rate)
	}

	return set
}
