// Package spdif provides a Go control core for the Xilinx S/PDIF (AES3/IEC 60958) audio interface,
// reached through a memory-mapped register window, gated clocks and an interrupt line.
package spdif

import (
	"errors"
	"time"
)

// Register is a byte offset into the device register window.
type Register uint32

const (
	XSPDIF_GLOBAL_IRQ_REG       Register = 0x1C
	XSPDIF_IRQ_STS_REG          Register = 0x20
	XSPDIF_IRQ_ENABLE_REG       Register = 0x28
	XSPDIF_SOFT_RESET_REG       Register = 0x40
	XSPDIF_CONTROL_REG          Register = 0x44
	XSPDIF_CHAN_0_STS_REG       Register = 0x4C // First of 6 channel status words.
	XSPDIF_CH_A_USER_DATA_REG_0 Register = 0x64 // First of 6 channel A user data words.
)

// RegisterWindowSize is the minimum size in bytes of the mapped register window.
const RegisterWindowSize = 0x80

// Register bitfields and magic values.
const (
	XSPDIF_GLOBAL_IRQ_ENABLE_MASK  uint32 = 1 << 31
	XSPDIF_IRQ_STS_CH_STS_MASK     uint32 = 1 << 5
	XSPDIF_SOFT_RESET_VAL          uint32 = 0xA
	XSPDIF_CONTROL_ENABLE_MASK     uint32 = 1 << 0
	XSPDIF_CONTROL_FIFO_FLUSH_MASK uint32 = 1 << 1
	XSPDIF_CONTROL_CLK_CFG_MASK    uint32 = 0xF << XSPDIF_CONTROL_CLK_CFG_SHIFT
	XSPDIF_CONTROL_CLK_CFG_SHIFT          = 2
)

const (
	// MaxChannels is the number of channels carried by an AES3 stream.
	MaxChannels = 2
	// AESSampleWidth is the subframe width in bits used for bit clock derivation, regardless of sample format.
	AESSampleWidth = 32
	// ChannelStatusWords is the number of 32-bit words in the 192-bit channel status block.
	ChannelStatusWords = 6
	// DetectTimeout bounds the wait for a channel status update when starting a capture stream.
	DetectTimeout = 40 * time.Millisecond
)

// SupportedRates lists the sample rates in Hz the transceiver supports.
var SupportedRates = []uint32{32000, 44100, 48000, 88200, 96000, 176400, 192000}

// SupportedWidths lists the sample widths in bits (S16_LE and S24_LE).
var SupportedWidths = []uint32{16, 24}

// Mode selects the direction of the device. It is fixed for the life of a device instance.
type Mode int

const (
	ModeReceive  Mode = 0 // Capture, matches xlnx,spdif-mode = <0>.
	ModeTransmit Mode = 1 // Playback, matches xlnx,spdif-mode = <1>.
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeReceive:
		return "receive"
	case ModeTransmit:
		return "transmit"
	default:
		return "unknown"
	}
}

// TriggerCommand is a stream lifecycle command issued by the audio framework.
type TriggerCommand int

const (
	TriggerStop TriggerCommand = iota
	TriggerStart
	TriggerPausePush
	TriggerPauseRelease
	TriggerSuspend
	TriggerResume
)

var triggerCommandNames = map[TriggerCommand]string{
	TriggerStop:         "stop",
	TriggerStart:        "start",
	TriggerPausePush:    "pause-push",
	TriggerPauseRelease: "pause-release",
	TriggerSuspend:      "suspend",
	TriggerResume:       "resume",
}

// String returns the command name.
func (c TriggerCommand) String() string {
	if name, ok := triggerCommandNames[c]; ok {
		return name
	}

	return "unknown"
}

// enables reports whether the command sets the enable bit. The second result is false for unknown commands.
func (c TriggerCommand) enables() (bool, bool) {
	switch c {
	case TriggerStart, TriggerResume, TriggerPauseRelease:
		return true, true
	case TriggerStop, TriggerSuspend, TriggerPausePush:
		return false, true
	default:
		return false, false
	}
}

// DeviceState is the externally visible state of a Controller.
type DeviceState int32

const (
	StateClosed     DeviceState = iota // No resources held.
	StateReset                         // Clocks running, hardware soft-reset.
	StateConfigured                    // Clock divider programmed.
	StateArmed                         // Enable bit set, no signal lock confirmed yet.
	StateRunning                       // Stream running.
)

var deviceStateNames = map[DeviceState]string{
	StateClosed:     "closed",
	StateReset:      "reset",
	StateConfigured: "configured",
	StateArmed:      "armed",
	StateRunning:    "running",
}

// String returns the state name.
func (s DeviceState) String() string {
	if name, ok := deviceStateNames[s]; ok {
		return name
	}

	return "unknown"
}

var (
	// ErrClockUnavailable indicates a required clock source could not be obtained or enabled.
	ErrClockUnavailable = errors.New("clock unavailable")

	// ErrUnsupportedRate indicates the sample rate has no matching clock divider.
	ErrUnsupportedRate = errors.New("unsupported sample rate")

	// ErrUnsupportedWidth indicates the sample width is not supported by the transceiver.
	ErrUnsupportedWidth = errors.New("unsupported sample width")

	// ErrNoSignalDetected indicates no channel status update arrived within the detection window.
	ErrNoSignalDetected = errors.New("no streaming audio detected")

	// ErrAlreadyWaiting indicates the stream detector is already armed or has a waiter.
	ErrAlreadyWaiting = errors.New("stream detector already waiting")

	// ErrNotArmed indicates a wait on a stream detector that was not armed.
	ErrNotArmed = errors.New("stream detector not armed")

	// ErrInvalidState indicates the operation is not valid in the current device state.
	ErrInvalidState = errors.New("invalid device state")

	// ErrInvalidCommand indicates an unknown trigger command.
	ErrInvalidCommand = errors.New("invalid trigger command")

	// ErrInvalidConfig indicates incomplete or inconsistent firmware configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)
