package spdif

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/go-audio/audio"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for device events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller drives one S/PDIF device instance through open, configure, trigger and close.
// Calls on a Controller must be serialized by the caller. The interrupt handler runs concurrently
// and only touches the interrupt status and enable registers.
type Controller struct {
	platform      Platform
	logger        *slog.Logger
	detectTimeout time.Duration
	detector      *StreamDetector

	state   DeviceState
	mode    Mode
	fw      FirmwareConfig
	mem     []byte
	regs    *RegisterBlock
	clocks  []Clock // Enabled clocks, in enable order.
	irq     IRQLine
	rate    uint32
	width   uint32
	divider DividerCode
}

// New returns a closed Controller that obtains its resources from p.
func New(p Platform, opts ...Option) *Controller {
	c := &Controller{
		platform:      p,
		detectTimeout: DetectTimeout,
		detector:      NewStreamDetector(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	c.logger = c.logger.With("component", "spdif")

	return c
}

// State returns the current device state.
func (c *Controller) State() DeviceState {
	return c.state
}

// Mode returns the mode the device was opened in.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Rate returns the configured sample rate in Hz, or 0 if not configured.
func (c *Controller) Rate() uint32 {
	return c.rate
}

// Width returns the configured sample width in bits, or 0 if not configured.
func (c *Controller) Width() uint32 {
	return c.width
}

// Divider returns the programmed clock divider code.
func (c *Controller) Divider() DividerCode {
	return c.divider
}

// DAIName returns the name of the digital audio interface for the mode.
func (c *Controller) DAIName() string {
	if c.mode == ModeTransmit {
		return "xlnx_spdif_tx"
	}

	return "xlnx_spdif_rx"
}

// Open enables the device clocks, maps the registers and, in receive mode, installs the interrupt handler.
// On failure nothing stays enabled and the controller remains closed.
func (c *Controller) Open(mode Mode, fw FirmwareConfig) error {
	if c.state != StateClosed {
		return fmt.Errorf("open in state %s: %w", c.state, ErrInvalidState)
	}

	fw = fw.WithDefaults()
	if err := fw.Validate(mode); err != nil {
		return err
	}

	clocks, err := c.enableClocks(fw.Clocks.ordered())
	if err != nil {
		return err
	}

	mem, err := c.platform.Map(RegisterWindowSize)
	if err != nil {
		disableClocks(clocks)

		return fmt.Errorf("failed to map registers: %w", err)
	}

	regs, err := NewRegisterBlock(mem)
	if err != nil {
		_ = c.platform.Unmap(mem)
		disableClocks(clocks)

		return err
	}

	c.mode = mode
	c.fw = fw
	c.mem = mem
	c.regs = regs
	c.clocks = clocks

	if mode == ModeReceive {
		if err := c.requestIRQ(fw.IRQ); err != nil {
			_ = c.release()
			c.logger.Error("spdif rx irq request failed", "irq", fw.IRQ, "error", err)

			return err
		}
	}

	c.regs.Write32(XSPDIF_SOFT_RESET_REG, XSPDIF_SOFT_RESET_VAL)
	c.state = StateReset
	c.logger.Info("DAI registered", "dai", c.DAIName())

	return nil
}

func (c *Controller) enableClocks(names []string) ([]Clock, error) {
	clocks := make([]Clock, 0, len(names))

	for _, name := range names {
		clk, err := c.platform.Clock(name)
		if err == nil {
			err = clk.Enable()
		}

		if err != nil {
			disableClocks(clocks)
			c.logger.Error("failed to enable clock", "clock", name, "error", err)

			return nil, fmt.Errorf("%w: %s: %w", ErrClockUnavailable, name, err)
		}

		clocks = append(clocks, clk)
	}

	return clocks, nil
}

// disableClocks disables clocks in reverse enable order.
func disableClocks(clocks []Clock) {
	for _, clk := range slices.Backward(clocks) {
		clk.Disable()
	}
}

func (c *Controller) requestIRQ(name string) error {
	irq, err := c.platform.IRQ(name)
	if err != nil {
		return fmt.Errorf("no interrupt line %q: %w", name, err)
	}

	if err := irq.Request(c.handleIRQ); err != nil {
		return fmt.Errorf("failed to request interrupt %q: %w", name, err)
	}

	c.irq = irq

	return nil
}

// release frees everything Open acquired, in reverse order.
func (c *Controller) release() error {
	var errs []error

	if c.irq != nil {
		if err := c.irq.Free(); err != nil {
			errs = append(errs, fmt.Errorf("failed to free interrupt: %w", err))
		}
		c.irq = nil
	}

	c.detector.Disarm()
	c.regs = nil

	if c.mem != nil {
		if err := c.platform.Unmap(c.mem); err != nil {
			errs = append(errs, err)
		}
		c.mem = nil
	}

	disableClocks(c.clocks)
	c.clocks = nil
	c.rate = 0
	c.width = 0
	c.divider = 0

	return errors.Join(errs...)
}

// Close soft-resets the device, frees the interrupt and disables the clocks.
// Closing a closed controller does nothing.
func (c *Controller) Close() error {
	if c.state == StateClosed {
		return nil
	}

	c.regs.Write32(XSPDIF_SOFT_RESET_REG, XSPDIF_SOFT_RESET_VAL)
	err := c.release()
	c.state = StateClosed

	return err
}

// Reset soft-resets the device. The clock divider must be configured again afterwards.
func (c *Controller) Reset() error {
	if c.state == StateClosed {
		return fmt.Errorf("reset in state %s: %w", c.state, ErrInvalidState)
	}

	c.regs.Write32(XSPDIF_SOFT_RESET_REG, XSPDIF_SOFT_RESET_VAL)
	c.detector.Disarm()
	c.rate = 0
	c.width = 0
	c.divider = 0
	c.state = StateReset

	return nil
}

// Configure programs the clock divider for a 2-channel stream at rate Hz with samples of width bits.
// On failure the control register and the device state are left unchanged.
func (c *Controller) Configure(rate, width uint32) error {
	if c.state != StateReset && c.state != StateConfigured {
		return fmt.Errorf("configure in state %s: %w", c.state, ErrInvalidState)
	}

	if !slices.Contains(SupportedWidths, width) {
		return fmt.Errorf("%w: %d bits", ErrUnsupportedWidth, width)
	}

	if !slices.Contains(SupportedRates, rate) {
		return fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, rate)
	}

	// The bit clock always carries 32-bit AES subframes, whatever the sample width.
	audioRate := c.clocks[len(c.clocks)-1].Rate()
	code, err := ResolveDivider(audioRate, uint64(rate), MaxChannels, AESSampleWidth)
	if err != nil {
		return err
	}

	c.regs.UpdateField(XSPDIF_CONTROL_REG, XSPDIF_CONTROL_CLK_CFG_MASK, XSPDIF_CONTROL_CLK_CFG_SHIFT, uint32(code))
	c.rate = rate
	c.width = width
	c.divider = code
	c.state = StateConfigured
	c.logger.Debug("configured", "rate", rate, "width", width, "divider", code, "aud_clk", audioRate)

	return nil
}

// ConfigureFormat configures the device from an audio format. Only 2-channel formats are supported.
func (c *Controller) ConfigureFormat(f *audio.Format, width uint32) error {
	if f == nil {
		return fmt.Errorf("%w: nil format", ErrInvalidConfig)
	}

	if f.NumChannels != MaxChannels {
		return fmt.Errorf("%w: %d channels, need %d", ErrInvalidConfig, f.NumChannels, MaxChannels)
	}

	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, f.SampleRate)
	}

	return c.Configure(uint32(f.SampleRate), width)
}

// Trigger applies a stream command. Start, Resume and PauseRelease set the enable bit and
// run the stream; Stop, Suspend and PausePush clear it and return the device to Configured.
//
// In receive mode a start flushes the FIFO and waits up to the detection window for the
// receiver to report a channel status update. If none arrives, ErrNoSignalDetected is
// returned with the enable bit left set and the device Armed; stopping and starting again
// retries detection. Cancelling ctx ends the wait early with the same device state.
func (c *Controller) Trigger(ctx context.Context, cmd TriggerCommand) error {
	enable, ok := cmd.enables()
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidCommand, int(cmd))
	}

	if enable {
		return c.start(ctx, cmd)
	}

	return c.stop(cmd)
}

func (c *Controller) start(ctx context.Context, cmd TriggerCommand) error {
	switch c.state {
	case StateConfigured, StateArmed:
	default:
		return fmt.Errorf("%s in state %s: %w", cmd, c.state, ErrInvalidState)
	}

	if c.mode == ModeTransmit {
		c.regs.SetBits(XSPDIF_CONTROL_REG, XSPDIF_CONTROL_ENABLE_MASK)
		c.state = StateRunning

		return nil
	}

	// Arm before the notification path is re-enabled so no update can slip past the detector.
	if err := c.detector.Arm(); err != nil {
		return fmt.Errorf("failed to arm stream detector: %w", err)
	}

	c.regs.SetBits(XSPDIF_CONTROL_REG, XSPDIF_CONTROL_FIFO_FLUSH_MASK)
	c.regs.Write32(XSPDIF_IRQ_ENABLE_REG, XSPDIF_IRQ_STS_CH_STS_MASK)
	c.regs.Write32(XSPDIF_GLOBAL_IRQ_REG, XSPDIF_GLOBAL_IRQ_ENABLE_MASK)
	c.regs.SetBits(XSPDIF_CONTROL_REG, XSPDIF_CONTROL_ENABLE_MASK)
	c.state = StateArmed

	locked, err := c.detector.Wait(ctx, c.detectTimeout)
	if err != nil {
		return fmt.Errorf("stream detection aborted: %w", err)
	}

	if !locked {
		c.logger.Error("no streaming audio detected", "timeout", c.detectTimeout)

		return ErrNoSignalDetected
	}

	c.state = StateRunning

	return nil
}

func (c *Controller) stop(cmd TriggerCommand) error {
	if c.state != StateRunning && c.state != StateArmed {
		return fmt.Errorf("%s in state %s: %w", cmd, c.state, ErrInvalidState)
	}

	c.regs.ClearBits(XSPDIF_CONTROL_REG, XSPDIF_CONTROL_ENABLE_MASK)
	c.state = StateConfigured

	return nil
}

// handleIRQ acknowledges a channel status update and masks further updates until the next start.
// It runs in interrupt context.
func (c *Controller) handleIRQ() {
	regs := c.regs

	val := regs.Read32(XSPDIF_IRQ_STS_REG)
	if (val & XSPDIF_IRQ_STS_CH_STS_MASK) == 0 {
		return
	}

	regs.Write32(XSPDIF_IRQ_STS_REG, val&XSPDIF_IRQ_STS_CH_STS_MASK)
	regs.ClearBits(XSPDIF_IRQ_ENABLE_REG, XSPDIF_IRQ_STS_CH_STS_MASK)

	c.detector.Signal()
}

// ChannelStatus returns the channel status block latched by the receiver.
func (c *Controller) ChannelStatus() (ChannelStatus, error) {
	var cs ChannelStatus

	if c.state == StateClosed || c.mode != ModeReceive {
		return cs, fmt.Errorf("channel status needs an open receive device: %w", ErrInvalidState)
	}

	for i := range cs {
		cs[i] = c.regs.Read32(XSPDIF_CHAN_0_STS_REG + Register(4*i))
	}

	return cs, nil
}

// UserData returns the channel A user data words latched by the receiver.
func (c *Controller) UserData() ([ChannelStatusWords]uint32, error) {
	var data [ChannelStatusWords]uint32

	if c.state == StateClosed || c.mode != ModeReceive {
		return data, fmt.Errorf("user data needs an open receive device: %w", ErrInvalidState)
	}

	for i := range data {
		data[i] = c.regs.Read32(XSPDIF_CH_A_USER_DATA_REG_0 + Register(4*i))
	}

	return data, nil
}

// DetectorStats returns the number of channel status interrupts that released a waiting start,
// and the number that arrived with nobody waiting.
func (c *Controller) DetectorStats() (accepted, ignored uint64) {
	return c.detector.Stats()
}
