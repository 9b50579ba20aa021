package spdif

import (
	"fmt"
	"sync"
)

// Platform supplies the hardware resources named by firmware configuration.
type Platform interface {
	// Map maps the device register window of at least size bytes.
	Map(size int) ([]byte, error)
	// Unmap releases a window returned by Map.
	Unmap(mem []byte) error
	// Clock looks up a gating clock by name.
	Clock(name string) (Clock, error)
	// IRQ looks up an interrupt line by name.
	IRQ(name string) (IRQLine, error)
}

// Clock is a gateable clock source.
type Clock interface {
	// Enable prepares and ungates the clock.
	Enable() error
	// Disable gates the clock. It undoes exactly one successful Enable.
	Disable()
	// Rate returns the clock frequency in Hz.
	Rate() uint64
}

// IRQLine is an interrupt source.
type IRQLine interface {
	// Request installs handler. The handler runs in interrupt context and must not block.
	Request(handler func()) error
	// Free removes the handler. No handler invocation is in progress when Free returns.
	Free() error
}

// FixedClock is a clock with a fixed rate and a reference-counted enable, as described by board data.
type FixedClock struct {
	name  string
	rate  uint64
	mu    sync.Mutex
	count int
}

// NewFixedClock returns a gated clock running at rate Hz.
func NewFixedClock(name string, rate uint64) *FixedClock {
	return &FixedClock{name: name, rate: rate}
}

// Enable increments the enable count.
func (c *FixedClock) Enable() error {
	if c.rate == 0 {
		return fmt.Errorf("clock %s has no rate", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++

	return nil
}

// Disable decrements the enable count.
func (c *FixedClock) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count > 0 {
		c.count--
	}
}

// Rate returns the clock frequency in Hz.
func (c *FixedClock) Rate() uint64 {
	return c.rate
}

// Enabled reports whether the clock has at least one enable reference.
func (c *FixedClock) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count > 0
}

// Name returns the clock name.
func (c *FixedClock) Name() string {
	return c.name
}

// ClockSet resolves clocks by name.
type ClockSet map[string]Clock

// Clock returns the named clock.
func (s ClockSet) Clock(name string) (Clock, error) {
	clk, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("clock %q not found", name)
	}

	return clk, nil
}
