package spdif_test

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/spdif"
)

const (
	testIRQ      = "spdif-irq"
	testAudioClk = 24576000 // 512 * 48 kHz
)

// clockLog records clock enables and disables in order, e.g. "+aud_clk_i".
type clockLog struct {
	mu     sync.Mutex
	events []string
}

func (l *clockLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *clockLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

// testClock is a clock that records its transitions and can be made to fail.
type testClock struct {
	name    string
	rate    uint64
	fail    bool
	log     *clockLog
	enabled int
}

func (c *testClock) Enable() error {
	if c.fail {
		return errors.New("simulated clock failure")
	}

	c.enabled++
	c.log.add("+" + c.name)

	return nil
}

func (c *testClock) Disable() {
	c.enabled--
	c.log.add("-" + c.name)
}

func (c *testClock) Rate() uint64 {
	return c.rate
}

// testIRQLine delivers interrupts on demand. Free waits for a running handler to finish.
type testIRQLine struct {
	mu        sync.Mutex
	handler   func()
	requested int
	freed     int
}

func (l *testIRQLine) Request(handler func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler != nil {
		return errors.New("already requested")
	}

	l.handler = handler
	l.requested++

	return nil
}

func (l *testIRQLine) Free() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = nil
	l.freed++

	return nil
}

// Fire runs the handler, if any, and reports whether one was installed.
func (l *testIRQLine) Fire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler == nil {
		return false
	}

	l.handler()

	return true
}

// testPlatform backs a Controller with an in-memory register window.
type testPlatform struct {
	mem      []byte
	regs     *spdif.RegisterBlock // Test-side view of mem, playing the hardware.
	clocks   map[string]*testClock
	log      *clockLog
	irq      *testIRQLine
	mapped   int
	unmapped int
}

func newTestPlatform() *testPlatform {
	mem := make([]byte, spdif.RegisterWindowSize)

	regs, err := spdif.NewRegisterBlock(mem)
	if err != nil {
		panic(err)
	}

	p := &testPlatform{
		mem:    mem,
		regs:   regs,
		clocks: make(map[string]*testClock),
		log:    &clockLog{},
		irq:    &testIRQLine{},
	}

	p.addClock(spdif.ClockNameReference, 100000000)
	p.addClock(spdif.ClockNameTxStream, 100000000)
	p.addClock(spdif.ClockNameRxStream, 100000000)
	p.addClock(spdif.ClockNameAudio, testAudioClk)

	return p
}

func (p *testPlatform) addClock(name string, rate uint64) *testClock {
	clk := &testClock{name: name, rate: rate, log: p.log}
	p.clocks[name] = clk

	return clk
}

func (p *testPlatform) Map(size int) ([]byte, error) {
	if size > len(p.mem) {
		return nil, fmt.Errorf("window too small")
	}

	p.mapped++

	return p.mem, nil
}

func (p *testPlatform) Unmap(mem []byte) error {
	p.unmapped++

	return nil
}

func (p *testPlatform) Clock(name string) (spdif.Clock, error) {
	clk, ok := p.clocks[name]
	if !ok {
		return nil, fmt.Errorf("clock %q not found", name)
	}

	return clk, nil
}

func (p *testPlatform) IRQ(name string) (spdif.IRQLine, error) {
	if name != testIRQ {
		return nil, fmt.Errorf("interrupt %q not found", name)
	}

	return p.irq, nil
}

// raiseChannelStatus latches a channel status update in the status register and runs the handler.
func (p *testPlatform) raiseChannelStatus() bool {
	p.regs.SetBits(spdif.XSPDIF_IRQ_STS_REG, spdif.XSPDIF_IRQ_STS_CH_STS_MASK)

	return p.irq.Fire()
}

func (p *testPlatform) anyClockEnabled() bool {
	for _, clk := range p.clocks {
		if clk.enabled != 0 {
			return true
		}
	}

	return false
}

func receiveConfig() spdif.FirmwareConfig {
	return spdif.FirmwareConfig{Mode: spdif.ModeReceive, IRQ: testIRQ}
}

func transmitConfig() spdif.FirmwareConfig {
	return spdif.FirmwareConfig{Mode: spdif.ModeTransmit}
}
