package spdif

import (
	"context"
	"sync/atomic"
	"time"
)

// DetectionState is the state of a StreamDetector.
type DetectionState int32

const (
	DetectIdle     DetectionState = iota // Not armed.
	DetectWaiting                        // Armed, no signal yet.
	DetectDetected                       // Signal seen, not yet consumed by Wait.
	DetectTimedOut                       // Deadline passed, returning to idle.
)

// String returns the state name.
func (s DetectionState) String() string {
	switch s {
	case DetectIdle:
		return "idle"
	case DetectWaiting:
		return "waiting"
	case DetectDetected:
		return "detected"
	case DetectTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// StreamDetector hands a single "signal acquired" event from interrupt context to one waiting caller.
// It is single-slot: at most one arm/wait cycle is in flight at a time, and it is reusable afterwards.
type StreamDetector struct {
	state   atomic.Int32
	waiter  atomic.Bool
	locked  chan struct{}
	signals atomic.Uint64 // Accepted signals.
	ignored atomic.Uint64 // Signals raised while not waiting.
}

// NewStreamDetector returns an idle detector.
func NewStreamDetector() *StreamDetector {
	return &StreamDetector{
		locked: make(chan struct{}, 1),
	}
}

// State returns the current detection state.
func (d *StreamDetector) State() DetectionState {
	return DetectionState(d.state.Load())
}

// Arm prepares the detector to observe exactly one signal.
func (d *StreamDetector) Arm() error {
	if !d.state.CompareAndSwap(int32(DetectIdle), int32(DetectWaiting)) {
		return ErrAlreadyWaiting
	}

	return nil
}

// Signal reports an acquired signal. It is called from interrupt context and never blocks.
// It returns false when nobody is waiting, in which case the event is dropped.
func (d *StreamDetector) Signal() bool {
	if !d.state.CompareAndSwap(int32(DetectWaiting), int32(DetectDetected)) {
		d.ignored.Add(1)

		return false
	}

	// The slot is empty: only one Waiting->Detected transition happens per Arm.
	d.locked <- struct{}{}
	d.signals.Add(1)

	return true
}

// Wait blocks until the armed detector sees a signal, timeout elapses or ctx is done.
// It returns true on lock and false on timeout. In every case the detector is idle again on return.
func (d *StreamDetector) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if !d.waiter.CompareAndSwap(false, true) {
		return false, ErrAlreadyWaiting
	}
	defer d.waiter.Store(false)

	switch d.State() {
	case DetectWaiting, DetectDetected:
	default:
		return false, ErrNotArmed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d.locked:
		d.state.Store(int32(DetectIdle))

		return true, nil
	case <-timer.C:
		if d.state.CompareAndSwap(int32(DetectWaiting), int32(DetectTimedOut)) {
			d.state.Store(int32(DetectIdle))

			return false, nil
		}
	case <-ctx.Done():
		if d.state.CompareAndSwap(int32(DetectWaiting), int32(DetectIdle)) {
			return false, ctx.Err()
		}
	}

	// Signal won the race against the deadline; its token is in flight or already queued.
	<-d.locked
	d.state.Store(int32(DetectIdle))

	return true, nil
}

// Disarm returns an armed detector to idle without waiting, discarding any pending signal.
func (d *StreamDetector) Disarm() {
	if d.state.CompareAndSwap(int32(DetectWaiting), int32(DetectIdle)) {
		return
	}

	if d.state.Load() == int32(DetectDetected) {
		<-d.locked
		d.state.Store(int32(DetectIdle))
	}
}

// Stats returns the number of accepted and ignored signals.
func (d *StreamDetector) Stats() (accepted, ignored uint64) {
	return d.signals.Load(), d.ignored.Load()
}
