package belt

import (
	"sync/atomic"
	"time"
)

// SampleWindow is the measurement window of the rate estimator.
const SampleWindow = time.Second

// RateEstimator converts encoder pulses into revolutions per minute.
//
// OnPulse may be called from any goroutine; the counter is an atomic
// cell with a single incrementing writer side and a single
// swap-to-zero reader side, so no pulse is ever lost or double
// counted across the window boundary. Everything else is owned by the
// loop goroutine.
type RateEstimator struct {
	pulses atomic.Uint64

	ppr        int
	lastSample time.Time
	rpm        float64
}

// NewRateEstimator creates an estimator for the given pulses per
// revolution of the output shaft.
func NewRateEstimator(pulsesPerRevolution int) *RateEstimator {
	return &RateEstimator{ppr: pulsesPerRevolution}
}

// Bind subscribes the estimator to a pulse source. This is the
// explicit registration step standing in for attaching an interrupt.
func (e *RateEstimator) Bind(src PulseSource) *RateEstimator {
	src.Subscribe(e.OnPulse)
	return e
}

// OnPulse counts one encoder edge. Bounded time, no blocking.
func (e *RateEstimator) OnPulse() {
	e.pulses.Add(1)
}

// Sample recomputes the estimate when a full window has elapsed since
// the previous sample. The window is measured against the estimator's
// own last-sample time, not aligned to the wall clock. Returns the
// current estimate and whether this call recomputed it.
func (e *RateEstimator) Sample(now time.Time) (float64, bool) {
	if e.lastSample.IsZero() {
		e.lastSample = now
		return e.rpm, false
	}
	if now.Sub(e.lastSample) < SampleWindow {
		return e.rpm, false
	}
	count := e.pulses.Swap(0)
	e.rpm = float64(count) / float64(e.ppr) * 60.0
	e.lastSample = now
	return e.rpm, true
}

// RPM returns the last computed estimate. Stale between samples, by
// contract; never negative.
func (e *RateEstimator) RPM() float64 {
	return e.rpm
}
