package bdm

import (
	"fmt"
	"time"
)

// Timing holds the constants that shape one DSCLK cycle. All values are lower
// bounds: a Delayer may overshoot under scheduler jitter, which only stretches
// the cycle. The ColdFire serial interface is static, so a stretched cycle is
// still a valid one; a shortened one never happens.
type Timing struct {
	// Setup is how long DSI is held before the rising edge.
	Setup time.Duration
	// High is the DSCLK high time.
	High time.Duration
	// Low is the DSCLK low time after the falling edge, before DSO is sampled.
	Low time.Duration
}

// DefaultTiming gives a nominal 1 MHz clock with 500ns data setup.
var DefaultTiming = Timing{
	Setup: 500 * time.Nanosecond,
	High:  time.Microsecond,
	Low:   time.Microsecond,
}

// Period returns the minimum length of one clock cycle.
func (t Timing) Period() time.Duration {
	return t.Setup + t.High + t.Low
}

// Validate rejects negative durations.
func (t Timing) Validate() error {
	if t.Setup < 0 || t.High < 0 || t.Low < 0 {
		return fmt.Errorf("bdm: negative timing %+v", t)
	}
	return nil
}

// Delayer waits at least the given duration. Implementations pick their own
// tradeoff between accuracy and CPU use.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer yields to the scheduler. Sub-microsecond requests usually turn
// into tens of microseconds, which is slow but valid.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

// SpinDelayer busy-waits on the monotonic clock. It keeps pulses close to the
// requested width at the cost of a spinning core; preemption can still stretch
// a pulse.
type SpinDelayer struct{}

func (SpinDelayer) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
