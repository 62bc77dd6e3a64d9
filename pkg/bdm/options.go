package bdm

import (
	"fmt"
	"time"
)

// Config holds the engine configuration.
type Config struct {
	// Timing shapes each DSCLK cycle.
	Timing Timing

	// Delayer implements the waits; defaults to SleepDelayer.
	Delayer Delayer

	// MaxRetries bounds the not-ready polls after the first result fetch.
	MaxRetries int

	// SyncWindow bounds the clock cycles the sync handshake may spend.
	SyncWindow int

	// ResetHold is how long RESET stays asserted.
	ResetHold time.Duration

	// ResetSettle is the wait after releasing RESET.
	ResetSettle time.Duration

	// BreakpointHold is how long BKPT stays asserted to halt the core.
	BreakpointHold time.Duration
}

func defaultConfig() Config {
	return Config{
		Timing:         DefaultTiming,
		Delayer:        SleepDelayer{},
		MaxRetries:     16,
		SyncWindow:     1000,
		ResetHold:      100 * time.Millisecond,
		ResetSettle:    100 * time.Millisecond,
		BreakpointHold: time.Millisecond,
	}
}

func (c Config) validate() error {
	if err := c.Timing.Validate(); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("bdm: negative retry ceiling %d", c.MaxRetries)
	}
	if c.SyncWindow < PacketBits {
		return fmt.Errorf("bdm: sync window %d shorter than one packet", c.SyncWindow)
	}
	if c.ResetHold < 0 || c.ResetSettle < 0 || c.BreakpointHold < 0 {
		return fmt.Errorf("bdm: negative reset or breakpoint timing")
	}
	return nil
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithTiming sets the clock timing constants.
//
// Example:
//
//	s, err := bdm.NewSession(port, bdm.WithTiming(bdm.Timing{High: 2 * time.Microsecond}))
func WithTiming(t Timing) Option {
	return func(c *Config) {
		c.Timing = t
	}
}

// WithDelayer replaces the wait implementation, e.g. SpinDelayer for
// tighter pulses.
func WithDelayer(d Delayer) Option {
	return func(c *Config) {
		if d != nil {
			c.Delayer = d
		}
	}
}

// WithMaxRetries sets the not-ready retry ceiling.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithSyncWindow sets the clock budget of the sync handshake.
func WithSyncWindow(clocks int) Option {
	return func(c *Config) {
		c.SyncWindow = clocks
	}
}

// WithResetTiming sets the RESET hold and settle intervals.
func WithResetTiming(hold, settle time.Duration) Option {
	return func(c *Config) {
		c.ResetHold = hold
		c.ResetSettle = settle
	}
}

// WithBreakpointHold sets how long BKPT is asserted when halting the core.
func WithBreakpointHold(d time.Duration) Option {
	return func(c *Config) {
		c.BreakpointHold = d
	}
}
