// Package adapter connects the BDM engine to real I/O: Raspberry Pi GPIO
// (go-rpio or periph), FTDI chips in bit-bang mode, or the built-in
// simulator.
package adapter

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// Port is an opened adapter: a bdm.Port that must be closed when done.
type Port interface {
	bdm.Port
	io.Closer
}

// Config selects and parameterises an adapter.
type Config struct {
	Kind InterfaceKind

	// Pins maps BDM lines to GPIO numbers (rpio, periph) or FTDI data bits
	// D0..D7 (ftdi).
	Pins bdm.PinSet

	// Serial picks one FTDI device when several are attached.
	Serial string
}

// ParseKind maps a user supplied adapter name onto an InterfaceKind.
func ParseKind(name string) (InterfaceKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sim", "simulator":
		return InterfaceKindSim, nil
	case "rpi", "rpio":
		return InterfaceKindRPIO, nil
	case "periph", "gpio":
		return InterfaceKindPeriph, nil
	case "ftdi":
		return InterfaceKindFTDI, nil
	}
	return InterfaceKindUnknown, errors.Errorf("unknown adapter %q (want simulator, rpio, periph or ftdi)", name)
}

// Open opens the adapter described by cfg.
func Open(cfg Config) (Port, error) {
	if cfg.Kind != InterfaceKindSim {
		if err := cfg.Pins.Validate(); err != nil {
			return nil, err
		}
	}
	switch cfg.Kind {
	case InterfaceKindSim:
		return bdm.NewSimTarget(), nil
	case InterfaceKindRPIO:
		return OpenRPIO(cfg.Pins)
	case InterfaceKindPeriph:
		return OpenPeriph(cfg.Pins)
	case InterfaceKindFTDI:
		return OpenFTDI(cfg.Serial, cfg.Pins)
	}
	return nil, errors.Errorf("adapter %q cannot be opened", cfg.Kind)
}
