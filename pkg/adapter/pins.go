package adapter

import (
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// gpioPin is the per-pin surface shared by the GPIO back ends.
type gpioPin interface {
	Input() error
	Output() error
	Write(level bdm.Level) error
	Read() (bdm.Level, error)
}

// pinPort implements bdm.Port over one gpioPin per line. It refuses to
// drive a line that was not configured as an output.
type pinPort struct {
	pins  map[bdm.Line]gpioPin
	dirs  map[bdm.Line]bdm.Direction
	close func() error
}

func newPinPort(pins map[bdm.Line]gpioPin, close func() error) *pinPort {
	return &pinPort{
		pins:  pins,
		dirs:  make(map[bdm.Line]bdm.Direction, len(pins)),
		close: close,
	}
}

func (p *pinPort) pin(line bdm.Line) (gpioPin, error) {
	pin, ok := p.pins[line]
	if !ok {
		return nil, errors.Errorf("line %s is not mapped", line)
	}
	return pin, nil
}

func (p *pinPort) SetDirection(line bdm.Line, dir bdm.Direction) error {
	pin, err := p.pin(line)
	if err != nil {
		return err
	}
	if dir == bdm.DirectionOutput {
		err = pin.Output()
	} else {
		err = pin.Input()
	}
	if err != nil {
		return err
	}
	p.dirs[line] = dir
	return nil
}

func (p *pinPort) WriteLevel(line bdm.Line, level bdm.Level) error {
	pin, err := p.pin(line)
	if err != nil {
		return err
	}
	if p.dirs[line] != bdm.DirectionOutput {
		return errors.Errorf("line %s is not an output", line)
	}
	return pin.Write(level)
}

func (p *pinPort) ReadLevel(line bdm.Line) (bdm.Level, error) {
	pin, err := p.pin(line)
	if err != nil {
		return bdm.Low, err
	}
	return pin.Read()
}

func (p *pinPort) Close() error {
	if p.close == nil {
		return nil
	}
	err := p.close()
	p.close = nil
	return err
}

func mapPins(set bdm.PinSet, open func(line bdm.Line, n int) (gpioPin, error)) (map[bdm.Line]gpioPin, error) {
	pins := make(map[bdm.Line]gpioPin, len(bdm.AllLines()))
	for _, line := range bdm.AllLines() {
		pin, err := open(line, set.Pin(line))
		if err != nil {
			return nil, err
		}
		pins[line] = pin
	}
	return pins, nil
}
