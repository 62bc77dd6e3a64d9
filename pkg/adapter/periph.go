package adapter

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// periphPin drives a pin registered with periph's gpioreg, which covers the
// Raspberry Pi, Allwinner boards and the generic Linux gpio drivers.
type periphPin struct {
	pin gpio.PinIO
}

func (p periphPin) Input() error {
	return p.pin.In(gpio.Float, gpio.NoEdge)
}

func (p periphPin) Output() error {
	return p.pin.Out(p.pin.Read())
}

func (p periphPin) Write(level bdm.Level) error {
	return p.pin.Out(gpio.Level(level))
}

func (p periphPin) Read() (bdm.Level, error) {
	return bdm.Level(p.pin.Read()), nil
}

// OpenPeriph initialises the periph host drivers and resolves each BDM line
// to the pin named GPIO<n>.
func OpenPeriph(set bdm.PinSet) (Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph: host init")
	}
	pins, err := mapPins(set, func(line bdm.Line, n int) (gpioPin, error) {
		name := fmt.Sprintf("GPIO%d", n)
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, errors.Errorf("periph: no pin %s for %s", name, line)
		}
		return periphPin{pin: pin}, nil
	})
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("periph: opened with pins %+v", set)
	return newPinPort(pins, func() error {
		for _, pin := range pins {
			if err := pin.(periphPin).pin.Halt(); err != nil {
				return err
			}
		}
		return nil
	}), nil
}
