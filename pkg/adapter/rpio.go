package adapter

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// rpioPin drives a BCM2835-family GPIO through /dev/gpiomem.
type rpioPin struct {
	pin rpio.Pin
}

func (p rpioPin) Input() error {
	p.pin.Input()
	return nil
}

func (p rpioPin) Output() error {
	p.pin.Output()
	return nil
}

func (p rpioPin) Write(level bdm.Level) error {
	if level {
		p.pin.Write(rpio.High)
	} else {
		p.pin.Write(rpio.Low)
	}
	return nil
}

func (p rpioPin) Read() (bdm.Level, error) {
	return bdm.Level(p.pin.Read() == rpio.High), nil
}

// OpenRPIO maps the GPIO registers and binds the BDM lines to BCM pin
// numbers. Only one rpio adapter may be open per process.
func OpenRPIO(set bdm.PinSet) (Port, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpio: open gpio memory")
	}
	pins, err := mapPins(set, func(line bdm.Line, n int) (gpioPin, error) {
		return rpioPin{pin: rpio.Pin(n)}, nil
	})
	if err != nil {
		rpio.Close()
		return nil, err
	}
	glog.V(1).Infof("rpio: opened with pins %+v", set)
	return newPinPort(pins, rpio.Close), nil
}
