package adapter

import (
	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

const (
	VendorIDFTDI = 0x0403

	ProductIDFT232R  = 0x6001
	ProductIDFT2232H = 0x6010
	ProductIDFT232H  = 0x6014

	// Vendor requests understood by FTDI chips.
	ftdiReqReset      = 0x00
	ftdiReqLatency    = 0x09
	ftdiReqSetBitMode = 0x0B
	ftdiReqReadPins   = 0x0C

	ftdiModeReset        = 0x00
	ftdiModeAsyncBitBang = 0x01

	ftdiOutRequest = 0x40 // vendor, host to device
	ftdiInRequest  = 0xC0 // vendor, device to host

	// Interface A; requests address it as index 1.
	ftdiIndex       = 1
	ftdiOutEndpoint = 2
)

// ftdiDevice is the USB surface the bit-bang port needs.
type ftdiDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Write(data []byte) (int, error)
	Close() error
}

// FTDIPort drives BDM lines on the D0..D7 data bits of an FTDI chip in
// asynchronous bit-bang mode. Every level change is one USB transfer, so the
// effective clock is slow but independent of host timing.
type FTDIPort struct {
	dev  ftdiDevice
	bits map[bdm.Line]uint8

	mask uint8
	out  uint8
}

func newFTDIPort(dev ftdiDevice, set bdm.PinSet) (*FTDIPort, error) {
	p := &FTDIPort{dev: dev, bits: make(map[bdm.Line]uint8)}
	for _, line := range bdm.AllLines() {
		n := set.Pin(line)
		if n < 0 || n > 7 {
			return nil, errors.Errorf("ftdi: %s on D%d, want D0..D7", line, n)
		}
		p.bits[line] = 1 << uint(n)
	}
	if _, err := dev.Control(ftdiOutRequest, ftdiReqReset, 0, ftdiIndex, nil); err != nil {
		return nil, errors.Wrap(err, "ftdi: reset")
	}
	if _, err := dev.Control(ftdiOutRequest, ftdiReqLatency, 1, ftdiIndex, nil); err != nil {
		return nil, errors.Wrap(err, "ftdi: set latency")
	}
	if err := p.setBitMode(ftdiModeAsyncBitBang); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FTDIPort) setBitMode(mode uint8) error {
	val := uint16(mode)<<8 | uint16(p.mask)
	if _, err := p.dev.Control(ftdiOutRequest, ftdiReqSetBitMode, val, ftdiIndex, nil); err != nil {
		return errors.Wrap(err, "ftdi: set bit mode")
	}
	return nil
}

func (p *FTDIPort) SetDirection(line bdm.Line, dir bdm.Direction) error {
	bit, ok := p.bits[line]
	if !ok {
		return errors.Errorf("ftdi: line %s is not mapped", line)
	}
	if dir == bdm.DirectionOutput {
		p.mask |= bit
	} else {
		p.mask &^= bit
	}
	return p.setBitMode(ftdiModeAsyncBitBang)
}

func (p *FTDIPort) WriteLevel(line bdm.Line, level bdm.Level) error {
	bit, ok := p.bits[line]
	if !ok {
		return errors.Errorf("ftdi: line %s is not mapped", line)
	}
	if p.mask&bit == 0 {
		return errors.Errorf("ftdi: line %s is not an output", line)
	}
	if level {
		p.out |= bit
	} else {
		p.out &^= bit
	}
	if _, err := p.dev.Write([]byte{p.out}); err != nil {
		return errors.Wrap(err, "ftdi: write pins")
	}
	return nil
}

func (p *FTDIPort) ReadLevel(line bdm.Line) (bdm.Level, error) {
	bit, ok := p.bits[line]
	if !ok {
		return bdm.Low, errors.Errorf("ftdi: line %s is not mapped", line)
	}
	buf := make([]byte, 1)
	n, err := p.dev.Control(ftdiInRequest, ftdiReqReadPins, 0, ftdiIndex, buf)
	if err != nil {
		return bdm.Low, errors.Wrap(err, "ftdi: read pins")
	}
	if n != 1 {
		return bdm.Low, errors.Errorf("ftdi: read pins returned %d bytes", n)
	}
	return bdm.Level(buf[0]&bit != 0), nil
}

// Close leaves bit-bang mode and releases the device.
func (p *FTDIPort) Close() error {
	p.mask = 0
	err := p.setBitMode(ftdiModeReset)
	if cerr := p.dev.Close(); err == nil {
		err = cerr
	}
	return err
}

// usbFTDI binds ftdiDevice to a claimed gousb interface.
type usbFTDI struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	ep   *gousb.OutEndpoint
}

func (u *usbFTDI) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return u.dev.Control(rType, request, val, idx, data)
}

func (u *usbFTDI) Write(data []byte) (int, error) {
	return u.ep.Write(data)
}

func (u *usbFTDI) Close() error {
	if u.intf != nil {
		u.intf.Close()
	}
	var err error
	if u.cfg != nil {
		err = u.cfg.Close()
	}
	if u.dev != nil {
		if cerr := u.dev.Close(); err == nil {
			err = cerr
		}
	}
	u.ctx.Close()
	return err
}

func isFTDI(desc *gousb.DeviceDesc) bool {
	if uint16(desc.Vendor) != VendorIDFTDI {
		return false
	}
	switch uint16(desc.Product) {
	case ProductIDFT232R, ProductIDFT2232H, ProductIDFT232H:
		return true
	}
	return false
}

// OpenFTDI opens the first FTDI chip, or the one whose serial number matches
// serial, and puts it into bit-bang mode with the lines on the given data
// bits.
func OpenFTDI(serial string, set bdm.PinSet) (Port, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isFTDI(desc)
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, errors.Wrap(err, "ftdi: enumerate")
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && serialMatches(d, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if serial != "" {
			return nil, errors.Errorf("ftdi: no device with serial %q", serial)
		}
		return nil, errors.New("ftdi: no device found")
	}

	u := &usbFTDI{ctx: ctx, dev: dev}
	if err := dev.SetAutoDetach(true); err != nil {
		glog.Warningf("ftdi: auto detach: %v", err)
	}
	if u.cfg, err = dev.Config(1); err != nil {
		u.Close()
		return nil, errors.Wrap(err, "ftdi: get config")
	}
	if u.intf, err = u.cfg.Interface(0, 0); err != nil {
		u.Close()
		return nil, errors.Wrap(err, "ftdi: claim interface")
	}
	if u.ep, err = u.intf.OutEndpoint(ftdiOutEndpoint); err != nil {
		u.Close()
		return nil, errors.Wrap(err, "ftdi: open endpoint")
	}

	p, err := newFTDIPort(u, set)
	if err != nil {
		u.Close()
		return nil, err
	}
	glog.V(1).Infof("ftdi: opened %s with pins %+v", dev, set)
	return p, nil
}

func serialMatches(dev *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := dev.SerialNumber()
	return err == nil && s == serial
}
