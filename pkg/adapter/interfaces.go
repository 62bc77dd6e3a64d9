package adapter

import (
	"context"
	"fmt"
	"os"

	"github.com/google/gousb"
)

// InterfaceKind categorizes adapter families.
type InterfaceKind string

const (
	InterfaceKindFTDI    InterfaceKind = "ftdi"
	InterfaceKindRPIO    InterfaceKind = "rpio"
	InterfaceKindPeriph  InterfaceKind = "periph"
	InterfaceKindSim     InterfaceKind = "simulator"
	InterfaceKindUnknown InterfaceKind = "unknown"
)

// InterfaceInfo describes a detected adapter.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
	Path        string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.VendorID != 0 {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return string(i.Kind)
}

// gpioMemPath is where the Raspberry Pi kernel exposes GPIO registers.
var gpioMemPath = "/dev/gpiomem"

// DiscoverInterfaces lists FTDI chips on the USB bus and the local GPIO
// block when one is present. The simulator is always appended so the tools
// work without hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return isFTDI(desc)
	})
	for _, dev := range devs {
		info := InterfaceInfo{
			Kind:        InterfaceKindFTDI,
			Description: ftdiDescription(uint16(dev.Desc.Product)),
			VendorID:    uint16(dev.Desc.Vendor),
			ProductID:   uint16(dev.Desc.Product),
			Path:        fmt.Sprintf("bus %d addr %d", dev.Desc.Bus, dev.Desc.Address),
		}
		if s, serr := dev.SerialNumber(); serr == nil {
			info.Serial = s
		}
		results = append(results, info)
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	if _, err := os.Stat(gpioMemPath); err == nil {
		results = append(results,
			InterfaceInfo{Kind: InterfaceKindRPIO, Description: "Raspberry Pi GPIO (go-rpio)", Path: gpioMemPath},
			InterfaceInfo{Kind: InterfaceKindPeriph, Description: "Raspberry Pi GPIO (periph)", Path: gpioMemPath},
		)
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, ctx.Err()
}

func ftdiDescription(pid uint16) string {
	switch pid {
	case ProductIDFT232R:
		return "FTDI FT232R (bit-bang)"
	case ProductIDFT2232H:
		return "FTDI FT2232H (bit-bang)"
	case ProductIDFT232H:
		return "FTDI FT232H (bit-bang)"
	}
	return ""
}
