package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/adapter"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/profile"
)

// resolveProfile applies the command line flags over the selected profile.
func resolveProfile() (profile.Profile, adapter.InterfaceKind, error) {
	ref := profileRef
	if ref == "" && adapterType != "" {
		// Without a profile, a simulator needs no wiring delays.
		if kind, err := adapter.ParseKind(adapterType); err == nil && kind == adapter.InterfaceKindSim {
			ref = "simulator"
		}
	}
	prof, err := profile.Lookup(ref)
	if err != nil {
		return profile.Profile{}, "", err
	}

	name := prof.Adapter
	if adapterType != "" {
		name = adapterType
	}
	kind, err := adapter.ParseKind(name)
	if err != nil {
		return profile.Profile{}, "", err
	}
	if adapterSerial != "" {
		prof.Serial = adapterSerial
	}
	if maxRetries >= 0 {
		prof.MaxRetries = maxRetries
	}
	return prof, kind, nil
}

// openSession opens the adapter and wraps it in a session. The caller closes
// the returned port.
func openSession() (*bdm.Session, adapter.Port, profile.Profile, error) {
	prof, kind, err := resolveProfile()
	if err != nil {
		return nil, nil, prof, err
	}
	if verbose {
		fmt.Printf("Creating %s adapter (profile %s)...\n", kind, prof.Name)
	}

	port, err := adapter.Open(adapter.Config{Kind: kind, Pins: prof.Pins, Serial: prof.Serial})
	if err != nil {
		return nil, nil, prof, errors.Wrapf(err, "open %s adapter", kind)
	}
	if sim, ok := port.(*bdm.SimTarget); ok {
		if err := preloadSim(sim, simMemory); err != nil {
			port.Close()
			return nil, nil, prof, err
		}
	}

	session, err := bdm.NewSession(port, prof.Options()...)
	if err != nil {
		port.Close()
		return nil, nil, prof, err
	}
	return session, port, prof, nil
}

// connect opens a session and halts the target.
func connect() (*bdm.Session, adapter.Port, error) {
	session, port, _, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	if err := session.Connect(); err != nil {
		port.Close()
		return nil, nil, errors.Wrap(err, "connect")
	}
	glog.V(1).Infof("connected, %d packets", session.Packets())
	return session, port, nil
}

// release parks the lines and closes the port.
func release(session *bdm.Session, port adapter.Port) {
	if err := session.Disconnect(); err != nil {
		glog.Warningf("disconnect: %v", err)
	}
	if err := port.Close(); err != nil {
		glog.Warningf("close adapter: %v", err)
	}
}

func preloadSim(sim *bdm.SimTarget, entries []string) error {
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return errors.Errorf("invalid --sim-mem entry %q (want addr=value)", entry)
		}
		addr, err := parseNumber(parts[0])
		if err != nil {
			return errors.Wrap(err, "invalid --sim-mem address")
		}
		value, err := parseNumber(parts[1])
		if err != nil {
			return errors.Wrap(err, "invalid --sim-mem value")
		}
		sim.Memory[uint32(addr)] = uint32(value)
	}
	return nil
}

// parseNumber reads hex with or without 0x, like the console does.
func parseNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Errorf("invalid hex value %q", s)
	}
	return v, nil
}

func parseNumber32(s string) (uint32, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, errors.Errorf("value 0x%X does not fit in 32 bits", v)
	}
	return uint32(v), nil
}
