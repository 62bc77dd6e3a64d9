// Package profile describes how a BDM adapter is wired to a board and how
// fast it may be clocked. Profiles come from a small declarative file format
// or from the built-in table.
package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// Profile is a resolved board profile.
type Profile struct {
	Name    string
	Adapter string
	Serial  string

	Pins   bdm.PinSet
	Timing bdm.Timing

	MaxRetries     int
	SyncWindow     int
	ResetHold      time.Duration
	ResetSettle    time.Duration
	BreakpointHold time.Duration
}

// Default is the Raspberry Pi wiring with conservative timing.
func Default() Profile {
	return Profile{
		Name:           "rpi",
		Adapter:        "rpio",
		Pins:           bdm.DefaultPinSet,
		Timing:         bdm.DefaultTiming,
		MaxRetries:     16,
		SyncWindow:     1000,
		ResetHold:      100 * time.Millisecond,
		ResetSettle:    100 * time.Millisecond,
		BreakpointHold: time.Millisecond,
	}
}

var builtins = map[string]Profile{}

func init() {
	rpi := Default()
	builtins[rpi.Name] = rpi

	ftdi := Default()
	ftdi.Name = "ftdi"
	ftdi.Adapter = "ftdi"
	ftdi.Pins = bdm.PinSet{DSI: 0, DSO: 1, DSCLK: 2, BKPT: 3, RESET: 4}
	// Each edge is a USB transfer; no extra delay is needed.
	ftdi.Timing = bdm.Timing{}
	builtins[ftdi.Name] = ftdi

	sim := Default()
	sim.Name = "simulator"
	sim.Adapter = "simulator"
	sim.Timing = bdm.Timing{}
	sim.ResetHold = 0
	sim.ResetSettle = 0
	sim.BreakpointHold = 0
	builtins[sim.Name] = sim
}

// Builtin returns a built-in profile by name.
func Builtin(name string) (Profile, bool) {
	p, ok := builtins[strings.ToLower(name)]
	return p, ok
}

// BuiltinNames lists the built-in profiles in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options converts the profile into session options.
func (p Profile) Options() []bdm.Option {
	return []bdm.Option{
		bdm.WithTiming(p.Timing),
		bdm.WithMaxRetries(p.MaxRetries),
		bdm.WithSyncWindow(p.SyncWindow),
		bdm.WithResetTiming(p.ResetHold, p.ResetSettle),
		bdm.WithBreakpointHold(p.BreakpointHold),
	}
}

// Validate checks the values a session would reject.
func (p Profile) Validate() error {
	if err := p.Pins.Validate(); err != nil {
		return err
	}
	if err := p.Timing.Validate(); err != nil {
		return err
	}
	if p.MaxRetries < 0 {
		return errors.Errorf("profile %q: negative retries", p.Name)
	}
	if p.SyncWindow < bdm.PacketBits {
		return errors.Errorf("profile %q: sync window %d shorter than one packet", p.Name, p.SyncWindow)
	}
	return nil
}

// Resolve applies every declaration in f over Default and returns the
// profiles in file order.
func Resolve(f *File) ([]Profile, error) {
	var out []Profile
	seen := make(map[string]bool)
	for _, decl := range f.Profiles {
		if seen[decl.Name] {
			return nil, errors.Errorf("%s: duplicate profile %q", decl.Pos, decl.Name)
		}
		seen[decl.Name] = true

		p := Default()
		p.Name = decl.Name
		for _, e := range decl.Entries {
			if err := apply(&p, e); err != nil {
				return nil, errors.Wrapf(err, "%s", e.Pos)
			}
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "%s", decl.Pos)
		}
		out = append(out, p)
	}
	return out, nil
}

func apply(p *Profile, e *Entry) error {
	switch {
	case e.Pin != nil:
		return applyPin(p, e.Pin)
	case e.Timing != nil:
		d, err := parseDuration(e.Timing)
		if err != nil {
			return err
		}
		switch e.Timing.Name {
		case "setup":
			p.Timing.Setup = d
		case "high":
			p.Timing.High = d
		case "low":
			p.Timing.Low = d
		default:
			return errors.Errorf("unknown timing %q (want setup, high or low)", e.Timing.Name)
		}
	case e.Reset != nil:
		d, err := parseDuration(e.Reset)
		if err != nil {
			return err
		}
		switch e.Reset.Name {
		case "hold":
			p.ResetHold = d
		case "settle":
			p.ResetSettle = d
		default:
			return errors.Errorf("unknown reset timing %q (want hold or settle)", e.Reset.Name)
		}
	case e.Breakpoint != nil:
		d, err := parseDuration(e.Breakpoint)
		if err != nil {
			return err
		}
		if e.Breakpoint.Name != "hold" {
			return errors.Errorf("unknown breakpoint timing %q (want hold)", e.Breakpoint.Name)
		}
		p.BreakpointHold = d
	case e.Setting != nil:
		return applySetting(p, e.Setting)
	}
	return nil
}

func applyPin(p *Profile, pin *PinEntry) error {
	switch strings.ToLower(pin.Line) {
	case "dsi":
		p.Pins.DSI = pin.Number
	case "dso":
		p.Pins.DSO = pin.Number
	case "dsclk":
		p.Pins.DSCLK = pin.Number
	case "bkpt":
		p.Pins.BKPT = pin.Number
	case "reset":
		p.Pins.RESET = pin.Number
	default:
		return errors.Errorf("unknown line %q", pin.Line)
	}
	return nil
}

func applySetting(p *Profile, s *Setting) error {
	intValue := func() (int, error) {
		if s.Value.Int == nil {
			return 0, errors.Errorf("%s wants an integer", s.Key)
		}
		return *s.Value.Int, nil
	}

	var err error
	switch s.Key {
	case "adapter":
		p.Adapter = s.Value.text()
		if p.Adapter == "" {
			return errors.New("adapter wants a name")
		}
	case "serial":
		p.Serial = s.Value.text()
	case "retries":
		p.MaxRetries, err = intValue()
	case "sync_window":
		p.SyncWindow, err = intValue()
	default:
		return errors.Errorf("unknown setting %q", s.Key)
	}
	return err
}

func parseDuration(e *DurationEntry) (time.Duration, error) {
	d, err := time.ParseDuration(e.Value)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", e.Name)
	}
	return d, nil
}

// Load reads filename and returns the profile called name, or the first
// profile when name is empty.
func Load(filename, name string) (Profile, error) {
	parser, err := NewParser()
	if err != nil {
		return Profile{}, err
	}
	f, err := parser.ParseFile(filename)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "profile %s", filename)
	}
	profiles, err := Resolve(f)
	if err != nil {
		return Profile{}, err
	}
	return pick(profiles, name, filename)
}

func pick(profiles []Profile, name, source string) (Profile, error) {
	if len(profiles) == 0 {
		return Profile{}, errors.Errorf("%s declares no profiles", source)
	}
	if name == "" {
		return profiles[0], nil
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, errors.Errorf("%s has no profile %q", source, name)
}

// Lookup resolves ref, which is either a built-in profile name or a file
// path optionally followed by ":name".
func Lookup(ref string) (Profile, error) {
	if ref == "" {
		return Default(), nil
	}
	if p, ok := Builtin(ref); ok {
		return p, nil
	}
	filename, name := ref, ""
	if i := strings.LastIndex(ref, ":"); i > 0 {
		filename, name = ref[:i], ref[i+1:]
	}
	return Load(filename, name)
}
