package profile

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

const boards = `
# Raspberry Pi header wiring
profile "bench" {
	adapter = periph;
	pin dsi = 10;
	pin dso = 9;
	pin dsclk = 11;
	pin bkpt = 25;
	pin reset = 24;
	timing setup = 250ns;
	timing high = 2us;
	timing low = 1500ns;
	retries = 32;
	sync_window = 2000;
	reset hold = 50ms;
	reset settle = 200ms;
	breakpoint hold = 2ms;
}

// FT232H on a breakout
profile "ft232h" {
	adapter = ftdi;
	serial = "FT5XYZ";
	pin dsi = 0; pin dso = 1; pin dsclk = 2; pin bkpt = 3; pin reset = 4;
}
`

func resolveString(t *testing.T, input string) []Profile {
	t.Helper()
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}
	f, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("ParseString returned error: %v", err)
	}
	profiles, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	return profiles
}

func TestParseProfiles(t *testing.T) {
	profiles := resolveString(t, boards)
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}

	bench := profiles[0]
	if bench.Name != "bench" || bench.Adapter != "periph" {
		t.Fatalf("bench = %+v", bench)
	}
	wantPins := bdm.PinSet{DSI: 10, DSO: 9, DSCLK: 11, BKPT: 25, RESET: 24}
	if bench.Pins != wantPins {
		t.Fatalf("pins = %+v, want %+v", bench.Pins, wantPins)
	}
	wantTiming := bdm.Timing{Setup: 250 * time.Nanosecond, High: 2 * time.Microsecond, Low: 1500 * time.Nanosecond}
	if bench.Timing != wantTiming {
		t.Fatalf("timing = %+v, want %+v", bench.Timing, wantTiming)
	}
	if bench.MaxRetries != 32 || bench.SyncWindow != 2000 {
		t.Fatalf("retries=%d window=%d", bench.MaxRetries, bench.SyncWindow)
	}
	if bench.ResetHold != 50*time.Millisecond || bench.ResetSettle != 200*time.Millisecond || bench.BreakpointHold != 2*time.Millisecond {
		t.Fatalf("reset/breakpoint timing = %v %v %v", bench.ResetHold, bench.ResetSettle, bench.BreakpointHold)
	}

	ft := profiles[1]
	if ft.Serial != "FT5XYZ" || ft.Adapter != "ftdi" {
		t.Fatalf("ft232h = %+v", ft)
	}
	// Unset values fall back to the defaults.
	if ft.Timing != bdm.DefaultTiming || ft.MaxRetries != 16 {
		t.Fatalf("ft232h defaults not applied: %+v", ft)
	}
}

func TestResolveErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown line", `profile "x" { pin tck = 1; }`, "unknown line"},
		{"unknown setting", `profile "x" { speed = 3; }`, "unknown setting"},
		{"unknown timing", `profile "x" { timing hold = 1us; }`, "unknown timing"},
		{"retries not int", `profile "x" { retries = lots; }`, "integer"},
		{"duplicate pins", `profile "x" { pin dsi = 6; }`, "DSI"},
		{"duplicate profile", `profile "x" { } profile "x" { }`, "duplicate profile"},
		{"short window", `profile "x" { sync_window = 5; }`, "sync window"},
	}
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := parser.ParseString(tc.input)
			if err != nil {
				t.Fatalf("ParseString returned error: %v", err)
			}
			_, err = Resolve(f)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Resolve error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}
	if _, err := parser.ParseString(`profile "x" { pin dsi 13; }`); err == nil {
		t.Fatalf("expected syntax error")
	}
	if _, err := parser.ParseString(`profile x { }`); err == nil {
		t.Fatalf("expected error for unquoted name")
	}
}

func TestLookup(t *testing.T) {
	p, err := Lookup("")
	if err != nil || p.Name != "rpi" {
		t.Fatalf("Lookup(\"\") = %+v, %v", p, err)
	}
	p, err = Lookup("FTDI")
	if err != nil || p.Pins.DSCLK != 2 {
		t.Fatalf("Lookup(FTDI) = %+v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "boards.profile")
	if err := os.WriteFile(path, []byte(boards), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	p, err = Lookup(path)
	if err != nil || p.Name != "bench" {
		t.Fatalf("Lookup(path) = %+v, %v", p, err)
	}
	p, err = Lookup(path + ":ft232h")
	if err != nil || p.Name != "ft232h" {
		t.Fatalf("Lookup(path:ft232h) = %+v, %v", p, err)
	}
	if _, err := Lookup(path + ":missing"); err == nil {
		t.Fatalf("expected error for missing profile")
	}
}

func TestOptionsConfigureSession(t *testing.T) {
	p, _ := Builtin("simulator")
	p.MaxRetries = 3
	s, err := bdm.NewSession(bdm.NewSimTarget(), p.Options()...)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	cfg := s.Config()
	if cfg.MaxRetries != 3 || cfg.Timing != (bdm.Timing{}) || cfg.ResetHold != 0 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestBuiltinNames(t *testing.T) {
	names := BuiltinNames()
	want := []string{"ftdi", "rpi", "simulator"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("BuiltinNames() = %v, want %v", names, want)
	}
	for _, name := range names {
		p, _ := Builtin(name)
		if err := p.Validate(); err != nil {
			t.Fatalf("builtin %s invalid: %v", name, err)
		}
	}
}

func TestLoadKeepsCause(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.bdm")
	_, err := Load(missing, "")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not match fs.ErrNotExist", err)
	}
	var pathErr *fs.PathError
	if !errors.As(errors.Cause(err), &pathErr) {
		t.Errorf("cause of %v is %T, want *fs.PathError", err, errors.Cause(err))
	}

	p, perr := NewParser()
	if perr != nil {
		t.Fatalf("NewParser returned error: %v", perr)
	}
	_, err = p.ParseString(`profile "x" {`)
	if err == nil || !strings.HasPrefix(err.Error(), "parse error: ") {
		t.Fatalf("ParseString error = %v, want parse error prefix", err)
	}
	if errors.Cause(err) == err {
		t.Fatalf("parse error %v carries no cause", err)
	}
}
