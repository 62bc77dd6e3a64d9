package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/memmap"
)

func newTestConsole(t *testing.T, input string, opts ...Option) (*Console, *bdm.SimTarget, *bytes.Buffer) {
	t.Helper()
	sim := bdm.NewSimTarget()
	s, err := bdm.NewSession(sim, bdm.WithTiming(bdm.Timing{}), bdm.WithResetTiming(0, 0), bdm.WithBreakpointHold(0))
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	var out bytes.Buffer
	return New(s, strings.NewReader(input), &out, opts...), sim, &out
}

func exec(t *testing.T, c *Console, line string) {
	t.Helper()
	if _, err := c.Exec(context.Background(), line); err != nil {
		t.Fatalf("%q returned error: %v", line, err)
	}
}

func TestParseLine(t *testing.T) {
	line, err := ParseLine(`DumpFile 0x0 0x100 "boot rom.bin" hex`)
	if err != nil {
		t.Fatalf("ParseLine returned error: %v", err)
	}
	if line.Command != "dumpfile" {
		t.Fatalf("Command = %q", line.Command)
	}
	want := []string{"0x0", "0x100", "boot rom.bin", "hex"}
	if strings.Join(line.Args, "|") != strings.Join(want, "|") {
		t.Fatalf("Args = %q, want %q", line.Args, want)
	}

	for _, blank := range []string{"", "   \n", "# comment"} {
		line, err := ParseLine(blank)
		if err != nil || line != nil {
			t.Fatalf("ParseLine(%q) = %v, %v; want nil", blank, line, err)
		}
	}
}

func TestMemoryCommands(t *testing.T) {
	c, sim, out := newTestConsole(t, "")
	exec(t, c, "init")
	if !strings.Contains(out.String(), "BDM connection established!") {
		t.Fatalf("init output:\n%s", out.String())
	}

	out.Reset()
	exec(t, c, "wm 20000000 DEADBEEF")
	if sim.Memory[0x20000000] != 0xDEADBEEF {
		t.Fatalf("memory = 0x%08X", sim.Memory[0x20000000])
	}
	exec(t, c, "rm 0x20000000")
	if !strings.Contains(out.String(), "Memory[0x20000000] = 0xDEADBEEF") {
		t.Fatalf("rm output:\n%s", out.String())
	}

	out.Reset()
	sim.Memory[0x20000004] = 0x11223344
	exec(t, c, "dump 0x20000000 2")
	want := "Memory dump starting at 0x20000000:\n0x20000000: 0xDEADBEEF\n0x20000004: 0x11223344\n"
	if out.String() != want {
		t.Fatalf("dump output:\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRegisterCommands(t *testing.T) {
	c, sim, out := newTestConsole(t, "")
	exec(t, c, "init")

	out.Reset()
	exec(t, c, "wr a7 FF000000")
	if sim.Registers[bdm.A7] != 0xFF000000 {
		t.Fatalf("A7 = 0x%08X", sim.Registers[bdm.A7])
	}
	exec(t, c, "rr A7")
	exec(t, c, "wr pc 40000400")
	exec(t, c, "rr pc")
	got := out.String()
	for _, want := range []string{"A7 = 0xFF000000", "PC = 0x40000400"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	sim.Registers[bdm.D3] = 0x33
	exec(t, c, "regs")
	if !strings.Contains(out.String(), "D3: 0x00000033    A3: 0x00000000") {
		t.Fatalf("regs output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "PC: 0x40000400") {
		t.Fatalf("regs output lacks PC:\n%s", out.String())
	}

	if _, err := c.Exec(context.Background(), "rr d8"); err == nil {
		t.Fatalf("expected error for d8")
	}
}

func TestCommandsRequireConnection(t *testing.T) {
	c, sim, _ := newTestConsole(t, "")
	before := sim.Calls()
	for _, line := range []string{"rm 0", "wm 0 1", "dump 0", "rr d0", "wr d0 1", "regs", "dumpfile 0 4 x.bin", "quickdump sram"} {
		if _, err := c.Exec(context.Background(), line); err != ErrNotConnected {
			t.Fatalf("%q error = %v, want ErrNotConnected", line, err)
		}
	}
	if sim.Calls() != before {
		t.Fatalf("refused commands touched the port")
	}
}

func TestUsageAndUnknown(t *testing.T) {
	c, _, out := newTestConsole(t, "")
	_, err := c.Exec(context.Background(), "rm")
	if err == nil || err.Error() != "Usage: rm <addr>" {
		t.Fatalf("rm error = %v", err)
	}
	exec(t, c, "frobnicate")
	if !strings.Contains(out.String(), "Unknown command: frobnicate") {
		t.Fatalf("output:\n%s", out.String())
	}
	quit, err := c.Exec(context.Background(), "EXIT")
	if err != nil || !quit {
		t.Fatalf("exit = %v, %v", quit, err)
	}
}

func TestDumpFileFormats(t *testing.T) {
	dir := t.TempDir()
	c, sim, out := newTestConsole(t, "", WithOutputDir(dir))
	exec(t, c, "init")
	sim.Memory[0x20000000] = 0x41424344
	sim.Memory[0x20000004] = 0x45464748

	exec(t, c, "dumpfile 20000000 20000006 ../escape/os.bin")
	data, err := os.ReadFile(filepath.Join(dir, "os.bin"))
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(data) != "ABCDEF" {
		t.Fatalf("os.bin = %q, want ABCDEF", data)
	}
	if !strings.Contains(out.String(), "Successfully dumped 6 bytes to os.bin") {
		t.Fatalf("output:\n%s", out.String())
	}

	exec(t, c, "dumpfile 20000000 20000008 os.txt hex")
	text, err := os.ReadFile(filepath.Join(dir, "os.txt"))
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if !strings.HasPrefix(string(text), "20000000: 41 42 43 44 45 46 47 48") {
		t.Fatalf("os.txt = %q", text)
	}

	if _, err := c.Exec(context.Background(), "dumpfile 100 100 x.bin"); err == nil {
		t.Fatalf("expected error for empty range")
	}
	if _, err := c.Exec(context.Background(), "dumpfile 0 100 x.bin elf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestDumpFileZeroFillsBusErrors(t *testing.T) {
	dir := t.TempDir()
	c, sim, out := newTestConsole(t, "", WithOutputDir(dir))
	exec(t, c, "init")
	sim.Memory[0x20000000] = 0xFFFFFFFF
	sim.Memory[0x20000004] = 0xFFFFFFFF
	sim.BusError = func(addr uint32) bool { return addr == 0x20000004 }

	exec(t, c, "dumpfile 20000000 20000008 holes.bin")
	data, _ := os.ReadFile(filepath.Join(dir, "holes.bin"))
	if !bytes.Equal(data, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}) {
		t.Fatalf("holes.bin = % X", data)
	}
	if !strings.Contains(out.String(), "Error reading at 0x20000004") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestQuickDumpConfirm(t *testing.T) {
	small := memmap.Map{
		Part: "TEST",
		Dumps: []memmap.Dump{
			{Region: memmap.Region{Name: "sram", Start: 0x20000000, End: 0x20000010}, File: "t_sram.bin"},
		},
	}
	dir := t.TempDir()
	c, sim, out := newTestConsole(t, "n\ny\n", WithOutputDir(dir), WithMap(small))
	exec(t, c, "init")
	sim.Memory[0x2000000C] = 0x01020304

	exec(t, c, "quickdump sram")
	if !strings.Contains(out.String(), "Cancelled.") {
		t.Fatalf("output:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "t_sram.bin")); !os.IsNotExist(err) {
		t.Fatalf("cancelled dump created a file")
	}

	exec(t, c, "quickdump SRAM")
	data, err := os.ReadFile(filepath.Join(dir, "t_sram.bin"))
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if len(data) != 16 || data[15] != 0x04 {
		t.Fatalf("t_sram.bin = % X", data)
	}

	if _, err := c.Exec(context.Background(), "quickdump nvram"); err == nil {
		t.Fatalf("expected error for unknown region")
	}
}

func TestStatusAndTest(t *testing.T) {
	c, _, out := newTestConsole(t, "")
	exec(t, c, "status")
	if !strings.Contains(out.String(), "Status: Not connected") {
		t.Fatalf("status output:\n%s", out.String())
	}

	exec(t, c, "init")
	out.Reset()
	exec(t, c, "status")
	if !strings.Contains(out.String(), "Status: Connected") || !strings.Contains(out.String(), "BKPT:  1") {
		t.Fatalf("status output:\n%s", out.String())
	}

	out.Reset()
	exec(t, c, "test")
	got := out.String()
	if !strings.Contains(got, "DSI pin (output):  GPIO 13") || !strings.Contains(got, "Clock pulse 5") {
		t.Fatalf("test output:\n%s", got)
	}
	if !strings.Contains(got, "State: Reset") {
		t.Fatalf("test should leave the session needing sync:\n%s", got)
	}
}

func TestRunScript(t *testing.T) {
	script := "init\nwm 20000000 CAFEF00D\nrm 20000000\nrm 20000001\nbogus\nquit\nrm 0\n"
	c, _, out := newTestConsole(t, script)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"MCF54415 BDM Console",
		"Memory[0x20000000] = 0xCAFEF00D",
		"Error: bdm: address 0x20000001",
		"Unknown command: bogus",
		"BDM interface closed.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "Memory[") != 2 {
		t.Fatalf("commands after quit ran:\n%s", got)
	}
	if strings.Contains(got, "BDM> ") {
		t.Fatalf("prompt shown without WithPrompt")
	}
}

func TestRunReportsTargetErrors(t *testing.T) {
	c, sim, out := newTestConsole(t, "init\nrm F0000000\n")
	sim.BusError = func(addr uint32) bool { return addr == 0xF0000000 }
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "BDM Error: ") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	c, _, out := newTestConsole(t, "")
	exec(t, c, "help")
	for name := range commands {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("help does not mention %s", name)
		}
	}
}
