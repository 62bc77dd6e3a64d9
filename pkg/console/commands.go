package console

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/memmap"
)

type command struct {
	usage       string
	help        string
	group       string
	minArgs     int
	maxArgs     int
	needsTarget bool
	run         func(c *Console, ctx context.Context, args []string) error
}

// defaultDumpWords is how many words dump shows without a count.
const defaultDumpWords = 8

// clockTestPulses is how many clocks the test command generates.
const clockTestPulses = 5

var commands map[string]*command

var groups = []string{"Connection", "Memory", "Register", "Utility"}

func init() {
	commands = map[string]*command{
		"init":   {usage: "init", help: "Initialize BDM connection (reset + sync + debug)", group: "Connection", run: (*Console).cmdInit},
		"sync":   {usage: "sync", help: "Perform BDM synchronization", group: "Connection", run: (*Console).cmdSync},
		"reset":  {usage: "reset", help: "Reset target MCU", group: "Connection", run: (*Console).cmdReset},
		"debug":  {usage: "debug", help: "Enter debug mode", group: "Connection", run: (*Console).cmdDebug},
		"resume": {usage: "resume", help: "Let the halted core run", group: "Connection", needsTarget: true, run: (*Console).cmdResume},
		"test":   {usage: "test", help: "Test BDM hardware connectivity", group: "Connection", run: (*Console).cmdTest},
		"status": {usage: "status", help: "Show connection and GPIO status", group: "Connection", run: (*Console).cmdStatus},

		"rm":        {usage: "rm <addr>", help: "Read 32-bit memory at address (hex)", group: "Memory", minArgs: 1, maxArgs: 1, needsTarget: true, run: (*Console).cmdReadMemory},
		"wm":        {usage: "wm <addr> <data>", help: "Write 32-bit data to memory address (hex)", group: "Memory", minArgs: 2, maxArgs: 2, needsTarget: true, run: (*Console).cmdWriteMemory},
		"dump":      {usage: "dump <addr> [count]", help: "Dump memory starting at address (hex)", group: "Memory", minArgs: 1, maxArgs: 2, needsTarget: true, run: (*Console).cmdDump},
		"dumpfile":  {usage: "dumpfile <start_addr> <end_addr> <filename> [format]", help: "Dump memory region to file (bin, hex, srec, ihex)", group: "Memory", minArgs: 3, maxArgs: 4, needsTarget: true, run: (*Console).cmdDumpFile},
		"map":       {usage: "map", help: "Show the memory map", group: "Memory", run: (*Console).cmdMap},
		"quickdump": {usage: "quickdump <region>", help: "Quick dump of common regions (bootrom, flash, sram, all)", group: "Memory", minArgs: 1, maxArgs: 1, needsTarget: true, run: (*Console).cmdQuickDump},

		"rr":   {usage: "rr <register> (d0-d7, a0-a7, pc, sr, vbr, cacr, rambar)", help: "Read register", group: "Register", minArgs: 1, maxArgs: 1, needsTarget: true, run: (*Console).cmdReadRegister},
		"wr":   {usage: "wr <register> <data> (d0-d7, a0-a7, pc, sr, vbr, cacr, rambar)", help: "Write register with data (hex)", group: "Register", minArgs: 2, maxArgs: 2, needsTarget: true, run: (*Console).cmdWriteRegister},
		"regs": {usage: "regs", help: "Display all registers", group: "Register", needsTarget: true, run: (*Console).cmdRegs},

		"help": {usage: "help", help: "Show this help message", group: "Utility", run: (*Console).cmdHelp},
	}
}

// parseHex reads a hexadecimal number with or without a 0x prefix.
func parseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Errorf("invalid hex value %q", s)
	}
	return v, nil
}

func parseHex32(s string) (uint32, error) {
	v, err := parseHex(s)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, errors.Errorf("value 0x%X does not fit in 32 bits", v)
	}
	return uint32(v), nil
}

func (c *Console) cmdInit(ctx context.Context, args []string) error {
	c.println("Initializing BDM connection...")
	if err := c.session.Connect(); err != nil {
		c.println("Failed to establish BDM connection!")
		return err
	}
	c.println("BDM connection established!")
	return nil
}

func (c *Console) cmdSync(ctx context.Context, args []string) error {
	if err := c.session.Sync(); err != nil {
		c.println("BDM sync failed!")
		return err
	}
	c.println("BDM sync successful!")
	return nil
}

func (c *Console) cmdReset(ctx context.Context, args []string) error {
	if err := c.session.ResetTarget(); err != nil {
		return err
	}
	c.println("Target reset!")
	return nil
}

func (c *Console) cmdDebug(ctx context.Context, args []string) error {
	if err := c.session.EnterDebugMode(); err != nil {
		return err
	}
	c.println("Entered debug mode!")
	c.println("Tip: Try 'status' to check GPIO states")
	return nil
}

func (c *Console) cmdResume(ctx context.Context, args []string) error {
	if err := c.session.Resume(); err != nil {
		return err
	}
	c.println("Target running.")
	return nil
}

func (c *Console) cmdTest(ctx context.Context, args []string) error {
	c.println("Testing BDM connectivity...")
	for _, line := range bdm.AllLines() {
		dir := "output"
		if line == bdm.LineDSO {
			dir = "input"
		}
		c.printf("%-18s GPIO %d\n", fmt.Sprintf("%s pin (%s):", line, dir), c.pins.Pin(line))
	}
	c.println()

	levels, err := c.session.Lines()
	if err != nil {
		return err
	}
	c.println("Current GPIO states:")
	c.printf("DSO (should vary): %s\n", levels[bdm.LineDSO])
	c.println()

	c.println("Testing clock generation...")
	samples, err := c.session.PulseClock(clockTestPulses)
	for i, level := range samples {
		c.printf("Clock pulse %d, DSO = %s\n", i+1, level)
	}
	if err != nil {
		return err
	}
	c.printf("State: %s\n", c.session.State())
	return nil
}

func (c *Console) cmdStatus(ctx context.Context, args []string) error {
	state := c.session.State()
	if state == bdm.StateDebugMode {
		c.println("Status: Connected")
	} else {
		c.println("Status: Not connected")
	}
	c.printf("State: %s\n", state)

	levels, err := c.session.Lines()
	if err != nil {
		return err
	}
	c.println("Current GPIO states:")
	for _, line := range bdm.AllLines() {
		c.printf("  %-6s %s\n", line.String()+":", levels[line])
	}
	return nil
}

func (c *Console) cmdReadMemory(ctx context.Context, args []string) error {
	addr, err := parseHex32(args[0])
	if err != nil {
		return err
	}
	v, err := c.session.ReadMemory32(addr)
	if err != nil {
		return err
	}
	c.printf("Memory[0x%08X] = 0x%08X\n", addr, v)
	return nil
}

func (c *Console) cmdWriteMemory(ctx context.Context, args []string) error {
	addr, err := parseHex32(args[0])
	if err != nil {
		return err
	}
	v, err := parseHex32(args[1])
	if err != nil {
		return err
	}
	if err := c.session.WriteMemory32(addr, v); err != nil {
		return err
	}
	c.printf("Memory[0x%08X] = 0x%08X\n", addr, v)
	return nil
}

func (c *Console) cmdDump(ctx context.Context, args []string) error {
	addr, err := parseHex32(args[0])
	if err != nil {
		return err
	}
	count := defaultDumpWords
	if len(args) == 2 {
		if count, err = strconv.Atoi(args[1]); err != nil || count < 0 {
			return errors.Errorf("invalid count %q", args[1])
		}
	}

	c.printf("Memory dump starting at 0x%08X:\n", addr)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := addr + uint32(i*4)
		v, err := c.session.ReadMemory32(cur)
		if err != nil {
			return err
		}
		c.printf("0x%08X: 0x%08X\n", cur, v)
	}
	return nil
}

func (c *Console) cmdDumpFile(ctx context.Context, args []string) error {
	start, err := parseHex(args[0])
	if err != nil {
		return err
	}
	end, err := parseHex(args[1])
	if err != nil {
		return err
	}
	format := dump.FormatBin
	if len(args) == 4 {
		if format, err = dump.ParseFormat(args[3]); err != nil {
			return err
		}
	}
	if start >= end {
		return errors.Errorf("Start address must be less than end address")
	}

	// Files always land in the output directory.
	path := filepath.Join(c.dir, filepath.Base(args[2]))
	c.printf("Dumping 0x%X bytes from 0x%08X to 0x%08X\n", end-start, start, end)
	c.printf("Output file: %s\n", path)
	c.println("Reading memory... (this may take a while)")

	n, err := c.dumpToFile(ctx, start, end, path, format)
	if err != nil {
		return err
	}
	c.printf("Successfully dumped %d bytes to %s\n", n, filepath.Base(path))
	return nil
}

// dumpToFile reads [start, end) with a progress line and saves it.
func (c *Console) dumpToFile(ctx context.Context, start, end uint64, path string, format dump.Format) (int, error) {
	res, err := dump.Read(ctx, c.session, start, end, func(done, total, addr uint64) {
		c.printf("\rProgress: %d%% (0x%08X)", done*100/total, addr)
	})
	if err != nil {
		c.println()
		return 0, err
	}
	c.println("\rProgress: 100% - Writing to file...")
	for _, f := range res.Faults {
		c.printf("Error reading at 0x%08X: %v\n", f.Address, f.Err)
	}
	if len(res.Faults) > 0 {
		c.printf("%d unreadable words were zero filled\n", len(res.Faults))
	}
	if err := dump.SaveFile(path, format, res.Start, res.Data); err != nil {
		return 0, err
	}
	return len(res.Data), nil
}

func (c *Console) cmdMap(ctx context.Context, args []string) error {
	c.printf("%s Memory Map:\n", c.layout.Part)
	c.println(strings.Repeat("=", 50))
	for _, r := range c.layout.Regions {
		c.println(r.String())
	}
	c.println()
	c.println("Common OS locations:")
	for _, note := range memmap.Notes {
		c.printf("- %s\n", note)
	}
	return nil
}

func (c *Console) cmdQuickDump(ctx context.Context, args []string) error {
	name := strings.ToLower(args[0])
	if name == "all" {
		files := make([]string, len(c.layout.Dumps))
		for i, d := range c.layout.Dumps {
			files[i] = d.File
		}
		c.println("Dumping all regions to the output directory...")
		c.printf("This will create: %s\n", strings.Join(files, ", "))
		if !c.confirm("Continue?") {
			c.println("Cancelled.")
			return nil
		}
		for i, d := range c.layout.Dumps {
			c.printf("\n[%d/%d] Dumping %s...\n", i+1, len(c.layout.Dumps), d.File)
			c.printf("Range: 0x%08X - 0x%08X (%dKB)\n", d.Start, d.End, d.Size()/1024)
			n, err := c.dumpToFile(ctx, d.Start, d.End, filepath.Join(c.dir, d.File), dump.FormatBin)
			if err != nil {
				return err
			}
			c.printf("Completed: %s (%d bytes)\n", d.File, n)
		}
		c.println("\nAll regions dumped successfully!")
		return nil
	}

	d, ok := c.layout.Dump(name)
	if !ok {
		return errors.Errorf("unknown region %q. Use: %s, or all", name, strings.Join(c.layout.DumpNames(), ", "))
	}
	path := filepath.Join(c.dir, d.File)
	c.printf("Quick dump of %s region\n", strings.ToUpper(d.Name))
	c.printf("Range: 0x%08X - 0x%08X (%dKB)\n", d.Start, d.End, d.Size()/1024)
	c.printf("Output: %s\n", path)
	if !c.confirm("Continue?") {
		c.println("Cancelled.")
		return nil
	}
	c.println("Reading memory...")
	n, err := c.dumpToFile(ctx, d.Start, d.End, path, dump.FormatBin)
	if err != nil {
		return err
	}
	c.printf("Completed: %s (%d bytes)\n", d.File, n)
	return nil
}

// register is either a general or a control register.
type register struct {
	general bdm.Register
	control bdm.ControlRegister
	isCtrl  bool
}

func parseAnyRegister(s string) (register, error) {
	if r, err := bdm.ParseRegister(s); err == nil {
		return register{general: r}, nil
	}
	if cr, err := bdm.ParseControlRegister(s); err == nil {
		return register{control: cr, isCtrl: true}, nil
	}
	return register{}, errors.Errorf("Invalid register: %s", s)
}

func (r register) String() string {
	if r.isCtrl {
		return r.control.String()
	}
	return r.general.String()
}

func (c *Console) cmdReadRegister(ctx context.Context, args []string) error {
	reg, err := parseAnyRegister(args[0])
	if err != nil {
		return err
	}
	var v uint32
	if reg.isCtrl {
		v, err = c.session.ReadControlRegister(reg.control)
	} else {
		v, err = c.session.ReadRegister(reg.general)
	}
	if err != nil {
		return err
	}
	c.printf("%s = 0x%08X\n", reg, v)
	return nil
}

func (c *Console) cmdWriteRegister(ctx context.Context, args []string) error {
	reg, err := parseAnyRegister(args[0])
	if err != nil {
		return err
	}
	v, err := parseHex32(args[1])
	if err != nil {
		return err
	}
	if reg.isCtrl {
		err = c.session.WriteControlRegister(reg.control, v)
	} else {
		err = c.session.WriteRegister(reg.general, v)
	}
	if err != nil {
		return err
	}
	c.printf("%s = 0x%08X\n", reg, v)
	return nil
}

func (c *Console) cmdRegs(ctx context.Context, args []string) error {
	regs, err := c.session.ReadRegisters()
	if err != nil {
		return err
	}
	c.println("CPU Registers:")
	c.println(strings.Repeat("-", 40))
	for i := 0; i < 8; i++ {
		c.printf("D%d: 0x%08X    A%d: 0x%08X\n", i, regs[i], i, regs[i+8])
	}
	pc, err := c.session.ReadControlRegister(bdm.CtrlPC)
	if err != nil {
		return err
	}
	sr, err := c.session.ReadControlRegister(bdm.CtrlSR)
	if err != nil {
		return err
	}
	c.printf("PC: 0x%08X    SR: 0x%04X\n", pc, sr&0xFFFF)
	return nil
}

func (c *Console) cmdHelp(ctx context.Context, args []string) error {
	c.println("Available Commands:")
	c.println(strings.Repeat("=", 18))
	for _, group := range groups {
		var names []string
		for name, cmd := range commands {
			if cmd.group == group {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		c.printf("\n%s Commands:\n", group)
		for _, name := range names {
			cmd := commands[name]
			c.printf("  %-54s - %s\n", cmd.usage, cmd.help)
		}
	}
	c.printf("  %-54s - %s\n", "quit/exit", "Exit program")
	return nil
}
