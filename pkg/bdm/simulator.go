package bdm

import "fmt"

// SimTarget is a pin-level model of a ColdFire core's BDM serial interface.
// It implements Port, so a Session drives it exactly like hardware: DSI is
// latched on the rising DSCLK edge, DSO is updated on the falling edge, and
// every 17 clocks a packet is decoded and executed.
type SimTarget struct {
	Memory    map[uint32]uint32
	Registers [NumRegisters]uint32
	Control   map[ControlRegister]uint32

	// Halted reports whether the core is in background (debug) mode.
	Halted bool
	// RefuseHalt ignores BKPT, like a secured part.
	RefuseHalt bool
	// NotReady answers every result fetch with the not-ready sentinel.
	NotReady bool
	// BusyPolls is the number of not-ready answers given before a result.
	BusyPolls int
	// BusError, when set, selects addresses whose access ends in a bus error.
	BusError func(addr uint32) bool
	// OnPacket observes every packet the target receives.
	OnPacket func(word uint16)

	levels map[Line]Level
	dirs   map[Line]Direction
	dso    Level

	shift   uint32
	count   int
	current Response

	pending  Command
	ext      []uint16
	need     int
	results  []Response
	busy     int
	bkptHalt bool

	calls   int
	packets int
	pulses  int
}

// NewSimTarget returns a running target with empty memory.
func NewSimTarget() *SimTarget {
	t := &SimTarget{
		Memory:  make(map[uint32]uint32),
		Control: make(map[ControlRegister]uint32),
		levels:  make(map[Line]Level),
		dirs:    make(map[Line]Direction),
		dso:     High,
	}
	t.levels[LineBKPT] = High
	t.levels[LineRESET] = High
	t.resetProtocol()
	return t
}

// Calls reports how many Port methods have been invoked.
func (t *SimTarget) Calls() int { return t.calls }

// Packets reports how many complete packets the target has received.
func (t *SimTarget) Packets() int { return t.packets }

// Pulses reports how many DSCLK cycles the target has seen.
func (t *SimTarget) Pulses() int { return t.pulses }

// Desync feeds n stray clocks with DSI low, leaving the shifter n bits into a
// packet as a glitch on DSCLK would.
func (t *SimTarget) Desync(n int) {
	for i := 0; i < n; i++ {
		t.clockRise()
		t.clockFall()
	}
}

func (t *SimTarget) SetDirection(line Line, dir Direction) error {
	t.calls++
	if line == LineDSO && dir == DirectionOutput {
		return fmt.Errorf("sim: DSO is driven by the target")
	}
	t.dirs[line] = dir
	return nil
}

func (t *SimTarget) WriteLevel(line Line, level Level) error {
	t.calls++
	if t.dirs[line] != DirectionOutput {
		return fmt.Errorf("sim: %s is not an output", line)
	}
	prev := t.levels[line]
	t.levels[line] = level
	if prev == level {
		return nil
	}

	switch line {
	case LineDSCLK:
		if level {
			t.clockRise()
		} else {
			t.clockFall()
		}
	case LineBKPT:
		if level == Low && !t.RefuseHalt {
			t.Halted = true
			t.bkptHalt = true
		}
	case LineRESET:
		if !level {
			t.Halted = t.levels[LineBKPT] == Low && !t.RefuseHalt
			t.bkptHalt = t.Halted
			t.Registers = [NumRegisters]uint32{}
			t.resetProtocol()
		}
	}
	return nil
}

func (t *SimTarget) ReadLevel(line Line) (Level, error) {
	t.calls++
	if line == LineDSO {
		return t.dso, nil
	}
	return t.levels[line], nil
}

// Close satisfies the adapter handle contract; there is nothing to release.
func (t *SimTarget) Close() error {
	return nil
}

// CSR returns the debug configuration/status register as the target would
// report it.
func (t *SimTarget) CSR() uint32 {
	var csr uint32
	if t.Halted {
		csr |= csrHalt
		if t.bkptHalt {
			csr |= csrBkpt
		}
	}
	return csr
}

func (t *SimTarget) resetProtocol() {
	t.shift = 0
	t.count = 0
	t.current = RespComplete
	t.need = 0
	t.ext = t.ext[:0]
	t.results = nil
	t.busy = 0
}

func (t *SimTarget) clockRise() {
	if !t.levels[LineRESET] {
		return
	}
	t.shift <<= 1
	if t.levels[LineDSI] {
		t.shift |= 1
	}
	t.count++
}

func (t *SimTarget) clockFall() {
	t.pulses++
	if t.count == 0 {
		return
	}
	t.dso = t.current.Bits().Bit(t.count - 1)
	if t.count == PacketBits {
		word := uint16(t.shift)
		t.shift = 0
		t.count = 0
		t.packet(word)
	}
}

func (t *SimTarget) packet(word uint16) {
	t.packets++
	if t.OnPacket != nil {
		t.OnPacket(word)
	}

	if t.need > 0 {
		t.ext = append(t.ext, word)
		t.need--
		if t.need > 0 {
			t.current = RespNotReady
			return
		}
		t.execute()
		t.current = t.next()
		return
	}

	if len(t.results) > 0 && word == OpNOP {
		t.current = t.next()
		return
	}
	t.results = nil

	kind, embedded, ext, ok := DecodeCommandWord(word)
	if !ok {
		t.current = RespIllegal
		return
	}
	if kind == CmdNOP {
		t.current = RespComplete
		return
	}
	t.pending = Command{Kind: kind, Operand: embedded}
	t.ext = t.ext[:0]
	t.need = ext
	if ext > 0 {
		t.current = RespNotReady
		return
	}
	t.execute()
	t.current = t.next()
}

// next yields the answer for the following packet.
func (t *SimTarget) next() Response {
	if len(t.results) == 0 {
		return RespComplete
	}
	if t.NotReady {
		return RespNotReady
	}
	if t.busy > 0 {
		t.busy--
		return RespNotReady
	}
	r := t.results[0]
	t.results = t.results[1:]
	return r
}

func (t *SimTarget) execute() {
	ext32 := func(i int) uint32 {
		return uint32(t.ext[i])<<16 | uint32(t.ext[i+1])
	}
	words := func(v uint32) []Response {
		return []Response{{Data: hi(v)}, {Data: lo(v)}}
	}
	done := []Response{RespComplete}
	t.busy = t.BusyPolls

	cmd := t.pending
	switch cmd.Kind {
	case CmdGo:
		if !t.Halted {
			t.results = []Response{RespIllegal}
			return
		}
		t.Halted = false
		t.bkptHalt = false
		t.results = done
	case CmdReadMemory, CmdWriteMemory:
		addr := ext32(0)
		if t.BusError != nil && t.BusError(addr) {
			t.results = []Response{RespBusError}
			return
		}
		if cmd.Kind == CmdReadMemory {
			t.results = words(t.Memory[addr])
			return
		}
		t.Memory[addr] = ext32(2)
		t.results = done
	case CmdReadRegister, CmdWriteRegister, CmdReadControl, CmdWriteControl:
		if !t.Halted {
			t.results = []Response{RespIllegal}
			return
		}
		switch cmd.Kind {
		case CmdReadRegister:
			t.results = words(t.Registers[cmd.Operand])
		case CmdWriteRegister:
			t.Registers[cmd.Operand] = ext32(0)
			t.results = done
		case CmdReadControl:
			t.results = words(t.Control[ControlRegister(ext32(0))])
		case CmdWriteControl:
			t.Control[ControlRegister(ext32(0))] = ext32(2)
			t.results = done
		}
	case CmdReadDebug:
		if uint8(cmd.Operand) != DebugCSR {
			t.results = []Response{RespBusError}
			return
		}
		t.results = words(t.CSR())
	}
}

// LoopbackPort echoes DSI back on DSO Delay clocks later. With Delay 0 every
// Exchange returns its input; with Delay n a ShiftOut of n bits is read back
// by the following ShiftIn of n bits.
type LoopbackPort struct {
	Delay int

	levels  map[Line]Level
	history []Level
	dso     Level
}

func (p *LoopbackPort) SetDirection(Line, Direction) error {
	return nil
}

func (p *LoopbackPort) WriteLevel(line Line, level Level) error {
	if p.levels == nil {
		p.levels = make(map[Line]Level)
	}
	prev := p.levels[line]
	p.levels[line] = level
	if line != LineDSCLK || prev == level {
		return nil
	}
	if level {
		p.history = append(p.history, p.levels[LineDSI])
		return nil
	}
	idx := len(p.history) - 1 - p.Delay
	p.dso = Low
	if idx >= 0 {
		p.dso = p.history[idx]
	}
	return nil
}

func (p *LoopbackPort) ReadLevel(line Line) (Level, error) {
	if line == LineDSO {
		return p.dso, nil
	}
	return p.levels[line], nil
}
