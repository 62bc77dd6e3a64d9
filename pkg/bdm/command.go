package bdm

import (
	"fmt"
	"strings"
)

// PacketBits is the width of one BDM serial packet: a status/control bit
// followed by a 16-bit word.
const PacketBits = 17

// ColdFire BDM opcodes.
const (
	OpNOP          uint16 = 0x0000
	OpGO           uint16 = 0x0C00
	OpWriteLong    uint16 = 0x1880
	OpReadLong     uint16 = 0x1980
	OpWriteReg     uint16 = 0x2080 // WAREG/WDREG, low nibble selects the register
	OpReadReg      uint16 = 0x2180 // RAREG/RDREG
	OpWriteCtrlReg uint16 = 0x2880 // WCREG
	OpReadCtrlReg  uint16 = 0x2980 // RCREG
	OpReadDebugReg uint16 = 0x2D80 // RDMREG, low nibble selects the debug register
)

// Response words. With the status bit set they carry a condition instead of
// data.
const (
	wordNotReady = 0x0000
	wordBusError = 0x0001
	wordIllegal  = 0xFFFF
	wordComplete = 0xFFFF
)

// Register is a CPU general register index: 0..7 are D0..D7, 8..15 are A0..A7.
type Register uint8

const (
	D0 Register = iota
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
)

// NumRegisters is the number of general registers reachable with RDREG/RAREG.
const NumRegisters = 16

// Valid reports whether r is inside the architecture's register range.
func (r Register) Valid() bool {
	return r < NumRegisters
}

func (r Register) String() string {
	switch {
	case r < A0:
		return fmt.Sprintf("D%d", r)
	case r < NumRegisters:
		return fmt.Sprintf("A%d", r-A0)
	}
	return fmt.Sprintf("R%d", r)
}

// ParseRegister accepts d0-d7 and a0-a7, case insensitive.
func ParseRegister(s string) (Register, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 2 && s[1] >= '0' && s[1] <= '7' {
		n := Register(s[1] - '0')
		switch s[0] {
		case 'd':
			return D0 + n, nil
		case 'a':
			return A0 + n, nil
		}
	}
	return 0, fmt.Errorf("bdm: invalid register %q", s)
}

// ControlRegister is a processor control register number for RCREG/WCREG.
type ControlRegister uint16

const (
	CtrlCACR   ControlRegister = 0x002
	CtrlVBR    ControlRegister = 0x801
	CtrlSR     ControlRegister = 0x80E
	CtrlPC     ControlRegister = 0x80F
	CtrlRAMBAR ControlRegister = 0xC05
)

var controlNames = map[ControlRegister]string{
	CtrlCACR:   "CACR",
	CtrlVBR:    "VBR",
	CtrlSR:     "SR",
	CtrlPC:     "PC",
	CtrlRAMBAR: "RAMBAR",
}

// Valid reports whether cr is one of the supported control registers.
func (cr ControlRegister) Valid() bool {
	_, ok := controlNames[cr]
	return ok
}

func (cr ControlRegister) String() string {
	if name, ok := controlNames[cr]; ok {
		return name
	}
	return fmt.Sprintf("CR(0x%03X)", uint16(cr))
}

// ParseControlRegister accepts a control register name such as "pc".
func ParseControlRegister(s string) (ControlRegister, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for cr, n := range controlNames {
		if n == name {
			return cr, nil
		}
	}
	return 0, fmt.Errorf("bdm: invalid control register %q", s)
}

// ControlRegisters lists the supported control registers in ascending order.
func ControlRegisters() []ControlRegister {
	return []ControlRegister{CtrlCACR, CtrlVBR, CtrlSR, CtrlPC, CtrlRAMBAR}
}

// Debug module register numbers for RDMREG.
const (
	DebugCSR uint8 = 0x0
)

// CSR flags.
const (
	csrHalt = 1 << 25
	csrBkpt = 1 << 24
)

// CommandKind tags the variant held by a Command.
type CommandKind uint8

const (
	CmdNOP CommandKind = iota
	CmdGo
	CmdReadMemory
	CmdWriteMemory
	CmdReadRegister
	CmdWriteRegister
	CmdReadControl
	CmdWriteControl
	CmdReadDebug
)

var commandNames = map[CommandKind]string{
	CmdNOP:           "NOP",
	CmdGo:            "GO",
	CmdReadMemory:    "READ.L",
	CmdWriteMemory:   "WRITE.L",
	CmdReadRegister:  "RDREG",
	CmdWriteRegister: "WDREG",
	CmdReadControl:   "RCREG",
	CmdWriteControl:  "WCREG",
	CmdReadDebug:     "RDMREG",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", k)
}

// Command is one BDM command. Operand holds the address, register number,
// control register or debug register depending on Kind; Data is the payload of
// write-class commands. Build commands with the constructors below.
type Command struct {
	Kind    CommandKind
	Operand uint32
	Data    uint32
}

// NOP is the no-operation command; it also fetches pending results.
func NOP() Command { return Command{Kind: CmdNOP} }

// Go resumes execution of a halted core.
func Go() Command { return Command{Kind: CmdGo} }

func ReadMemory(addr uint32) Command { return Command{Kind: CmdReadMemory, Operand: addr} }

func ReadRegister(r Register) Command { return Command{Kind: CmdReadRegister, Operand: uint32(r)} }

func ReadControl(cr ControlRegister) Command {
	return Command{Kind: CmdReadControl, Operand: uint32(cr)}
}

func ReadDebug(drc uint8) Command { return Command{Kind: CmdReadDebug, Operand: uint32(drc)} }

func WriteMemory(addr, value uint32) Command {
	return Command{Kind: CmdWriteMemory, Operand: addr, Data: value}
}

func WriteRegister(r Register, value uint32) Command {
	return Command{Kind: CmdWriteRegister, Operand: uint32(r), Data: value}
}

func WriteControl(cr ControlRegister, value uint32) Command {
	return Command{Kind: CmdWriteControl, Operand: uint32(cr), Data: value}
}

// IsWrite reports whether the command carries a 32-bit payload.
func (c Command) IsWrite() bool {
	switch c.Kind {
	case CmdWriteMemory, CmdWriteRegister, CmdWriteControl:
		return true
	}
	return false
}

// ResponseWords is the number of 16-bit result words the command produces.
// Zero means the command only reports completion.
func (c Command) ResponseWords() int {
	switch c.Kind {
	case CmdReadMemory, CmdReadRegister, CmdReadControl, CmdReadDebug:
		return 2
	}
	return 0
}

// Words lays the command out as the 16-bit words sent on the wire: the
// command word, operand extension words, then the payload.
func (c Command) Words() []uint16 {
	switch c.Kind {
	case CmdNOP:
		return []uint16{OpNOP}
	case CmdGo:
		return []uint16{OpGO}
	case CmdReadMemory:
		return []uint16{OpReadLong, hi(c.Operand), lo(c.Operand)}
	case CmdWriteMemory:
		return []uint16{OpWriteLong, hi(c.Operand), lo(c.Operand), hi(c.Data), lo(c.Data)}
	case CmdReadRegister:
		return []uint16{OpReadReg | uint16(c.Operand&0xF)}
	case CmdWriteRegister:
		return []uint16{OpWriteReg | uint16(c.Operand&0xF), hi(c.Data), lo(c.Data)}
	case CmdReadControl:
		return []uint16{OpReadCtrlReg, hi(c.Operand), lo(c.Operand)}
	case CmdWriteControl:
		return []uint16{OpWriteCtrlReg, hi(c.Operand), lo(c.Operand), hi(c.Data), lo(c.Data)}
	case CmdReadDebug:
		return []uint16{OpReadDebugReg | uint16(c.Operand&0xF)}
	}
	panic(fmt.Sprintf("bdm: unknown command kind %d", c.Kind))
}

func (c Command) String() string {
	switch c.Kind {
	case CmdReadMemory:
		return fmt.Sprintf("%s 0x%08X", c.Kind, c.Operand)
	case CmdWriteMemory:
		return fmt.Sprintf("%s 0x%08X,0x%08X", c.Kind, c.Operand, c.Data)
	case CmdReadRegister:
		return fmt.Sprintf("%s %s", c.Kind, Register(c.Operand))
	case CmdWriteRegister:
		return fmt.Sprintf("%s %s,0x%08X", c.Kind, Register(c.Operand), c.Data)
	case CmdReadControl:
		return fmt.Sprintf("%s %s", c.Kind, ControlRegister(c.Operand))
	case CmdWriteControl:
		return fmt.Sprintf("%s %s,0x%08X", c.Kind, ControlRegister(c.Operand), c.Data)
	case CmdReadDebug:
		return fmt.Sprintf("%s %d", c.Kind, c.Operand)
	}
	return c.Kind.String()
}

// DecodeCommandWord identifies the command word of a packet and returns its
// kind, the operand embedded in the word (register number) and the number of
// extension words that follow. ok is false for an illegal opcode.
func DecodeCommandWord(word uint16) (kind CommandKind, embedded uint32, ext int, ok bool) {
	switch {
	case word == OpNOP:
		return CmdNOP, 0, 0, true
	case word == OpGO:
		return CmdGo, 0, 0, true
	case word == OpReadLong:
		return CmdReadMemory, 0, 2, true
	case word == OpWriteLong:
		return CmdWriteMemory, 0, 4, true
	case word&0xFFF0 == OpReadReg:
		return CmdReadRegister, uint32(word & 0xF), 0, true
	case word&0xFFF0 == OpWriteReg:
		return CmdWriteRegister, uint32(word & 0xF), 2, true
	case word == OpReadCtrlReg:
		return CmdReadControl, 0, 2, true
	case word == OpWriteCtrlReg:
		return CmdWriteControl, 0, 4, true
	case word&0xFFF0 == OpReadDebugReg:
		return CmdReadDebug, uint32(word & 0xF), 0, true
	}
	return 0, 0, 0, false
}

// Response is one received packet: the status bit and the 16-bit word.
type Response struct {
	Status bool
	Data   uint16
}

// Response packets the target uses.
var (
	RespComplete = Response{Data: wordComplete}
	RespNotReady = Response{Status: true, Data: wordNotReady}
	RespBusError = Response{Status: true, Data: wordBusError}
	RespIllegal  = Response{Status: true, Data: wordIllegal}
)

// NotReady reports the "come again" sentinel.
func (r Response) NotReady() bool { return r == RespNotReady }

// BusError reports a terminated bus cycle.
func (r Response) BusError() bool { return r == RespBusError }

// Illegal reports an unrecognised command.
func (r Response) Illegal() bool { return r == RespIllegal }

// Complete reports the status-OK answer of a command without data.
func (r Response) Complete() bool { return r == RespComplete }

func (r Response) String() string {
	switch {
	case r.NotReady():
		return "not-ready"
	case r.BusError():
		return "bus-error"
	case r.Illegal():
		return "illegal-command"
	case r.Complete():
		return "complete"
	case r.Status:
		return fmt.Sprintf("S=1:0x%04X", r.Data)
	}
	return fmt.Sprintf("0x%04X", r.Data)
}

// Bits encodes the response as a 17-bit packet.
func (r Response) Bits() BitSequence {
	v := uint64(r.Data)
	if r.Status {
		v |= 1 << 16
	}
	return MustBitSequence(v, PacketBits)
}

// EncodePacket builds the outgoing packet for word. The control bit is zero.
func EncodePacket(word uint16) BitSequence {
	return MustBitSequence(uint64(word), PacketBits)
}

// DecodeResponse splits a received packet.
func DecodeResponse(b BitSequence) (Response, error) {
	if b.Width() != PacketBits {
		return Response{}, fmt.Errorf("bdm: packet width %d, want %d", b.Width(), PacketBits)
	}
	v := b.Uint64()
	return Response{Status: v&(1<<16) != 0, Data: uint16(v)}, nil
}

func hi(v uint32) uint16 { return uint16(v >> 16) }
func lo(v uint32) uint16 { return uint16(v) }
