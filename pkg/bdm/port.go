package bdm

import "fmt"

// Line identifies one of the five signals of the BDM header.
type Line uint8

const (
	LineDSI Line = iota
	LineDSO
	LineDSCLK
	LineBKPT
	LineRESET
)

var lineNames = map[Line]string{
	LineDSI:   "DSI",
	LineDSO:   "DSO",
	LineDSCLK: "DSCLK",
	LineBKPT:  "BKPT",
	LineRESET: "RESET",
}

func (l Line) String() string {
	if name, ok := lineNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Line(%d)", l)
}

// AllLines lists the BDM signals in header order.
func AllLines() []Line {
	return []Line{LineDSI, LineDSO, LineDSCLK, LineBKPT, LineRESET}
}

// Direction selects whether the debugger drives or samples a line.
type Direction uint8

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "out"
	}
	return "in"
}

// Level is the logic level of a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "1"
	}
	return "0"
}

// Port abstracts the digital I/O lines wired to the target's BDM header. The
// protocol engine needs nothing else from the host.
type Port interface {
	SetDirection(line Line, dir Direction) error
	WriteLevel(line Line, level Level) error
	ReadLevel(line Line) (Level, error)
}

// PinSet binds each BDM signal to a physical line number of a port backend.
// The numbering is backend specific (BCM GPIO number, FTDI ADBUS bit, ...).
type PinSet struct {
	DSI   int
	DSO   int
	DSCLK int
	BKPT  int
	RESET int
}

// DefaultPinSet is the Raspberry Pi wiring used by the reference adapter board.
var DefaultPinSet = PinSet{DSI: 13, DSO: 6, DSCLK: 19, BKPT: 26, RESET: 17}

// Pin returns the physical number bound to line.
func (p PinSet) Pin(line Line) int {
	switch line {
	case LineDSI:
		return p.DSI
	case LineDSO:
		return p.DSO
	case LineDSCLK:
		return p.DSCLK
	case LineBKPT:
		return p.BKPT
	case LineRESET:
		return p.RESET
	}
	return -1
}

// Validate rejects negative and duplicated pin numbers.
func (p PinSet) Validate() error {
	seen := make(map[int]Line)
	for _, line := range AllLines() {
		n := p.Pin(line)
		if n < 0 {
			return fmt.Errorf("bdm: %s has invalid pin %d", line, n)
		}
		if other, dup := seen[n]; dup {
			return fmt.Errorf("bdm: %s and %s share pin %d", other, line, n)
		}
		seen[n] = line
	}
	return nil
}
