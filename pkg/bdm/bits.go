package bdm

import (
	"fmt"
	"strings"
)

// MaxBitWidth is the widest BitSequence the engine transfers in one call.
const MaxBitWidth = 64

// BitSequence is a fixed-width run of bits. Bit 0 is the most significant bit
// and is the first one on the wire. The zero value is the empty sequence.
type BitSequence struct {
	value uint64
	width int
}

// NewBitSequence builds a sequence of width bits holding value. A value that
// does not fit the width is an error, never truncated.
func NewBitSequence(value uint64, width int) (BitSequence, error) {
	if width <= 0 || width > MaxBitWidth {
		return BitSequence{}, fmt.Errorf("bdm: bit width must be 1..%d, got %d", MaxBitWidth, width)
	}
	if width < MaxBitWidth && value>>uint(width) != 0 {
		return BitSequence{}, fmt.Errorf("bdm: value 0x%X does not fit in %d bits", value, width)
	}
	return BitSequence{value: value, width: width}, nil
}

// MustBitSequence is NewBitSequence for values known to fit.
func MustBitSequence(value uint64, width int) BitSequence {
	b, err := NewBitSequence(value, width)
	if err != nil {
		panic(err)
	}
	return b
}

// Width reports the declared number of bits.
func (b BitSequence) Width() int {
	return b.width
}

// Uint64 returns the bits as an unsigned integer, first bit most significant.
func (b BitSequence) Uint64() uint64 {
	return b.value
}

// Bit returns the i-th bit in wire order.
func (b BitSequence) Bit(i int) Level {
	if i < 0 || i >= b.width {
		panic(fmt.Sprintf("bdm: bit %d out of range for width %d", i, b.width))
	}
	return (b.value>>uint(b.width-1-i))&1 == 1
}

// Append returns b extended by one bit on the wire's trailing end.
func (b BitSequence) Append(level Level) BitSequence {
	if b.width >= MaxBitWidth {
		panic("bdm: bit sequence overflow")
	}
	v := b.value << 1
	if level {
		v |= 1
	}
	return BitSequence{value: v, width: b.width + 1}
}

// Concat appends all bits of o after b.
func (b BitSequence) Concat(o BitSequence) BitSequence {
	if b.width+o.width > MaxBitWidth {
		panic("bdm: bit sequence overflow")
	}
	if o.width == 0 {
		return b
	}
	return BitSequence{value: b.value<<uint(o.width) | o.value, width: b.width + o.width}
}

func (b BitSequence) String() string {
	if b.width == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.Grow(b.width + 2)
	sb.WriteByte('[')
	for i := 0; i < b.width; i++ {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
