package bdm

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewBitSequenceRejectsBadWidths(t *testing.T) {
	if _, err := NewBitSequence(0, 0); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := NewBitSequence(0, MaxBitWidth+1); err == nil {
		t.Fatalf("expected error for width above %d", MaxBitWidth)
	}
	if _, err := NewBitSequence(0x1FFFF, 16); err == nil {
		t.Fatalf("expected error when value does not fit")
	}
	if _, err := NewBitSequence(^uint64(0), 64); err != nil {
		t.Fatalf("unexpected error for full 64-bit value: %v", err)
	}
}

func TestBitSequenceWireOrder(t *testing.T) {
	b := MustBitSequence(0b1011, 4)
	want := []Level{High, Low, High, High}
	for i, w := range want {
		if got := b.Bit(i); got != w {
			t.Fatalf("bit %d = %v, want %v", i, got, w)
		}
	}
	if b.String() != "[1011]" {
		t.Fatalf("String() = %s, want [1011]", b)
	}

	var built BitSequence
	for _, w := range want {
		built = built.Append(w)
	}
	if built != b {
		t.Fatalf("Append built %s, want %s", built, b)
	}

	joined := MustBitSequence(0xAB, 8).Concat(MustBitSequence(0xCD, 8))
	if joined.Uint64() != 0xABCD || joined.Width() != 16 {
		t.Fatalf("Concat = %s (0x%X), want 0xABCD over 16 bits", joined, joined.Uint64())
	}
}

func TestExchangeRoundTripOverLoopback(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for width := 1; width <= MaxBitWidth; width++ {
		for n := 0; n < 8; n++ {
			v := rng.Uint64()
			if width < 64 {
				v &= 1<<uint(width) - 1
			}
			b := MustBitSequence(v, width)

			clock := NewClock(&LoopbackPort{}, Timing{}, nil)
			got, err := clock.Exchange(b)
			if err != nil {
				t.Fatalf("Exchange returned error: %v", err)
			}
			if got != b {
				t.Fatalf("width %d: got %s, want %s", width, got, b)
			}
			if clock.Pulses() != uint64(width) {
				t.Fatalf("pulses = %d, want %d", clock.Pulses(), width)
			}
		}
	}
}

func TestShiftOutShiftInRoundTrip(t *testing.T) {
	for _, b := range []BitSequence{
		MustBitSequence(0x2190, 16),
		MustBitSequence(0xDEADBEEF, 32),
		MustBitSequence(0x1, 17),
		MustBitSequence(0x0, 5),
	} {
		clock := NewClock(&LoopbackPort{Delay: b.Width()}, Timing{}, nil)
		if err := clock.ShiftOut(b); err != nil {
			t.Fatalf("ShiftOut returned error: %v", err)
		}
		got, err := clock.ShiftIn(b.Width())
		if err != nil {
			t.Fatalf("ShiftIn returned error: %v", err)
		}
		if got != b {
			t.Fatalf("got %s, want %s", got, b)
		}
	}
}

func TestShiftInRejectsBadCount(t *testing.T) {
	clock := NewClock(&LoopbackPort{}, Timing{}, nil)
	for _, n := range []int{0, -1, MaxBitWidth + 1} {
		_, err := clock.ShiftIn(n)
		if err == nil {
			t.Fatalf("ShiftIn(%d): expected error", n)
		}
		if errors.Is(err, ErrPort) {
			t.Errorf("ShiftIn(%d) error %v reported as a port failure", n, err)
		}
	}
	if clock.Pulses() != 0 {
		t.Fatalf("pulses = %d, want 0", clock.Pulses())
	}
}
