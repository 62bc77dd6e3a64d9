package bdm

import (
	"github.com/golang/glog"
)

// Clock is the bit engine. It generates DSCLK pulses and moves bits over
// DSI/DSO, most significant bit first. The debugger is always clock master:
// DSI is driven before the rising edge, the target samples it on that edge and
// updates DSO on the falling edge, and DSO is read after the low time.
type Clock struct {
	port   Port
	timing Timing
	delay  Delayer

	pulses uint64
}

// NewClock creates a bit engine over port. A nil delayer waits with
// SleepDelayer.
func NewClock(port Port, timing Timing, delay Delayer) *Clock {
	if delay == nil {
		delay = SleepDelayer{}
	}
	return &Clock{port: port, timing: timing, delay: delay}
}

// Pulses reports how many DSCLK cycles have been generated.
func (c *Clock) Pulses() uint64 {
	return c.pulses
}

// Pulse generates one DSCLK cycle.
func (c *Clock) Pulse() error {
	c.delay.Delay(c.timing.Setup)
	if err := c.write(LineDSCLK, High); err != nil {
		return err
	}
	c.delay.Delay(c.timing.High)
	if err := c.write(LineDSCLK, Low); err != nil {
		return err
	}
	c.delay.Delay(c.timing.Low)
	c.pulses++
	return nil
}

// TransferBit drives out on DSI, clocks once and returns the DSO sample.
func (c *Clock) TransferBit(out Level) (Level, error) {
	if err := c.write(LineDSI, out); err != nil {
		return Low, err
	}
	if err := c.Pulse(); err != nil {
		return Low, err
	}
	in, err := c.port.ReadLevel(LineDSO)
	if err != nil {
		return Low, &PortError{Op: "read", Line: LineDSO, Err: err}
	}
	if glog.V(3) {
		glog.Infof("bdm: bit out=%s in=%s", out, in)
	}
	return in, nil
}

// ShiftOut clocks every bit of bits onto DSI. DSO is not sampled.
func (c *Clock) ShiftOut(bits BitSequence) error {
	for i := 0; i < bits.Width(); i++ {
		if err := c.write(LineDSI, bits.Bit(i)); err != nil {
			return err
		}
		if err := c.Pulse(); err != nil {
			return err
		}
	}
	return nil
}

// ShiftIn clocks n bits with DSI held low and returns the DSO samples.
func (c *Clock) ShiftIn(n int) (BitSequence, error) {
	if n <= 0 || n > MaxBitWidth {
		return BitSequence{}, errBitCount(n)
	}
	var in BitSequence
	for i := 0; i < n; i++ {
		bit, err := c.TransferBit(Low)
		if err != nil {
			return BitSequence{}, err
		}
		in = in.Append(bit)
	}
	return in, nil
}

// Exchange transfers out and samples one DSO bit per clock, returning a
// sequence of the same width. This is the full-duplex packet primitive.
func (c *Clock) Exchange(out BitSequence) (BitSequence, error) {
	var in BitSequence
	for i := 0; i < out.Width(); i++ {
		bit, err := c.TransferBit(out.Bit(i))
		if err != nil {
			return BitSequence{}, err
		}
		in = in.Append(bit)
	}
	return in, nil
}

func (c *Clock) write(line Line, level Level) error {
	if err := c.port.WriteLevel(line, level); err != nil {
		return &PortError{Op: "write", Line: line, Err: err}
	}
	return nil
}
