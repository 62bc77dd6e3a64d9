package bdm

import (
	"github.com/golang/glog"
)

// Framer encodes commands into packets, sends them through the bit engine and
// collects results. Because the channel is full duplex, the answer to one
// packet arrives while the next one is shifted; results are fetched with NOP
// packets, which double as the not-ready poll.
type Framer struct {
	clock      *Clock
	maxRetries int

	packets uint64
}

// NewFramer creates a framer that polls a not-ready target at most maxRetries
// times after the first fetch before giving up.
func NewFramer(clock *Clock, maxRetries int) *Framer {
	return &Framer{clock: clock, maxRetries: maxRetries}
}

// Packets reports how many 17-bit packets have been exchanged.
func (f *Framer) Packets() uint64 {
	return f.packets
}

// Exchange sends one packet carrying word and returns the target's answer to
// the previous packet.
func (f *Framer) Exchange(word uint16) (Response, error) {
	in, err := f.clock.Exchange(EncodePacket(word))
	if err != nil {
		return Response{}, err
	}
	f.packets++
	resp, err := DecodeResponse(in)
	if err != nil {
		return Response{}, err
	}
	if glog.V(2) {
		glog.Infof("bdm: packet out=0x%04X in=%s", word, resp)
	}
	return resp, nil
}

// Send transmits cmd. For read-class commands it returns the result words
// assembled into one BitSequence, first word most significant; for the others
// the returned sequence is empty and success means the target reported
// completion.
func (f *Framer) Send(cmd Command) (BitSequence, error) {
	if glog.V(2) {
		glog.Infof("bdm: send %s", cmd)
	}
	for i, word := range cmd.Words() {
		resp, err := f.Exchange(word)
		if err != nil {
			return BitSequence{}, err
		}
		// The answer to the command word belongs to whatever came before.
		if i > 0 && resp.Illegal() {
			return BitSequence{}, &ResponseError{Command: cmd, Response: resp}
		}
	}

	n := cmd.ResponseWords()
	if n == 0 {
		if cmd.Kind == CmdNOP {
			return BitSequence{}, nil
		}
		resp, err := f.poll(cmd)
		if err != nil {
			return BitSequence{}, err
		}
		if !resp.Complete() {
			return BitSequence{}, &ResponseError{Command: cmd, Response: resp}
		}
		return BitSequence{}, nil
	}

	var result BitSequence
	for i := 0; i < n; i++ {
		resp, err := f.poll(cmd)
		if err != nil {
			return BitSequence{}, err
		}
		result = result.Concat(MustBitSequence(uint64(resp.Data), 16))
	}
	return result, nil
}

// poll fetches the next result word, retrying while the target is busy.
func (f *Framer) poll(cmd Command) (Response, error) {
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		resp, err := f.Exchange(OpNOP)
		if err != nil {
			return Response{}, err
		}
		switch {
		case resp.NotReady():
			if attempt > 0 && glog.V(2) {
				glog.Infof("bdm: %s not ready, retry %d/%d", cmd, attempt, f.maxRetries)
			}
			continue
		case resp.BusError(), resp.Illegal():
			return Response{}, &ResponseError{Command: cmd, Response: resp}
		}
		return resp, nil
	}
	return Response{}, &CommandTimeoutError{Command: cmd, Retries: f.maxRetries}
}
