// Package dump reads address ranges from a target and writes them out as
// raw binary, annotated hex, Motorola S-records or Intel HEX.
package dump

import (
	"context"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

// WordReader is the slice of a session a dump needs.
type WordReader interface {
	ReadMemory32(addr uint32) (uint32, error)
}

// ProgressFunc is called as a dump advances. done and total count bytes;
// addr is the next address to be read.
type ProgressFunc func(done, total, addr uint64)

// progressEvery is how many words are read between progress reports.
const progressEvery = 256

// Fault records a word that could not be read and was zero filled.
type Fault struct {
	Address uint32
	Err     error
}

// Result is the outcome of Read.
type Result struct {
	Start  uint32
	Data   []byte
	Faults []Fault
}

// Read reads [start, end) one longword at a time, big-endian. A word the
// target refuses is zero filled and recorded as a Fault; the dump goes on.
// It stops early when ctx is cancelled (checked between words) or when the
// session leaves debug mode, returning what it has together with the error.
// The returned data is trimmed to end-start bytes.
func Read(ctx context.Context, r WordReader, start, end uint64, progress ProgressFunc) (*Result, error) {
	if start%4 != 0 {
		return nil, &bdm.AlignmentError{Address: uint32(start)}
	}
	if start >= end {
		return nil, errors.Errorf("dump: start 0x%08X is not below end 0x%08X", start, end)
	}
	if end > 1<<32 {
		return nil, errors.Errorf("dump: end 0x%X is beyond the 32-bit address space", end)
	}

	size := end - start
	words := (size + 3) / 4
	res := &Result{Start: uint32(start), Data: make([]byte, 0, words*4)}
	var buf [4]byte

	for i := uint64(0); i < words; i++ {
		addr := start + i*4
		if err := ctx.Err(); err != nil {
			res.trim(size)
			return res, err
		}
		if progress != nil && i%progressEvery == 0 {
			progress(i*4, size, addr)
		}

		v, err := r.ReadMemory32(uint32(addr))
		if err != nil {
			if errors.Is(err, bdm.ErrState) {
				res.trim(size)
				return res, err
			}
			glog.Warningf("dump: 0x%08X unreadable, zero filled: %v", addr, err)
			res.Faults = append(res.Faults, Fault{Address: uint32(addr), Err: err})
			v = 0
		}
		binary.BigEndian.PutUint32(buf[:], v)
		res.Data = append(res.Data, buf[:]...)
	}
	res.trim(size)
	if progress != nil {
		progress(size, size, end)
	}
	return res, nil
}

func (r *Result) trim(size uint64) {
	if uint64(len(r.Data)) > size {
		r.Data = r.Data[:size]
	}
}
