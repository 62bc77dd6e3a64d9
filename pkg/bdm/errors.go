package bdm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. Every typed error below matches exactly one.
var (
	ErrSync            = errors.New("bdm: synchronization failed")
	ErrDebugModeEntry  = errors.New("bdm: debug mode entry failed")
	ErrCommandTimeout  = errors.New("bdm: command timed out")
	ErrState           = errors.New("bdm: wrong target state")
	ErrAlignment       = errors.New("bdm: misaligned address")
	ErrInvalidRegister = errors.New("bdm: invalid register")
	ErrResponse        = errors.New("bdm: error response")
	ErrPort            = errors.New("bdm: port failure")
)

// PortError reports a failure of the digital I/O capability itself.
type PortError struct {
	Op   string
	Line Line
	Err  error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("bdm: %s %s: %v", e.Op, e.Line, e.Err)
}

func (e *PortError) Unwrap() error        { return e.Err }
func (e *PortError) Is(target error) bool { return target == ErrPort }

// SynchronizationError means the sync handshake never saw the expected
// response within the clock budget. Reset and sync again to retry.
type SynchronizationError struct {
	Clocks int
	Last   Response
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("bdm: no sync response after %d clocks (last %s)", e.Clocks, e.Last)
}

func (e *SynchronizationError) Is(target error) bool { return target == ErrSync }

// DebugModeEntryError means the target did not halt after BKPT. CSR holds the
// status register read back, when one was read.
type DebugModeEntryError struct {
	CSR uint32
	Err error
}

func (e *DebugModeEntryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bdm: target did not enter debug mode: %v", e.Err)
	}
	return fmt.Sprintf("bdm: target did not enter debug mode (CSR 0x%08X)", e.CSR)
}

func (e *DebugModeEntryError) Unwrap() error        { return e.Err }
func (e *DebugModeEntryError) Is(target error) bool { return target == ErrDebugModeEntry }

// CommandTimeoutError means the target kept answering not-ready after the
// retry ceiling.
type CommandTimeoutError struct {
	Command Command
	Retries int
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("bdm: %s still not ready after %d retries", e.Command, e.Retries)
}

func (e *CommandTimeoutError) Is(target error) bool { return target == ErrCommandTimeout }

// StateError is a local precondition failure; nothing was sent to the target.
type StateError struct {
	Op    string
	State TargetState
	Want  []TargetState
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = s.String()
	}
	return fmt.Sprintf("bdm: %s requires state %s, target is %s", e.Op, strings.Join(want, " or "), e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// AlignmentError rejects a 32-bit access to an address not divisible by 4.
type AlignmentError struct {
	Address uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("bdm: address 0x%08X is not 4-byte aligned", e.Address)
}

func (e *AlignmentError) Is(target error) bool { return target == ErrAlignment }

// InvalidRegisterError rejects a register index outside the architecture's
// range.
type InvalidRegisterError struct {
	Index int
	Kind  string
}

func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("bdm: invalid %s register %d (0x%X)", e.Kind, e.Index, e.Index)
}

func (e *InvalidRegisterError) Is(target error) bool { return target == ErrInvalidRegister }

// ResponseError carries a bus error or illegal command answer.
type ResponseError struct {
	Command  Command
	Response Response
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bdm: %s answered %s", e.Command, e.Response)
}

func (e *ResponseError) Is(target error) bool { return target == ErrResponse }

// MemoryAccessError wraps any failure of a memory operation past operand
// validation.
type MemoryAccessError struct {
	Op      string
	Address uint32
	Err     error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("bdm: %s memory at 0x%08X: %v", e.Op, e.Address, e.Err)
}

func (e *MemoryAccessError) Unwrap() error { return e.Err }

// RegisterAccessError wraps any failure of a register operation past operand
// validation.
type RegisterAccessError struct {
	Op       string
	Register string
	Err      error
}

func (e *RegisterAccessError) Error() string {
	return fmt.Sprintf("bdm: %s register %s: %v", e.Op, e.Register, e.Err)
}

func (e *RegisterAccessError) Unwrap() error { return e.Err }

func errBitCount(n int) error {
	return fmt.Errorf("bdm: bit count must be 1..%d, got %d", MaxBitWidth, n)
}
