package bdm

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Session owns one BDM connection: the port, the bit engine, the framer and
// the target state. It is the only surface higher layers use. Operations run
// to completion on the calling goroutine; a Session serialises concurrent
// callers but two Sessions must never share a port.
type Session struct {
	port   Port
	clock  *Clock
	framer *Framer
	cfg    Config

	mu    sync.Mutex
	state TargetState
}

// NewSession takes ownership of port, parks the lines in their idle levels
// and returns a session in StateUnknown.
func NewSession(port Port, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clock := NewClock(port, cfg.Timing, cfg.Delayer)
	s := &Session{
		port:   port,
		clock:  clock,
		framer: NewFramer(clock, cfg.MaxRetries),
		cfg:    cfg,
	}
	if err := s.initLines(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// State reports the current target state.
func (s *Session) State() TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Packets reports how many packets the session has exchanged.
func (s *Session) Packets() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framer.Packets()
}

// Pulses reports how many DSCLK cycles the session has generated.
func (s *Session) Pulses() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Pulses()
}

// ResetTarget pulses RESET. It always succeeds electrically but proves
// nothing about the target; Sync does.
func (s *Session) ResetTarget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	glog.V(1).Infof("bdm: reset target (hold %v, settle %v)", s.cfg.ResetHold, s.cfg.ResetSettle)
	if err := s.drive(LineRESET, Low); err != nil {
		return err
	}
	s.wait(s.cfg.ResetHold)
	if err := s.drive(LineRESET, High); err != nil {
		return err
	}
	s.wait(s.cfg.ResetSettle)
	s.setState(StateReset)
	return nil
}

// Sync establishes packet alignment with the target's serial shifter. It
// sends NOP packets and accepts the first one answered with the complete
// status; after any other answer it slips one zero bit so a target holding a
// partial packet realigns. It gives up after SyncWindow clocks.
func (s *Session) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require("sync", StateReset, StateSynchronized, StateDebugMode); err != nil {
		return err
	}
	if err := s.drive(LineBKPT, High); err != nil {
		return err
	}

	clocks := 0
	var last Response
	for clocks+PacketBits <= s.cfg.SyncWindow {
		resp, err := s.framer.Exchange(OpNOP)
		if err != nil {
			return err
		}
		clocks += PacketBits
		last = resp
		glog.V(3).Infof("bdm: sync attempt after %d clocks: %s", clocks, resp)
		if resp.Complete() {
			glog.V(1).Infof("bdm: synchronized after %d clocks", clocks)
			s.setState(StateSynchronized)
			return nil
		}
		if clocks >= s.cfg.SyncWindow {
			break
		}
		if err := s.clock.ShiftOut(MustBitSequence(0, 1)); err != nil {
			return err
		}
		clocks++
	}
	glog.Warningf("bdm: sync failed after %d clocks, last response %s", clocks, last)
	return &SynchronizationError{Clocks: clocks, Last: last}
}

// EnterDebugMode asserts BKPT to halt the core and confirms the halt by
// reading CSR. On failure the state stays Synchronized.
func (s *Session) EnterDebugMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require("enter debug mode", StateSynchronized, StateDebugMode); err != nil {
		return err
	}
	if err := s.drive(LineBKPT, Low); err != nil {
		return err
	}
	s.wait(s.cfg.BreakpointHold)
	if err := s.drive(LineBKPT, High); err != nil {
		return err
	}

	res, err := s.framer.Send(ReadDebug(DebugCSR))
	if err != nil {
		s.noteFailure(err)
		return &DebugModeEntryError{Err: err}
	}
	csr := uint32(res.Uint64())
	if csr&(csrHalt|csrBkpt) == 0 {
		return &DebugModeEntryError{CSR: csr}
	}
	glog.V(1).Infof("bdm: target halted (CSR 0x%08X)", csr)
	s.setState(StateDebugMode)
	return nil
}

// Resume lets the halted core run again. The session stays synchronized.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(Go(), "resume"); err != nil {
		return err
	}
	s.setState(StateSynchronized)
	return nil
}

// Connect runs the full attach sequence: reset, sync, enter debug mode.
func (s *Session) Connect() error {
	if err := s.ResetTarget(); err != nil {
		return err
	}
	if err := s.Sync(); err != nil {
		return err
	}
	return s.EnterDebugMode()
}

// Disconnect parks the lines and forgets the target state.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.idleLines()
	s.setState(StateUnknown)
	return err
}

// Lines samples the current level of every BDM line.
func (s *Session) Lines() (map[Line]Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	levels := make(map[Line]Level, len(lineNames))
	for _, line := range AllLines() {
		level, err := s.port.ReadLevel(line)
		if err != nil {
			return nil, &PortError{Op: "read", Line: line, Err: err}
		}
		levels[line] = level
	}
	return levels, nil
}

// PulseClock generates n DSCLK cycles with DSI low and returns the DSO level
// after each one. It is a wiring check: the stray clocks break packet
// alignment, so a synchronized session drops back to Reset and must sync
// again.
func (s *Session) PulseClock(n int) ([]Level, error) {
	if n < 0 {
		return nil, fmt.Errorf("bdm: negative clock count %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.drive(LineDSI, Low); err != nil {
		return nil, err
	}
	levels := make([]Level, 0, n)
	for i := 0; i < n; i++ {
		if err := s.clock.Pulse(); err != nil {
			return levels, err
		}
		level, err := s.port.ReadLevel(LineDSO)
		if err != nil {
			return levels, &PortError{Op: "read", Line: LineDSO, Err: err}
		}
		levels = append(levels, level)
	}
	if n > 0 && (s.state == StateSynchronized || s.state == StateDebugMode) {
		s.setState(StateReset)
	}
	return levels, nil
}

// ReadMemory32 reads the longword at addr, which must be 4-byte aligned.
func (s *Session) ReadMemory32(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, &AlignmentError{Address: addr}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read(ReadMemory(addr), "read memory")
	if err != nil {
		return 0, &MemoryAccessError{Op: "read", Address: addr, Err: err}
	}
	return v, nil
}

// WriteMemory32 writes value to the longword at addr, which must be 4-byte
// aligned.
func (s *Session) WriteMemory32(addr, value uint32) error {
	if addr%4 != 0 {
		return &AlignmentError{Address: addr}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(WriteMemory(addr, value), "write memory"); err != nil {
		return &MemoryAccessError{Op: "write", Address: addr, Err: err}
	}
	return nil
}

// ReadRegister reads data or address register r.
func (s *Session) ReadRegister(r Register) (uint32, error) {
	if !r.Valid() {
		return 0, &InvalidRegisterError{Index: int(r), Kind: "general"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read(ReadRegister(r), "read register")
	if err != nil {
		return 0, &RegisterAccessError{Op: "read", Register: r.String(), Err: err}
	}
	return v, nil
}

// WriteRegister writes value into data or address register r.
func (s *Session) WriteRegister(r Register, value uint32) error {
	if !r.Valid() {
		return &InvalidRegisterError{Index: int(r), Kind: "general"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(WriteRegister(r, value), "write register"); err != nil {
		return &RegisterAccessError{Op: "write", Register: r.String(), Err: err}
	}
	return nil
}

// ReadRegisters reads D0..D7 then A0..A7.
func (s *Session) ReadRegisters() ([NumRegisters]uint32, error) {
	var regs [NumRegisters]uint32
	for r := D0; r < NumRegisters; r++ {
		v, err := s.ReadRegister(r)
		if err != nil {
			return regs, err
		}
		regs[r] = v
	}
	return regs, nil
}

// ReadControlRegister reads a processor control register such as PC or SR.
func (s *Session) ReadControlRegister(cr ControlRegister) (uint32, error) {
	if !cr.Valid() {
		return 0, &InvalidRegisterError{Index: int(cr), Kind: "control"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read(ReadControl(cr), "read control register")
	if err != nil {
		return 0, &RegisterAccessError{Op: "read", Register: cr.String(), Err: err}
	}
	return v, nil
}

// WriteControlRegister writes a processor control register.
func (s *Session) WriteControlRegister(cr ControlRegister, value uint32) error {
	if !cr.Valid() {
		return &InvalidRegisterError{Index: int(cr), Kind: "control"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(WriteControl(cr, value), "write control register"); err != nil {
		return &RegisterAccessError{Op: "write", Register: cr.String(), Err: err}
	}
	return nil
}

// read and send require s.mu held.
func (s *Session) read(cmd Command, op string) (uint32, error) {
	if err := s.require(op, StateDebugMode); err != nil {
		return 0, err
	}
	res, err := s.framer.Send(cmd)
	if err != nil {
		s.noteFailure(err)
		return 0, err
	}
	return uint32(res.Uint64()), nil
}

func (s *Session) send(cmd Command, op string) error {
	if err := s.require(op, StateDebugMode); err != nil {
		return err
	}
	if _, err := s.framer.Send(cmd); err != nil {
		s.noteFailure(err)
		return err
	}
	return nil
}

// noteFailure drops a halted session to Unknown when the target stops
// answering: the handshake state can no longer be trusted.
func (s *Session) noteFailure(err error) {
	if _, ok := err.(*CommandTimeoutError); ok && s.state == StateDebugMode {
		glog.Warningf("bdm: %v; target state no longer trusted", err)
		s.setState(StateUnknown)
	}
}

func (s *Session) require(op string, want ...TargetState) error {
	for _, st := range want {
		if s.state == st {
			return nil
		}
	}
	return &StateError{Op: op, State: s.state, Want: want}
}

func (s *Session) setState(st TargetState) {
	if s.state != st {
		glog.V(1).Infof("bdm: state %s -> %s", s.state, st)
	}
	s.state = st
}

func (s *Session) initLines() error {
	for _, line := range AllLines() {
		dir := DirectionOutput
		if line == LineDSO {
			dir = DirectionInput
		}
		if err := s.port.SetDirection(line, dir); err != nil {
			return &PortError{Op: "configure", Line: line, Err: err}
		}
	}
	return s.idleLines()
}

// idleLines drives the safe levels: clock and data low, the active-low
// BKPT and RESET released.
func (s *Session) idleLines() error {
	idle := []struct {
		line  Line
		level Level
	}{
		{LineDSI, Low},
		{LineDSCLK, Low},
		{LineBKPT, High},
		{LineRESET, High},
	}
	for _, l := range idle {
		if err := s.drive(l.line, l.level); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) drive(line Line, level Level) error {
	if err := s.port.WriteLevel(line, level); err != nil {
		return &PortError{Op: "write", Line: line, Err: err}
	}
	return nil
}

func (s *Session) wait(d time.Duration) {
	s.cfg.Delayer.Delay(d)
}
