// session.go - top-level handle binding a transport to an identified target

package stlink

import (
	"fmt"
	"log"
	"os"
)

// Session is the entry point the rest of this package is built around: one
// open probe, talking to one identified target, with its own logger and
// verbosity level. There is no package-level mutable state; every operation
// hangs off a *Session.
type Session struct {
	proto   *protocol
	logger  *log.Logger
	verbose bool

	id  TargetID
	per Personality
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithVerbose turns on diagnostic logging of probe-level warnings.
func WithVerbose(v bool) Option {
	return func(s *Session) { s.verbose = v }
}

// Open brings a transport into debug mode and identifies the attached
// target, returning a ready-to-use Session.
func Open(t Transport, opts ...Option) (*Session, error) {
	s := &Session{
		proto:  newProtocol(t),
		logger: log.New(os.Stderr, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.enterUsableMode(); err != nil {
		return nil, err
	}

	id, err := s.identify()
	if err != nil {
		return nil, err
	}
	s.id = id
	s.per = personalities[id.Personality]

	return s, nil
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.proto.t.Close()
}

func (s *Session) warnf(format string, args ...any) {
	if s.verbose {
		s.logger.Printf(format, args...)
	}
}

// target returns the resolved personality for the currently identified
// part; flash.go and loader.go read memory-map and flash geometry through
// this rather than holding their own copy.
func (s *Session) target() Personality { return s.per }

// TargetID exposes the identification result from Open.
func (s *Session) TargetID() TargetID { return s.id }

// Personality exposes the resolved memory map and flash geometry for the
// identified target.
func (s *Session) Personality() Personality { return s.per }

// Info reports a human-readable summary of the identified target: core
// name, MCU ID-code, matched personality, and flash/SRAM geometry. This
// mirrors the original tool's stm_info diagnostic.
func (s *Session) Info() string {
	return fmt.Sprintf("core=%s coreID=%#08x mcuID=%#08x part=%s flash=%dKB@%#08x sram=%dKB@%#08x",
		s.id.CoreName, s.id.CoreID, s.id.MCUIDCode, s.per.Name,
		s.per.FlashSize/1024, s.per.FlashBase,
		s.per.SRAMSize/1024, s.per.SRAMBase)
}

// ProbeVersionInfo is the decoded reply to a get-version command.
type ProbeVersionInfo struct {
	STLink, JTAG, SWIM byte
	VendorID, ProductID uint16
}

// Version queries and decodes the probe's own firmware version.
func (s *Session) Version() (ProbeVersionInfo, error) {
	v, err := s.proto.getVersion()
	if err != nil {
		return ProbeVersionInfo{}, err
	}
	return ProbeVersionInfo{
		STLink: v.stlink, JTAG: v.jtag, SWIM: v.swim,
		VendorID: v.vendorID, ProductID: v.productID,
	}, nil
}

// ReadRegister reads one core register by index (0-15 general purpose,
// 16 XPSR, 17 main SP, 18 process SP).
func (s *Session) ReadRegister(idx int) (uint32, error) {
	if idx < 0 || idx > 18 {
		return 0, &ArgumentError{Msg: fmt.Sprintf("register index %d out of range [0,18]", idx)}
	}
	return s.proto.readOneReg(byte(idx))
}

// WriteRegister writes one core register by index.
func (s *Session) WriteRegister(idx int, value uint32) error {
	if idx < 0 || idx > 18 {
		return &ArgumentError{Msg: fmt.Sprintf("register index %d out of range [0,18]", idx)}
	}
	return s.proto.writeReg(byte(idx), value)
}

// AllRegisters reads the full register snapshot in one transfer.
func (s *Session) AllRegisters() (RegisterSnapshot, error) {
	return s.proto.readAllRegs()
}

// Halt forces the core into debug state.
func (s *Session) Halt() error { return s.proto.forceDebug() }

// Run resumes the core.
func (s *Session) Run() error { return s.proto.run() }

// Step single-steps the core.
func (s *Session) Step() error { return s.proto.step() }

// Reset issues a system reset, leaving the core halted.
func (s *Session) Reset() error {
	if err := s.proto.resetSys(); err != nil {
		return err
	}
	return s.proto.forceDebug()
}

// Status reports whether the core is running or halted.
func (s *Session) Status() (CoreStatus, error) { return s.proto.getStatus() }

// SetBreakpoint arms one of the four flash-patch comparators at addr.
func (s *Session) SetBreakpoint(index int, addr uint32, sel FPSelector) error {
	return s.proto.setFP(index, addr, sel)
}

// ClearBreakpoint disarms a comparator.
func (s *Session) ClearBreakpoint(index int) error {
	return s.proto.clearFP(index)
}

// ErasePage erases a single flash page at addr.
func (s *Session) ErasePage(addr uint32) error {
	ctrl := controllerFor(s.per.Family)
	if err := ctrl.unlock(s); err != nil {
		return err
	}
	defer ctrl.lock(s)
	return ctrl.erasePage(s, addr)
}

// EraseAll erases the entire flash region of the identified target.
func (s *Session) EraseAll() error {
	return eraseAll(s, s.per, controllerFor(s.per.Family))
}
