// protocol.go - probe command framing, dispatch, and status decoding

package stlink

import "fmt"

// Top-level opcodes (command frame byte 0).
const (
	cmdGetVersion     = 0xF1
	cmdDebug          = 0xF2
	cmdDFU            = 0xF3
	cmdV2             = 0xF4
	cmdGetCurrentMode = 0xF5
	cmdV3             = 0xF6
)

// Debug sub-opcodes (command frame byte 1, under cmdDebug).
const (
	debugEnterMode    = 0x20
	debugExit         = 0x21
	debugReadCoreID   = 0x22
	debugGetStatus    = 0x01
	debugForceDebug   = 0x02
	debugResetSys     = 0x03
	debugReadAllRegs  = 0x04
	debugReadOneReg   = 0x05
	debugWriteReg     = 0x06
	debugReadMem32    = 0x07
	debugWriteMem32   = 0x08
	debugRunCore      = 0x09
	debugStepCore     = 0x0A
	debugSetFP        = 0x0B
	debugWriteMem8    = 0x0D
	debugClearFP      = 0x0E
	debugWriteDbgReg  = 0x0F
)

// Mode sub-opcodes, argument to debugEnterMode.
const (
	modeSWD  = 0xA3
	modeJTAG = 0x00
)

// DFU sub-opcodes.
const (
	dfuExit = 0x07
)

// Status replies. A 2-byte reply is a little-endian status word.
const (
	statusOK          = 0x80 // core running
	statusFalse       = 0x81 // core halted
	coreStateUnknown  = 0x02 // not reported by the probe; internal use only
)

// Core status as reported by get-status.
type CoreStatus int

const (
	CoreUnknown CoreStatus = iota
	CoreRunning
	CoreHalted
)

func decodeCoreStatus(v uint16) CoreStatus {
	switch v & 0xff {
	case statusOK:
		return CoreRunning
	case statusFalse:
		return CoreHalted
	default:
		return CoreUnknown
	}
}

// ProbeMode mirrors the reply to get-current-mode.
type ProbeMode int

const (
	ModeUnknown ProbeMode = iota
	ModeDFU
	ModeMass
	ModeDebug
	ModeSWIM
	ModeBootloader
)

func decodeProbeMode(v uint16) ProbeMode {
	switch v & 0xff {
	case 0x00:
		return ModeDFU
	case 0x01:
		return ModeMass
	case 0x02:
		return ModeDebug
	case 0x03:
		return ModeSWIM
	case 0x04:
		return ModeBootloader
	default:
		return ModeUnknown
	}
}

// maxDataLen is large enough for the biggest single transfer this core
// issues: a loader image (program + params + up to a 2KB chunk).
const maxDataLen = 6*1024 + 4

// cmdFrame is the fixed-size opaque command buffer plus its paired data
// buffer, per spec section 3 "Probe command frame". Before a transfer,
// (dir, len(data), cmd[:cmdLen]) fully determines what happens on the wire.
type cmdFrame struct {
	cmd    [10]byte
	cmdLen int
	data   []byte
	dir    direction
}

type direction int

const (
	dirFromDevice direction = iota
	dirToDevice
)

func newFrame(dir direction, dataLen int) *cmdFrame {
	return &cmdFrame{dir: dir, data: make([]byte, dataLen)}
}

func (f *cmdFrame) setCmd(bytes ...byte) {
	f.cmdLen = copy(f.cmd[:], bytes)
}

// protocol wraps a Transport with the STLink command vocabulary.
type protocol struct {
	t Transport
}

func newProtocol(t Transport) *protocol { return &protocol{t: t} }

// exchange issues a command-phase transfer, then a data-phase transfer in
// the frame's declared direction, per spec section 4.1/4.2.
func (p *protocol) exchange(f *cmdFrame) error {
	if err := p.t.SendCommand(f.cmd[:f.cmdLen]); err != nil {
		return err
	}
	if len(f.data) == 0 {
		return nil
	}
	switch f.dir {
	case dirToDevice:
		n, err := p.t.SendData(f.data)
		if err != nil {
			return err
		}
		if n != len(f.data) {
			return &TransportError{Op: "send data", Wanted: len(f.data), Got: n}
		}
	case dirFromDevice:
		n, err := p.t.RecvData(f.data)
		if err != nil {
			return err
		}
		if n != len(f.data) {
			return &TransportError{Op: "recv data", Wanted: len(f.data), Got: n}
		}
	}
	return nil
}

// --- Probe-only commands ---

type probeVersion struct {
	stlink, jtag, swim byte
	vendorID, productID uint16
}

func (p *protocol) getVersion() (probeVersion, error) {
	f := newFrame(dirFromDevice, 6)
	f.setCmd(cmdGetVersion)
	if err := p.exchange(f); err != nil {
		return probeVersion{}, err
	}
	raw := uint16BE(f.data[0:2])
	v, j, s := unpackVersionField(raw)
	return probeVersion{
		stlink:    v,
		jtag:      j,
		swim:      s,
		vendorID:  uint16LE(f.data[2:4]),
		productID: uint16LE(f.data[4:6]),
	}, nil
}

func (p *protocol) getCurrentMode() (ProbeMode, error) {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdGetCurrentMode)
	if err := p.exchange(f); err != nil {
		return ModeUnknown, err
	}
	return decodeProbeMode(uint16LE(f.data)), nil
}

func (p *protocol) exitDFU() error {
	f := newFrame(dirFromDevice, 0)
	f.setCmd(cmdDFU, dfuExit)
	return p.exchange(f)
}

// --- Debug entry/exit ---

func (p *protocol) enterSWD() error {
	f := newFrame(dirFromDevice, 0)
	f.setCmd(cmdDebug, debugEnterMode, modeSWD)
	return p.exchange(f)
}

func (p *protocol) enterJTAG() error {
	f := newFrame(dirFromDevice, 0)
	f.setCmd(cmdDebug, debugEnterMode, modeJTAG)
	return p.exchange(f)
}

func (p *protocol) exitDebug() error {
	f := newFrame(dirFromDevice, 0)
	f.setCmd(cmdDebug, debugExit)
	return p.exchange(f)
}

// --- Core control ---

func (p *protocol) readCoreID() (uint32, error) {
	f := newFrame(dirFromDevice, 4)
	f.setCmd(cmdDebug, debugReadCoreID)
	if err := p.exchange(f); err != nil {
		return 0, err
	}
	return uint32LE(f.data), nil
}

func (p *protocol) getStatus() (CoreStatus, error) {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugGetStatus)
	if err := p.exchange(f); err != nil {
		return CoreUnknown, err
	}
	return decodeCoreStatus(uint16LE(f.data)), nil
}

func (p *protocol) forceDebug() error {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugForceDebug)
	return p.exchange(f)
}

func (p *protocol) resetSys() error {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugResetSys)
	return p.exchange(f)
}

func (p *protocol) run() error {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugRunCore)
	return p.exchange(f)
}

func (p *protocol) step() error {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugStepCore)
	return p.exchange(f)
}

// --- Registers ---

// RegisterSnapshot is the 21-word little-endian register file the probe
// returns for a read-all-registers command, per spec section 3.
type RegisterSnapshot struct {
	R         [16]uint32 // r0..r15; r15 is PC
	XPSR      uint32
	MainSP    uint32
	ProcessSP uint32
	RW        uint32
	RW2       uint32
}

func (p *protocol) readAllRegs() (RegisterSnapshot, error) {
	f := newFrame(dirFromDevice, 84)
	f.setCmd(cmdDebug, debugReadAllRegs)
	if err := p.exchange(f); err != nil {
		return RegisterSnapshot{}, err
	}
	var s RegisterSnapshot
	for i := 0; i < 16; i++ {
		s.R[i] = uint32LE(f.data[i*4:])
	}
	s.XPSR = uint32LE(f.data[64:])
	s.MainSP = uint32LE(f.data[68:])
	s.ProcessSP = uint32LE(f.data[72:])
	s.RW = uint32LE(f.data[76:])
	s.RW2 = uint32LE(f.data[80:])
	return s, nil
}

func (p *protocol) readOneReg(idx byte) (uint32, error) {
	f := newFrame(dirFromDevice, 4)
	f.setCmd(cmdDebug, debugReadOneReg, idx)
	if err := p.exchange(f); err != nil {
		return 0, err
	}
	return uint32LE(f.data), nil
}

func (p *protocol) writeReg(idx byte, value uint32) error {
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugWriteReg, idx)
	putUint32LE(f.cmd[3:7], value)
	f.cmdLen = 7
	return p.exchange(f)
}

// --- Memory ---

func (p *protocol) readMem32(addr uint32, length uint16) ([]byte, error) {
	f := newFrame(dirFromDevice, int(length))
	f.setCmd(cmdDebug, debugReadMem32)
	putUint32LE(f.cmd[2:6], addr)
	putUint16LE(f.cmd[6:8], length)
	f.cmdLen = 8
	if err := p.exchange(f); err != nil {
		return nil, err
	}
	return f.data, nil
}

func (p *protocol) writeMem32(addr uint32, buf []byte) error {
	if len(buf)%4 != 0 {
		return &ArgumentError{Msg: fmt.Sprintf("writeMem32: length %d is not a multiple of 4", len(buf))}
	}
	f := newFrame(dirToDevice, len(buf))
	f.setCmd(cmdDebug, debugWriteMem32)
	putUint32LE(f.cmd[2:6], addr)
	putUint16LE(f.cmd[6:8], uint16(len(buf)))
	f.cmdLen = 8
	copy(f.data, buf)
	return p.exchange(f)
}

func (p *protocol) writeMem8(addr uint32, buf []byte) error {
	if len(buf) >= 64 {
		return &ArgumentError{Msg: fmt.Sprintf("writeMem8: length %d must be under 64", len(buf))}
	}
	f := newFrame(dirToDevice, len(buf))
	f.setCmd(cmdDebug, debugWriteMem8)
	putUint32LE(f.cmd[2:6], addr)
	putUint16LE(f.cmd[6:8], uint16(len(buf)))
	f.cmdLen = 8
	copy(f.data, buf)
	return p.exchange(f)
}

// --- Breakpoints (flash-patch) ---

type FPSelector byte

const (
	FPLower FPSelector = 0x00
	FPUpper FPSelector = 0x01
	FPBoth  FPSelector = 0x02
)

func (p *protocol) setFP(index int, addr uint32, sel FPSelector) error {
	if index < 0 || index > 3 {
		return &ArgumentError{Msg: fmt.Sprintf("breakpoint index %d out of range [0,3]", index)}
	}
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugSetFP, byte(index))
	putUint32LE(f.cmd[3:7], addr)
	f.cmd[7] = byte(sel)
	f.cmdLen = 8
	return p.exchange(f)
}

func (p *protocol) clearFP(index int) error {
	if index < 0 || index > 3 {
		return &ArgumentError{Msg: fmt.Sprintf("breakpoint index %d out of range [0,3]", index)}
	}
	f := newFrame(dirFromDevice, 2)
	f.setCmd(cmdDebug, debugClearFP, byte(index))
	return p.exchange(f)
}
