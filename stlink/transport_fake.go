// transport_fake.go - in-memory probe simulator for tests

package stlink

import "fmt"

// fakeMCU models one flash controller family's register block plus a
// backing SRAM/flash array, enough to drive loader.go and flash_*.go through
// their paces without real hardware. It is not exported: production code
// only ever sees the Transport interface.
type fakeMCU struct {
	coreID uint32
	idCode uint32
	mode   ProbeMode
	status CoreStatus

	mem map[uint32][]byte // page-granular sparse memory, keyed by 1KB-aligned base

	regs RegisterSnapshot

	// flash control registers, generic across families; the specific
	// addresses used depend on which family the test configures.
	flashRegs map[uint32]uint32

	// pendingLoaderAddr/pendingLoaderLen record the most recent write of at
	// least loaderMinWriteLen bytes, on the assumption that it was a
	// loader-image-plus-params-plus-payload download. run() "executes" it
	// by copying the payload from its recorded source to its recorded
	// destination within the same flat memory map, standing in for the
	// real core actually running the copy loop.
	pendingLoaderAddr uint32
	pendingLoaderLen  int
	loaderSeen        bool

	haltAfter   int // halt the simulated core after this many getStatus polls
	statusPolls int

	runCalled bool
}

// loaderImageLen is the fake's assumption about how many bytes of a
// download are the loader program proper, before the 16-byte parameter
// block starts. Both loader images in loader.go are this length.
const loaderImageLen = 44
const loaderMinWriteLen = loaderImageLen + 16

func newFakeMCU() *fakeMCU {
	return &fakeMCU{
		mem:       make(map[uint32][]byte),
		flashRegs: make(map[uint32]uint32),
		mode:      ModeDebug,
		status:    CoreHalted,
	}
}

func pageBase(addr uint32) uint32 { return addr &^ 0x3ff }

func (m *fakeMCU) pageFor(addr uint32) []byte {
	base := pageBase(addr)
	p, ok := m.mem[base]
	if !ok {
		p = make([]byte, 1024)
		m.mem[base] = p
	}
	return p
}

func (m *fakeMCU) readBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		a := addr + uint32(i)
		out[i] = m.pageFor(a)[a-pageBase(a)]
	}
	return out
}

func (m *fakeMCU) writeBytes(addr uint32, buf []byte) {
	for i, b := range buf {
		a := addr + uint32(i)
		m.pageFor(a)[a-pageBase(a)] = b
	}
}

// fakeTransport implements Transport directly in terms of fakeMCU, parsing
// the same command bytes protocol.go produces. This exercises the real
// framing code in protocol.go, not a shortcut around it.
type fakeTransport struct {
	mcu *fakeMCU

	pending []byte // last command frame bytes, awaiting its data phase
	closed  bool
}

func newFakeTransport(mcu *fakeMCU) *fakeTransport {
	return &fakeTransport{mcu: mcu}
}

func (f *fakeTransport) SendCommand(cmd []byte) error {
	if f.closed {
		return fmt.Errorf("fake transport: closed")
	}
	f.pending = append([]byte(nil), cmd...)
	return nil
}

func (f *fakeTransport) SendData(buf []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fake transport: closed")
	}
	if err := f.handle(f.pending, buf, dirToDevice); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (f *fakeTransport) RecvData(buf []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fake transport: closed")
	}
	if err := f.handle(f.pending, buf, dirFromDevice); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// Reopen stands in for the probe re-enumerating after a DFU exit: it
// returns a fresh handle onto the same simulated MCU, so mode.go's
// recovery loop can be exercised without a real USB bus.
func (f *fakeTransport) Reopen() (Transport, error) {
	return newFakeTransport(f.mcu), nil
}

// handle dispatches on the command's leading opcode bytes, mutating or
// reading from mcu and filling/consuming buf as the real probe would.
func (f *fakeTransport) handle(cmd, buf []byte, dir direction) error {
	if len(cmd) == 0 {
		return fmt.Errorf("fake transport: empty command")
	}
	switch cmd[0] {
	case cmdGetVersion:
		putUint16LE(buf[0:2], 0) // overwritten below, big-endian packed field
		raw := uint16(2)<<12 | uint16(20)<<6 | 0
		buf[0] = byte(raw >> 8)
		buf[1] = byte(raw)
		putUint16LE(buf[2:4], 0x0483)
		putUint16LE(buf[4:6], 0x3748)
		return nil

	case cmdGetCurrentMode:
		putUint16LE(buf, uint16(modeCode(f.mcu.mode)))
		return nil

	case cmdDFU:
		f.mcu.mode = ModeDebug
		return nil

	case cmdDebug:
		return f.handleDebug(cmd, buf, dir)
	}
	return fmt.Errorf("fake transport: unhandled opcode %#x", cmd[0])
}

func modeCode(m ProbeMode) int {
	switch m {
	case ModeDFU:
		return 0
	case ModeMass:
		return 1
	case ModeDebug:
		return 2
	case ModeSWIM:
		return 3
	case ModeBootloader:
		return 4
	default:
		return -1
	}
}

func (f *fakeTransport) handleDebug(cmd, buf []byte, dir direction) error {
	sub := cmd[1]
	switch sub {
	case debugEnterMode:
		f.mcu.mode = ModeDebug
		return nil
	case debugExit:
		return nil
	case debugReadCoreID:
		putUint32LE(buf, f.mcu.coreID)
		return nil
	case debugGetStatus:
		f.mcu.statusPolls++
		if f.mcu.haltAfter > 0 && f.mcu.statusPolls >= f.mcu.haltAfter {
			f.mcu.status = CoreHalted
		}
		if f.mcu.status == CoreHalted {
			putUint16LE(buf, statusFalse)
		} else {
			putUint16LE(buf, statusOK)
		}
		return nil
	case debugForceDebug:
		f.mcu.status = CoreHalted
		return nil
	case debugResetSys:
		f.mcu.status = CoreHalted
		return nil
	case debugReadAllRegs:
		for i := 0; i < 16; i++ {
			putUint32LE(buf[i*4:], f.mcu.regs.R[i])
		}
		putUint32LE(buf[64:], f.mcu.regs.XPSR)
		putUint32LE(buf[68:], f.mcu.regs.MainSP)
		putUint32LE(buf[72:], f.mcu.regs.ProcessSP)
		putUint32LE(buf[76:], f.mcu.regs.RW)
		putUint32LE(buf[80:], f.mcu.regs.RW2)
		return nil
	case debugReadOneReg:
		idx := cmd[2]
		putUint32LE(buf, f.regByIndex(idx))
		return nil
	case debugWriteReg:
		idx := cmd[2]
		val := uint32LE(cmd[3:7])
		f.setRegByIndex(idx, val)
		putUint16LE(buf, statusOK)
		return nil
	case debugReadMem32:
		addr := uint32LE(cmd[2:6])
		copy(buf, f.mcu.readBytes(addr, len(buf)))
		return nil
	case debugWriteMem32, debugWriteMem8:
		addr := uint32LE(cmd[2:6])
		f.mcu.writeBytes(addr, buf)
		if len(buf) >= loaderMinWriteLen {
			f.mcu.pendingLoaderAddr = addr
			f.mcu.pendingLoaderLen = len(buf)
			f.mcu.loaderSeen = true
		}
		return nil
	case debugRunCore:
		f.mcu.status = CoreRunning
		f.mcu.runCalled = true
		f.executePendingLoader()
		putUint16LE(buf, statusOK)
		return nil
	case debugStepCore:
		putUint16LE(buf, statusOK)
		return nil
	case debugSetFP, debugClearFP:
		putUint16LE(buf, statusOK)
		return nil
	}
	return fmt.Errorf("fake transport: unhandled debug sub-opcode %#x", sub)
}

// executePendingLoader stands in for the core actually running the
// downloaded loader: it decodes the parameter block and copies the
// payload from its recorded source to its recorded destination.
func (f *fakeTransport) executePendingLoader() {
	if f.mcu.pendingLoaderLen < loaderMinWriteLen {
		return
	}
	paramsAddr := f.mcu.pendingLoaderAddr + loaderImageLen
	params := f.mcu.readBytes(paramsAddr, 16)
	src := uint32LE(params[4:8])
	dst := uint32LE(params[8:12])
	count := uint32LE(params[12:16])

	payload := f.mcu.readBytes(src, int(count)*2)
	f.mcu.writeBytes(dst, payload)

	f.mcu.pendingLoaderLen = 0
}

func (f *fakeTransport) regByIndex(idx byte) uint32 {
	if idx < 16 {
		return f.mcu.regs.R[idx]
	}
	switch idx {
	case 16:
		return f.mcu.regs.XPSR
	case 17:
		return f.mcu.regs.MainSP
	case 18:
		return f.mcu.regs.ProcessSP
	}
	return 0
}

func (f *fakeTransport) setRegByIndex(idx byte, v uint32) {
	if idx < 16 {
		f.mcu.regs.R[idx] = v
		return
	}
	switch idx {
	case 16:
		f.mcu.regs.XPSR = v
	case 17:
		f.mcu.regs.MainSP = v
	case 18:
		f.mcu.regs.ProcessSP = v
	}
}
