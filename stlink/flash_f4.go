// flash_f4.go - STM32F4-family flash controller (PM0081)

package stlink

const (
	f4FlashRegsBase = 0x40023C00
	f4FlashKeyR     = f4FlashRegsBase + 0x04
	f4FlashSR       = f4FlashRegsBase + 0x0C
	f4FlashCR       = f4FlashRegsBase + 0x10

	f4FlashKey1 = 0x45670123
	f4FlashKey2 = 0xcdef89ab

	f4CRPG   = 0x01
	f4CRSER  = 0x02
	f4CRMER  = 0x04
	f4CRSTRT = 1 << 16
	f4CRLOCK = 1 << 31

	// F4 flash errors are a wider field than F1/L1: address error, program
	// sequence error, and program parallelism error join PGAERR/WRPERR.
	f4SRErrorMask = 0xF0
)

type f4Controller struct{}

func (f4Controller) flashRegsBase() uint32 { return f4FlashRegsBase }

func (f4Controller) unlock(s *Session) error {
	if err := writeReg32(s, f4FlashKeyR, f4FlashKey1); err != nil {
		return err
	}
	return writeReg32(s, f4FlashKeyR, f4FlashKey2)
}

func (f4Controller) lock(s *Session) error {
	return writeReg32(s, f4FlashCR, f4CRLOCK)
}

// erasePage erases the sector containing addr. The F4 family addresses
// sectors by index in the CR's SNB field rather than by address; this
// derives that index assuming the personality's uniform FlashPageSize
// (the real part has non-uniform sector sizes in its first bank, which
// this simplification does not model).
func (f4Controller) erasePage(s *Session, addr uint32) error {
	sectorIdx := (addr - s.target().FlashBase) / s.target().FlashPageSize
	cr := f4CRSER | (sectorIdx&0x1f)<<3
	if err := writeReg32(s, f4FlashCR, cr); err != nil {
		return err
	}
	if err := writeReg32(s, f4FlashCR, cr|f4CRSTRT); err != nil {
		return err
	}

	sr, ok := pollSR(s, f4FlashSR)
	if !ok {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit, TimedOut: true}
	}
	if sr&f4SRErrorMask != 0 {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit}
	}

	return writeReg32(s, f4FlashCR, 0)
}

func (f4Controller) eraseAll(s *Session) error {
	if err := writeReg32(s, f4FlashCR, f4CRMER); err != nil {
		return err
	}
	if err := writeReg32(s, f4FlashCR, f4CRMER|f4CRSTRT); err != nil {
		return err
	}

	sr, ok := pollSR(s, f4FlashSR)
	if !ok {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit, TimedOut: true}
	}
	if sr&f4SRErrorMask != 0 {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit}
	}

	return writeReg32(s, f4FlashCR, 0)
}
