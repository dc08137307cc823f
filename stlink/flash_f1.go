// flash_f1.go - STM32F1/F3-family flash controller (PM0075)

package stlink

const (
	f1FlashRegsBase = 0x40022000
	f1FlashKeyR     = f1FlashRegsBase + 0x04
	f1FlashSR       = f1FlashRegsBase + 0x0C
	f1FlashCR       = f1FlashRegsBase + 0x10
	f1FlashAR       = f1FlashRegsBase + 0x14

	f1FlashKey1 = 0x45670123
	f1FlashKey2 = 0xcdef89ab

	f1CRPG   = 0x01
	f1CRPER  = 0x02
	f1CRMER  = 0x04
	f1CRSTRT = 0x40
	f1CRLOCK = 0x80
)

type f1Controller struct{}

func (f1Controller) flashRegsBase() uint32 { return f1FlashRegsBase }

func (f1Controller) unlock(s *Session) error {
	if err := writeReg32(s, f1FlashKeyR, f1FlashKey1); err != nil {
		return err
	}
	return writeReg32(s, f1FlashKeyR, f1FlashKey2)
}

func (f1Controller) lock(s *Session) error {
	return writeReg32(s, f1FlashCR, f1CRLOCK)
}

// erasePage erases a single page: set PER, write the target address into
// FLASH_AR, set STRT, poll BSY, then check EOP before clearing PER.
func (f1Controller) erasePage(s *Session, addr uint32) error {
	if err := writeReg32(s, f1FlashCR, f1CRPER); err != nil {
		return err
	}
	if err := writeReg32(s, f1FlashAR, addr); err != nil {
		return err
	}
	if err := writeReg32(s, f1FlashCR, f1CRPER|f1CRSTRT); err != nil {
		return err
	}

	sr, ok := pollSR(s, f1FlashSR)
	if !ok {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit, TimedOut: true}
	}
	if sr&srEOP == 0 {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit}
	}

	return writeReg32(s, f1FlashCR, 0)
}

func (f1Controller) eraseAll(s *Session) error {
	if err := writeReg32(s, f1FlashCR, f1CRMER); err != nil {
		return err
	}
	if err := writeReg32(s, f1FlashCR, f1CRMER|f1CRSTRT); err != nil {
		return err
	}

	sr, ok := pollSR(s, f1FlashSR)
	if !ok {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit, TimedOut: true}
	}
	if sr&srEOP == 0 {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit}
	}

	return writeReg32(s, f1FlashCR, 0)
}
