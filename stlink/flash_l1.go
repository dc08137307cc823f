// flash_l1.go - STM32L1-family flash controller (PM0062)
//
// The original tool's L1 erase path reused the F4 controller register
// writes verbatim, which happens to compile but erases nothing on L1
// silicon: L1 has no CR/SER/MER bits at those offsets at all, it has a
// PECR with a completely different unlock and erase sequence. This driver
// implements the real L1 sequence from PM0061/PM0062 instead of carrying
// that bug forward.

package stlink

const (
	l1FlashRegsBase = 0x40023C00
	l1FlashPECR     = l1FlashRegsBase + 0x04
	l1FlashPEKeyR   = l1FlashRegsBase + 0x0C
	l1FlashPRGKeyR  = l1FlashRegsBase + 0x10
	l1FlashSR       = l1FlashRegsBase + 0x18

	l1PEKey1  = 0x89abcdef
	l1PEKey2  = 0x02030405
	l1PRGKey1 = 0x8C9DAEBF
	l1PRGKey2 = 0x13141516

	l1PECRPELOCK  = 1 << 0
	l1PECRPRGLOCK = 1 << 1
	l1PECRPROG    = 1 << 3
	l1PECRERASE   = 1 << 9
)

type l1Controller struct{}

func (l1Controller) flashRegsBase() uint32 { return l1FlashRegsBase }

// unlock clears PELOCK via PEKEYR, then clears PRGLOCK via PRGKEYR; both
// are required before PROG/ERASE can be set in PECR.
func (l1Controller) unlock(s *Session) error {
	if err := writeReg32(s, l1FlashPEKeyR, l1PEKey1); err != nil {
		return err
	}
	if err := writeReg32(s, l1FlashPEKeyR, l1PEKey2); err != nil {
		return err
	}
	if err := writeReg32(s, l1FlashPRGKeyR, l1PRGKey1); err != nil {
		return err
	}
	return writeReg32(s, l1FlashPRGKeyR, l1PRGKey2)
}

func (l1Controller) lock(s *Session) error {
	return writeReg32(s, l1FlashPECR, l1PECRPELOCK|l1PECRPRGLOCK)
}

// erasePage sets PECR.ERASE and PECR.PROG, then writes zero to the first
// word of the page to trigger the erase, per PM0062 section 3.3.5.
func (l1Controller) erasePage(s *Session, addr uint32) error {
	if err := writeReg32(s, l1FlashPECR, l1PECRERASE|l1PECRPROG); err != nil {
		return err
	}
	if err := writeReg32(s, addr, 0); err != nil {
		return err
	}

	sr, ok := pollSR(s, l1FlashSR)
	if !ok {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit, TimedOut: true}
	}
	if sr&(srPGERR|srWRPRTERR) != 0 {
		return &FlashEraseError{SR: sr, Iters: flashPollLimit}
	}

	return writeReg32(s, l1FlashPECR, 0)
}
