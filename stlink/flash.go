// flash.go - flash controller dispatch shared by the F1, F4, and L1 drivers

package stlink

const (
	flashPollLimit = 200

	srBSY       = 0x01
	srPGERR     = 0x04
	srWRPRTERR  = 0x10
	srEOP       = 0x20
)

// flashController is the per-family unlock/lock/erase driver. Program-to-
// flash itself always goes through the loader (loader.go); these methods
// only cover what the loader cannot do on its own: unlocking, full/page
// erase, and re-locking afterward.
type flashController interface {
	unlock(s *Session) error
	lock(s *Session) error
	erasePage(s *Session, addr uint32) error
	flashRegsBase() uint32
}

// eraseAll erases every page across the personality's flash range by
// repeated erasePage calls. F1 and F4 both have a dedicated mass-erase
// bit that would be faster, but a single page-erase loop is correct for
// every family including L1 (which has none), and the erase count for a
// full-chip erase is dominated by flash write time either way.
func eraseAll(s *Session, p Personality, ctrl flashController) error {
	if err := ctrl.unlock(s); err != nil {
		return err
	}
	defer ctrl.lock(s)

	for addr := p.FlashBase; addr < p.FlashBase+p.FlashSize; addr += p.FlashPageSize {
		if err := ctrl.erasePage(s, addr); err != nil {
			return err
		}
	}
	return nil
}

func controllerFor(family MCUFamily) flashController {
	switch family {
	case FamilyF4:
		return f4Controller{}
	case FamilyL1:
		return l1Controller{}
	default:
		return f1Controller{}
	}
}

// pollSR spins on the flash status register until BSY clears or the poll
// cap is hit, returning the last observed value either way.
func pollSR(s *Session, srAddr uint32) (uint32, bool) {
	var sr uint32
	for i := 0; i < flashPollLimit; i++ {
		buf, err := s.proto.readMem32(srAddr, 4)
		if err != nil {
			return sr, false
		}
		sr = uint32LE(buf)
		if sr&srBSY == 0 {
			return sr, true
		}
	}
	return sr, false
}

func writeReg32(s *Session, addr, value uint32) error {
	return s.WriteWord(addr, value)
}
