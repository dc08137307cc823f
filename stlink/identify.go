// identify.go - target identification: core ID scan then MCU ID-code scan

package stlink

// TargetID is the result of probing a freshly halted core: which ARM
// debug core it reports, which STM32 device the DBGMCU_IDCODE read
// matches, and the resolved personality to use for all flash operations.
type TargetID struct {
	CoreID      uint32
	CoreName    string
	MCUIDCode   uint32
	Personality int
}

// identify reads the core ID over SWD, then reads the MCU's DBGMCU_IDCODE
// register to resolve a Personality. Cortex-M0 parts expose DBGMCU_IDCODE
// at 0x40015800 instead of the usual 0xE0042000 (per spec section 5), so
// the core ID determines which address to read first.
func (s *Session) identify() (TargetID, error) {
	coreID, err := s.proto.readCoreID()
	if err != nil {
		return TargetID{}, err
	}

	name, _ := coreName(coreID)

	addr := uint32(defaultDBGMCUIDAddr)
	if name == "Cortex-M0" {
		addr = 0x40015800
	}

	raw, err := s.proto.readMem32(addr, 4)
	if err != nil {
		return TargetID{}, err
	}
	idCode := uint32LE(raw)

	idx, ok := personalityByMCUID(idCode)
	if !ok {
		s.warnf("%v", &IdentificationWarning{CoreID: coreID, McuID: idCode})
	}

	return TargetID{
		CoreID:      coreID,
		CoreName:    name,
		MCUIDCode:   idCode,
		Personality: idx,
	}, nil
}
