package stlink

import "testing"

func TestPersonalityByMCUIDFindsF103LowDensity(t *testing.T) {
	idx, ok := personalityByMCUID(0x412)
	if !ok {
		t.Fatal("personalityByMCUID(0x412): not found")
	}
	p := personalities[idx]
	if p.Name != "STM32F103xx (low density)" {
		t.Errorf("Name = %q, want STM32F103xx (low density)", p.Name)
	}
	if p.Family != FamilyF1 {
		t.Errorf("Family = %v, want FamilyF1", p.Family)
	}
	if p.FlashSize >= personalities[3].FlashSize {
		t.Errorf("low-density FlashSize = %d, want less than medium-density's %d", p.FlashSize, personalities[3].FlashSize)
	}
}

func TestIdentifyMatchesF103LowDensity(t *testing.T) {
	mcu := newFakeMCU()
	mcu.coreID = 0x1ba01477
	mcu.writeBytes(defaultDBGMCUIDAddr, leWord(0x412))

	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	id, err := s.identify()
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if personalities[id.Personality].Name != "STM32F103xx (low density)" {
		t.Errorf("Personality = %q, want STM32F103xx (low density)", personalities[id.Personality].Name)
	}
}
