package stlink

import "testing"

func TestIdentifyMatchesKnownPersonality(t *testing.T) {
	mcu := newFakeMCU()
	mcu.coreID = 0x1ba01477 // Cortex-M3 r1
	mcu.writeBytes(defaultDBGMCUIDAddr, leWord(0x410)) // STM32F103xx device id

	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	id, err := s.identify()
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.CoreName != "Cortex-M3 r1" {
		t.Errorf("CoreName = %q, want Cortex-M3 r1", id.CoreName)
	}
	if personalities[id.Personality].Name != "STM32F103xx (medium density)" {
		t.Errorf("Personality = %q, want STM32F103xx (medium density)", personalities[id.Personality].Name)
	}
}

func TestIdentifyM0UsesAlternateIDAddr(t *testing.T) {
	mcu := newFakeMCU()
	mcu.coreID = 0x0bb11477 // Cortex-M0
	mcu.writeBytes(0x40015800, leWord(0x444))

	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	id, err := s.identify()
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.CoreName != "Cortex-M0" {
		t.Errorf("CoreName = %q, want Cortex-M0", id.CoreName)
	}
	if personalities[id.Personality].Name != "STM32F05x" {
		t.Errorf("Personality = %q, want STM32F05x", personalities[id.Personality].Name)
	}
}

func TestIdentifyFallsBackOnUnknownID(t *testing.T) {
	mcu := newFakeMCU()
	mcu.coreID = 0xcafebabe
	mcu.writeBytes(defaultDBGMCUIDAddr, leWord(0xfff))

	s := &Session{proto: newProtocol(newFakeTransport(mcu)), logger: discardLogger()}
	id, err := s.identify()
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if personalities[id.Personality].Name != "generic" {
		t.Errorf("Personality = %q, want generic fallback", personalities[id.Personality].Name)
	}
}
