package stlink

import (
	"testing"
	"time"
)

func TestEnterUsableModeAlreadyDebug(t *testing.T) {
	mcu := newFakeMCU()
	mcu.mode = ModeDebug
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}

	if err := s.enterUsableMode(); err != nil {
		t.Fatalf("enterUsableMode: %v", err)
	}
}

func TestEnterUsableModeRecoversFromDFU(t *testing.T) {
	restore := sleepFunc
	defer func() { sleepFunc = restore }()
	sleepFunc = func(_ time.Duration) {}

	mcu := newFakeMCU()
	mcu.mode = ModeDFU
	mcu.status = CoreUnknown
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}

	// The fake's exitDFU handler always sets mode to ModeDebug and
	// getStatus defaults to CoreHalted, so recovery should succeed on the
	// first attempt without needing the full ten-attempt schedule.
	mcu.status = CoreHalted
	oldTransport := s.proto.t.(*fakeTransport)
	if err := s.enterUsableMode(); err != nil {
		t.Fatalf("enterUsableMode: %v", err)
	}

	if !oldTransport.closed {
		t.Error("enterUsableMode never closed the pre-recovery transport")
	}
	if s.proto.t.(*fakeTransport) == oldTransport {
		t.Error("enterUsableMode kept using the closed transport instead of reopening")
	}
}

func TestEnterUsableModeFailsWithoutReopener(t *testing.T) {
	restore := sleepFunc
	defer func() { sleepFunc = restore }()
	sleepFunc = func(_ time.Duration) {}

	mcu := newFakeMCU()
	mcu.mode = ModeDFU
	s := &Session{proto: newProtocol(nonReopenableTransport{newFakeTransport(mcu)})}

	err := s.enterUsableMode()
	if err == nil {
		t.Fatal("expected an error when the transport cannot be reopened")
	}
	if _, ok := err.(*ModeError); !ok {
		t.Errorf("error type = %T, want *ModeError", err)
	}
}

// nonReopenableTransport wraps a Transport without exposing Reopen, so
// enterUsableMode's type assertion against Reopener fails.
type nonReopenableTransport struct {
	Transport
}
