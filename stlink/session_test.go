package stlink

import (
	"io"
	"log"
	"testing"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSessionInfo(t *testing.T) {
	mcu := newFakeMCU()
	mcu.coreID = 0x1ba01477
	mcu.writeBytes(defaultDBGMCUIDAddr, leWord(0x410))

	s := &Session{proto: newProtocol(newFakeTransport(mcu)), logger: discardLogger()}
	id, err := s.identify()
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	s.id = id
	s.per = personalities[id.Personality]

	info := s.Info()
	if info == "" {
		t.Fatal("Info() returned an empty string")
	}
}

func TestReadWriteRegisterRejectsOutOfRange(t *testing.T) {
	mcu := newFakeMCU()
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}

	if _, err := s.ReadRegister(19); err == nil {
		t.Fatal("expected an error reading register 19")
	}
	if err := s.WriteRegister(-1, 0); err == nil {
		t.Fatal("expected an error writing register -1")
	}
}

func TestResetHaltsCore(t *testing.T) {
	mcu := newFakeMCU()
	mcu.status = CoreRunning
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st != CoreHalted {
		t.Errorf("status after Reset = %v, want CoreHalted", st)
	}
}

func TestSetClearBreakpoint(t *testing.T) {
	mcu := newFakeMCU()
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}

	if err := s.SetBreakpoint(0, 0x08000100, FPLower); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if err := s.ClearBreakpoint(0); err != nil {
		t.Fatalf("ClearBreakpoint: %v", err)
	}
	if err := s.SetBreakpoint(4, 0x08000100, FPLower); err == nil {
		t.Fatal("expected an error for breakpoint index 4")
	}
}
