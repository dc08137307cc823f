package stlink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProgramAndVerifyFileRoundTrip(t *testing.T) {
	mcu := newFakeMCU()
	mcu.haltAfter = 1
	mcu.writeBytes(f1FlashSR, leWord(srEOP))

	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3] // STM32F103xx

	dir := t.TempDir()
	path := filepath.Join(dir, "firmware.bin")
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := s.ProgramFile(path, s.per.FlashBase); err != nil {
		t.Fatalf("ProgramFile: %v", err)
	}
	if err := s.VerifyFile(path, s.per.FlashBase); err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
}

func TestVerifyFileReportsMismatch(t *testing.T) {
	mcu := newFakeMCU()
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3]

	dir := t.TempDir()
	path := filepath.Join(dir, "firmware.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4}, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Target memory at FlashBase is all zero in a fresh fake MCU, so this
	// must report a mismatch against the nonzero file contents.
	err := s.VerifyFile(path, s.per.FlashBase)
	if err == nil {
		t.Fatal("expected a VerifyMismatchError")
	}
	if _, ok := err.(*VerifyMismatchError); !ok {
		t.Errorf("error type = %T, want *VerifyMismatchError", err)
	}
}

func TestDumpToFile(t *testing.T) {
	mcu := newFakeMCU()
	mcu.writeBytes(0x20000000, []byte{9, 8, 7, 6})
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3]

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.bin")
	if err := s.DumpToFile(path, 0x20000000, 4); err != nil {
		t.Fatalf("DumpToFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []byte{9, 8, 7, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
