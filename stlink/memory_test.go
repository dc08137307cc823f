package stlink

import (
	"bytes"
	"testing"
)

func newTestSession() (*Session, *fakeMCU) {
	mcu := newFakeMCU()
	mcu.coreID = 0x1ba01477 // Cortex-M3 r1
	mcu.mode = ModeDebug
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3] // STM32F103xx (medium density)
	return s, mcu
}

func TestReadMemoryUnalignedHead(t *testing.T) {
	s, mcu := newTestSession()
	mcu.writeBytes(0x20000000, []byte{0, 1, 2, 3, 4, 5, 6, 7})

	got, err := s.ReadMemory(0x20000001, 4)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	want := []byte{1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadMemory(0x...001, 4) = % x, want % x", got, want)
	}
}

func TestReadMemoryAcrossBlockBoundary(t *testing.T) {
	s, mcu := newTestSession()
	data := make([]byte, readBlockSize+16)
	for i := range data {
		data[i] = byte(i)
	}
	mcu.writeBytes(0x20000000, data)

	got, err := s.ReadMemory(0x20000000, len(data))
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("ReadMemory across a block boundary did not round-trip")
	}
}

func TestWriteWordRejectsUnaligned(t *testing.T) {
	s, _ := newTestSession()
	if err := s.WriteWord(0x20000001, 0); err == nil {
		t.Fatal("expected an error for an unaligned WriteWord address")
	}
}

func TestWriteBulkAlignedChunking(t *testing.T) {
	s, mcu := newTestSession()
	data := make([]byte, writeBlockSize+8)
	for i := range data {
		data[i] = byte(i * 3)
	}
	if err := s.WriteBulk(0x20000000, data); err != nil {
		t.Fatalf("WriteBulk: %v", err)
	}
	got := mcu.readBytes(0x20000000, len(data))
	if !bytes.Equal(got, data) {
		t.Error("WriteBulk did not write the full aligned buffer")
	}
}

func TestWriteBulkRejectsOversizedUnaligned(t *testing.T) {
	s, _ := newTestSession()
	err := s.WriteBulk(0x20000001, make([]byte, 64))
	if err == nil {
		t.Fatal("expected an error for an oversized unaligned WriteBulk")
	}
	if _, ok := err.(*ArgumentError); !ok {
		t.Errorf("error type = %T, want *ArgumentError", err)
	}
}
