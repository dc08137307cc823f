// fileops.go - program/dump/verify against a local file

package stlink

import (
	"bytes"
	"fmt"
	"os"
)

const verifyBlockSize = 1024

// ProgramFile reads path and writes its full contents to flash starting at
// addr, erasing each destination page first. Oversized files (larger than
// the target's flash) are logged as a warning and attempted anyway, since
// a partial write the caller can inspect is more useful than a refusal.
func (s *Session) ProgramFile(path string, addr uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("stlink: read %s: %w", path, err)
	}

	if uint32(len(data)) > s.per.FlashSize {
		s.warnf("stlink: %s is %d bytes, larger than the %d byte flash; writing anyway", path, len(data), s.per.FlashSize)
	}

	pageSize := s.per.FlashPageSize
	ctrl := controllerFor(s.per.Family)
	if err := ctrl.unlock(s); err != nil {
		return err
	}
	start := addr &^ (pageSize - 1)
	end := addr + uint32(len(data))
	for page := start; page < end; page += pageSize {
		if err := ctrl.erasePage(s, page); err != nil {
			ctrl.lock(s)
			return err
		}
	}
	if err := ctrl.lock(s); err != nil {
		return err
	}

	return s.WriteFlash(s.per, addr, data)
}

// DumpToFile reads length bytes from target memory starting at addr and
// writes them to path.
func (s *Session) DumpToFile(path string, addr uint32, length int) error {
	data, err := s.ReadMemory(addr, length)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("stlink: write %s: %w", path, err)
	}
	return nil
}

// VerifyFile reads path and compares it against target memory starting at
// addr, verifyBlockSize bytes at a time, returning a VerifyMismatchError
// for the address of the first differing block.
func (s *Session) VerifyFile(path string, addr uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("stlink: read %s: %w", path, err)
	}

	for off := 0; off < len(data); off += verifyBlockSize {
		end := off + verifyBlockSize
		if end > len(data) {
			end = len(data)
		}
		blockAddr := addr + uint32(off)
		actual, err := s.ReadMemory(blockAddr, end-off)
		if err != nil {
			return err
		}
		if !bytes.Equal(actual, data[off:end]) {
			return &VerifyMismatchError{Addr: blockAddr}
		}
	}
	return nil
}
