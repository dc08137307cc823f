package stlink

import "testing"

func TestControlBaseForF1SecondBank(t *testing.T) {
	p := personalities[6] // STM32F10x XL density, 1MB flash
	base := controlBaseFor(p, 0x08090000)
	if base != f1SecondBankCR {
		t.Errorf("controlBaseFor upper bank = %#x, want %#x", base, f1SecondBankCR)
	}

	base = controlBaseFor(p, 0x08001000)
	if base != f1FlashRegsBase {
		t.Errorf("controlBaseFor lower bank = %#x, want %#x", base, f1FlashRegsBase)
	}
}

func TestControlBaseForSmallF1PartIgnoresSplit(t *testing.T) {
	p := personalities[3] // 128KB part, below the 256KB split threshold
	base := controlBaseFor(p, 0x08001000)
	if base != f1FlashRegsBase {
		t.Errorf("controlBaseFor = %#x, want %#x", base, f1FlashRegsBase)
	}
}

func TestLoaderParamsBytesLayout(t *testing.T) {
	p := loaderParams{ctrlBase: 0x40022000, src: 0x20000100, dst: 0x08001000, count: 512}
	buf := p.bytes()
	if len(buf) != 16 {
		t.Fatalf("loaderParams.bytes() length = %d, want 16", len(buf))
	}
	if uint32LE(buf[0:4]) != p.ctrlBase {
		t.Errorf("ctrlBase field = %#x, want %#x", uint32LE(buf[0:4]), p.ctrlBase)
	}
	if uint32LE(buf[12:16]) != p.count {
		t.Errorf("count field = %#x, want %#x", uint32LE(buf[12:16]), p.count)
	}
}

func TestLoaderImagesAreRealPrograms(t *testing.T) {
	for _, img := range []struct {
		name string
		code []byte
	}{
		{"dbLoaderCode", dbLoaderCode},
		{"f4LoaderCode", f4LoaderCode},
	} {
		if len(img.code) < 40 {
			t.Errorf("%s length = %d, want at least 40 (spec.md's F1/L1 Thumb program size)", img.name, len(img.code))
		}
		if len(img.code)%2 != 0 {
			t.Errorf("%s length = %d, want an even number of bytes (whole halfwords)", img.name, len(img.code))
		}
		// bkpt #0 (0x00, 0xbe) must terminate the program so the halt poll
		// in writeChunk can detect completion instead of running off the
		// end of SRAM.
		last := img.code[len(img.code)-2:]
		if last[0] != 0x00 || last[1] != 0xbe {
			t.Errorf("%s does not end in bkpt #0, got % x", img.name, last)
		}
	}
	// The F1/L1 and F4 images agree on every halfword except the error-bit
	// test mask (0x14 vs 0xf0).
	if len(dbLoaderCode) != len(f4LoaderCode) {
		t.Fatalf("dbLoaderCode and f4LoaderCode differ in length: %d vs %d", len(dbLoaderCode), len(f4LoaderCode))
	}
	diffs := 0
	for i := range dbLoaderCode {
		if dbLoaderCode[i] != f4LoaderCode[i] {
			diffs++
		}
	}
	if diffs != 1 {
		t.Errorf("dbLoaderCode and f4LoaderCode differ in %d bytes, want exactly 1 (the error-mask immediate)", diffs)
	}
}

func TestWriteChunkSrcAddrMatchesImageLength(t *testing.T) {
	mcu := newFakeMCU()
	mcu.haltAfter = 1
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3]
	mcu.writeBytes(f1FlashSR, leWord(srEOP))

	if err := s.writeChunk(s.per, s.per.SRAMBase, 0x08000000, []byte{0xDE, 0xAD, 0xBE, 0xEF}); err != nil {
		t.Fatalf("writeChunk: %v", err)
	}

	// The payload lands immediately after the image + parameter block, so
	// src_addr must equal SRAMbase + len(program), matching the layout
	// invariant in spec.md (bytes[0..prog_len) == code+params,
	// src_addr == SRAM_base + prog_len).
	wantSrc := s.per.SRAMBase + uint32(len(dbLoaderCode)) + 16
	gotPayload := mcu.readBytes(wantSrc, 4)
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	for i := range want {
		if gotPayload[i] != want[i] {
			t.Errorf("byte %d at computed src_addr = %#x, want %#x", i, gotPayload[i], want[i])
		}
	}
}

func TestWriteFlashRunsLoaderPerChunk(t *testing.T) {
	mcu := newFakeMCU()
	mcu.haltAfter = 1 // halt on the first status poll
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3] // STM32F103xx, SRAM base 0x20000000

	mcu.writeBytes(f1FlashSR, leWord(srEOP))

	data := make([]byte, loaderChunkSize+4) // spans two chunks
	for i := range data {
		data[i] = byte(i)
	}

	if err := s.WriteFlash(s.per, 0x08001000, data); err != nil {
		t.Fatalf("WriteFlash: %v", err)
	}
	if !mcu.runCalled {
		t.Error("WriteFlash never issued a run() to the core")
	}
	got := mcu.readBytes(0x08001000, len(data))
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("flash byte %d = %#x, want %#x (chunk %d not written)", i, got[i], data[i], i/loaderChunkSize)
		}
	}
}

func TestWriteFlashOddLengthChunk(t *testing.T) {
	mcu := newFakeMCU()
	mcu.haltAfter = 1
	s := &Session{proto: newProtocol(newFakeTransport(mcu))}
	s.per = personalities[3]
	mcu.writeBytes(f1FlashSR, leWord(srEOP))

	data := []byte{1, 2, 3} // odd length, must round up to 4
	if err := s.WriteFlash(s.per, 0x08001000, data); err != nil {
		t.Fatalf("WriteFlash: %v", err)
	}
}
