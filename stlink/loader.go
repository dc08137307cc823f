// loader.go - target-resident flash write loader
//
// The probe can set an MCU's registers and write its SRAM, but it cannot
// generate the internal flash-write timing STM32 parts require: only code
// running on the core itself can do that. So programming flash means
// downloading a small ARM Thumb program into SRAM, appending a parameter
// block and the payload chunk right after it, pointing PC at the program,
// and running the core until it halts itself.

package stlink

import "time"

const (
	loaderChunkSize = 2048

	loaderHaltPollLimit    = 200
	loaderHaltPollInterval = 10 * time.Millisecond

	// f1SecondBankCR is the second flash controller's base address, used
	// when a part has more than 256KB of flash and the target address
	// falls in the upper bank.
	f1SecondBankCR  = 0x40022040
	f1BankSplitSize = 256 * 1024
	f1BankSplitAddr = 0x08080000
)

// dbLoaderCode is the production F1/L1 SRAM-resident flash writer,
// transcribed half-word for half-word from db_loader_code[] in the
// original tool. r0/r1/r2/r4 are loaded from the parameter words that
// follow this code (ctrlBase, src, dst, count — loaderParams.bytes());
// the loop then reads a half-word from [r0], writes it to [r1] through
// the flash controller at r4, polls BSY after each half-word, checks
// PGERR/WRPRTERR, and decrements r2 until it reaches zero, then clears
// CR.PG and breakpoints itself so the halt poll below can detect
// completion via the core status command rather than a fixed sleep.
var dbLoaderCode = []byte{
	0x0b, 0x48, // ldr  r0, [pc, #44]  ; .SRC_ADDR
	0x0c, 0x49, // ldr  r1, [pc, #48]  ; .TARGET_ADDR
	0x0c, 0x4a, // ldr  r2, [pc, #48]  ; .COUNT
	0x09, 0x4c, // ldr  r4, [pc, #36]  ; .STM32_FLASH_BASE
	0x01, 0x25, // movs r5, #1         ; FLASH_CR_PG
	0x25, 0x61, // str  r5, [r4, #0x10] ; FLASH_CR
	// copy_hword:
	0x30, 0xf8, 0x02, 0x3b, // ldrh r3, [r0], #2
	0x21, 0xf8, 0x02, 0x3b, // strh r3, [r1], #2
	// busy:
	0x01, 0x35, // add  r5, r5, #1
	0xe3, 0x68, // ldr  r3, [r4, #0x0c] ; FLASH_SR
	0x13, 0xf0, 0x01, 0x0f, // tst  r3, #0x01       ; BSY
	0xfa, 0xd1, // bne  busy
	0x13, 0xf0, 0x14, 0x0f, // tst  r3, #0x14       ; PGERR | WRPRTERR
	0x02, 0xd1, // bne  exit
	0x01, 0x3a, // subs r2, r2, #1
	0xf1, 0xd1, // bne  copy_hword
	0x22, 0x61, // str  r2, [r4, #0x10] ; clear FLASH_CR (r2 == 0 here)
	// exit:
	0x00, 0xbe, // bkpt #0
}

// f4LoaderCode is the F4-family counterpart, transcribed from
// f4_loader_code[] in the original tool. It differs from dbLoaderCode in
// exactly one instruction pair: the error-bit test widens from F1/L1's
// 0x14 (PGERR|WRPRTERR) to F4's 0xF0, covering PGAERR/PGPERR/PGSERR/WRPERR.
var f4LoaderCode = []byte{
	0x0b, 0x48,
	0x0c, 0x49,
	0x0c, 0x4a,
	0x09, 0x4c,
	0x01, 0x25,
	0x25, 0x61,
	0x30, 0xf8, 0x02, 0x3b,
	0x21, 0xf8, 0x02, 0x3b,
	0x01, 0x35,
	0xe3, 0x68,
	0x13, 0xf0, 0x01, 0x0f,
	0xfa, 0xd1,
	0x13, 0xf0, 0xf0, 0x0f, // tst r3, #0xf0 ; F4 error-bit mask
	0x02, 0xd1,
	0x01, 0x3a,
	0xf1, 0xd1,
	0x22, 0x61,
	0x00, 0xbe,
}

// loaderParams is the parameter block written immediately after the
// loader image in SRAM: flash controller base, source address (right
// after the params, where the payload chunk lands), destination flash
// address, and half-word count.
type loaderParams struct {
	ctrlBase uint32
	src      uint32
	dst      uint32
	count    uint32
}

func (p loaderParams) bytes() []byte {
	buf := make([]byte, 16)
	putUint32LE(buf[0:4], p.ctrlBase)
	putUint32LE(buf[4:8], p.src)
	putUint32LE(buf[8:12], p.dst)
	putUint32LE(buf[12:16], p.count)
	return buf
}

// loaderImageFor selects the loader binary for a family.
func loaderImageFor(family MCUFamily) []byte {
	if family == FamilyF4 {
		return f4LoaderCode
	}
	return dbLoaderCode
}

// controlBaseFor resolves which flash controller register base the
// loader's parameter block should point at. F1 parts larger than 256KB
// expose a second flash controller for addresses in the upper bank.
func controlBaseFor(p Personality, addr uint32) uint32 {
	if p.Family == FamilyF1 && p.FlashSize > f1BankSplitSize && addr >= f1BankSplitAddr {
		return f1SecondBankCR
	}
	return controllerFor(p.Family).flashRegsBase()
}

// writeChunk runs one loader pass over a single chunk: assemble image +
// params + payload into one buffer, write it to SRAM in one transfer, set
// PC to the loader's entry point, run, and poll for halt.
func (s *Session) writeChunk(p Personality, loaderBase uint32, flashAddr uint32, chunk []byte) error {
	image := loaderImageFor(p.Family)

	// Odd-length chunks are rounded up by one byte; the flash write is
	// always in half-words, and the loader simply writes a don't-care
	// high byte for the padding half-word.
	count := len(chunk)
	if count%2 != 0 {
		count++
	}
	payload := make([]byte, count)
	copy(payload, chunk)

	params := loaderParams{
		ctrlBase: controlBaseFor(p, flashAddr),
		src:      loaderBase + uint32(len(image)) + 16,
		dst:      flashAddr,
		count:    uint32(count / 2),
	}

	full := make([]byte, 0, len(image)+16+len(payload))
	full = append(full, image...)
	full = append(full, params.bytes()...)
	full = append(full, payload...)
	// write-mem32 takes whole words; the loader's count covers only the
	// payload, so any trailing pad bytes are never copied to flash.
	for len(full)%4 != 0 {
		full = append(full, 0)
	}

	if err := s.proto.writeMem32(loaderBase, full); err != nil {
		return err
	}

	if err := s.WriteRegister(15, loaderBase); err != nil {
		return err
	}
	if err := s.proto.run(); err != nil {
		return err
	}

	for i := 0; i < loaderHaltPollLimit; i++ {
		status, err := s.proto.getStatus()
		if err != nil {
			return err
		}
		if status == CoreHalted {
			ctrl := controllerFor(p.Family)
			sr, _ := s.proto.readMem32(ctrl.flashRegsBase()+statusOffsetFor(p.Family), 4)
			srVal := uint32LE(sr)
			if srVal&(srPGERR|srWRPRTERR) != 0 {
				return &FlashProgramError{SR: srVal}
			}
			return nil
		}
		time.Sleep(loaderHaltPollInterval)
	}

	return &FlashProgramError{TimedOut: true}
}

// statusOffsetFor returns the SR register's offset from its family's
// flash register base, since F1/F4 and L1 disagree on where it lives.
func statusOffsetFor(family MCUFamily) uint32 {
	if family == FamilyL1 {
		return 0x18
	}
	return 0x0C
}

// WriteFlash programs buf starting at flashAddr, chunking at
// loaderChunkSize and running the loader once per chunk. Callers must
// have already erased the destination pages; WriteFlash does not erase.
func (s *Session) WriteFlash(p Personality, flashAddr uint32, buf []byte) error {
	ctrl := controllerFor(p.Family)
	if err := ctrl.unlock(s); err != nil {
		return err
	}
	defer ctrl.lock(s)

	loaderBase := p.SRAMBase

	for off := 0; off < len(buf); off += loaderChunkSize {
		end := off + loaderChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := s.writeChunk(p, loaderBase, flashAddr+uint32(off), buf[off:end]); err != nil {
			return err
		}
	}

	return nil
}
