// personality.go - static MCU and core identification tables

package stlink

// MCUFamily distinguishes the flash controller variant a personality uses,
// since F1/F3/F1xx-alike parts, F4, and L1 each unlock and erase flash
// differently.
type MCUFamily int

const (
	FamilyGeneric MCUFamily = iota
	FamilyF1
	FamilyF4
	FamilyL1
)

// Personality describes one STM32 device's memory map and flash geometry,
// grounded on the original tool's stm_devids table.
type Personality struct {
	Name          string
	Family        MCUFamily
	CoreID        uint32
	DBGMCUIDCode  uint32
	DBGMCUIDAddr  uint32
	FlashBase     uint32
	FlashSize     uint32
	FlashPageSize uint32
	SysFlashBase  uint32
	SysFlashSize  uint32
	SysPageSize   uint32
	SRAMBase      uint32
	SRAMSize      uint32
}

const defaultDBGMCUIDAddr = 0xE0042000

// personalities is the static device table. Index 0 is the generic
// fallback used when the MCU ID-code matches nothing more specific, per
// spec section 5; the core ID plays no part in choosing the entry.
var personalities = []Personality{
	{
		Name: "generic", Family: FamilyGeneric,
		FlashBase: 0x08000000, FlashSize: 128 * 1024, FlashPageSize: 1024,
		SRAMBase: 0x20000000, SRAMSize: 20 * 1024,
		DBGMCUIDAddr: defaultDBGMCUIDAddr,
	},
	{
		Name: "STM32F05x", Family: FamilyF1,
		DBGMCUIDCode: 0x444, DBGMCUIDAddr: 0x40015800,
		FlashBase: 0x08000000, FlashSize: 64 * 1024, FlashPageSize: 1024,
		SRAMBase: 0x20000000, SRAMSize: 8 * 1024,
	},
	{
		Name: "STM32F100xx (value line)", Family: FamilyF1,
		DBGMCUIDCode: 0x420, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 128 * 1024, FlashPageSize: 1024,
		SRAMBase: 0x20000000, SRAMSize: 8 * 1024,
	},
	{
		Name: "STM32F103xx (medium density)", Family: FamilyF1,
		DBGMCUIDCode: 0x410, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 128 * 1024, FlashPageSize: 1024,
		SysFlashBase: 0x1FFFF000, SysFlashSize: 2 * 1024, SysPageSize: 2 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 20 * 1024,
	},
	{
		Name: "STM32F105/F107 (connectivity line)", Family: FamilyF1,
		DBGMCUIDCode: 0x418, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 256 * 1024, FlashPageSize: 2048,
		SRAMBase: 0x20000000, SRAMSize: 64 * 1024,
	},
	{
		Name: "STM32F10x (high density)", Family: FamilyF1,
		DBGMCUIDCode: 0x414, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 512 * 1024, FlashPageSize: 2048,
		SRAMBase: 0x20000000, SRAMSize: 64 * 1024,
	},
	{
		Name: "STM32F10x (XL density)", Family: FamilyF1,
		DBGMCUIDCode: 0x430, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 1024 * 1024, FlashPageSize: 2048,
		SRAMBase: 0x20000000, SRAMSize: 96 * 1024,
	},
	{
		Name: "STM32L152/L151", Family: FamilyL1,
		DBGMCUIDCode: 0x416, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 128 * 1024, FlashPageSize: 256,
		SRAMBase: 0x20000000, SRAMSize: 16 * 1024,
	},
	{
		Name: "STM32F303xx", Family: FamilyF1,
		DBGMCUIDCode: 0x422, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 256 * 1024, FlashPageSize: 2048,
		SRAMBase: 0x20000000, SRAMSize: 40 * 1024,
	},
	{
		Name: "STM32F407xx", Family: FamilyF4,
		DBGMCUIDCode: 0x413, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 1024 * 1024, FlashPageSize: 16 * 1024,
		SysFlashBase: 0x1FFF0000, SysFlashSize: 30 * 1024, SysPageSize: 16 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 192 * 1024,
	},
	{
		Name: "STM32F4xx (generic)", Family: FamilyF4,
		DBGMCUIDCode: 0x419, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 2 * 1024 * 1024, FlashPageSize: 16 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 256 * 1024,
	},
	{
		Name: "STM32F103xx (low density)", Family: FamilyF1,
		DBGMCUIDCode: 0x412, DBGMCUIDAddr: defaultDBGMCUIDAddr,
		FlashBase: 0x08000000, FlashSize: 32 * 1024, FlashPageSize: 1024,
		SysFlashBase: 0x1FFFF000, SysFlashSize: 2 * 1024, SysPageSize: 2 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 6 * 1024,
	},
}

// CoreInfo names an ARM debug core ID, per the original tool's arm_cores
// table. The first matching entry by CoreID wins; there is no fallback
// entry here because identify.go falls back to the generic Personality
// directly.
type CoreInfo struct {
	Name   string
	CoreID uint32
}

var cores = []CoreInfo{
	{Name: "Cortex-M0", CoreID: 0x0bb11477},
	{Name: "Cortex-M3 r1", CoreID: 0x1ba01477},
	{Name: "Cortex-M3 r2p0", CoreID: 0x4ba00477},
	{Name: "Cortex-M4 r0", CoreID: 0x2ba01477},
}

func coreName(coreID uint32) (string, bool) {
	for _, c := range cores {
		if c.CoreID == coreID {
			return c.Name, true
		}
	}
	return "", false
}

func personalityByMCUID(idCode uint32) (int, bool) {
	// DBGMCU_IDCODE's device-id field is the low 12 bits.
	devID := idCode & 0xfff
	for i, p := range personalities {
		if p.DBGMCUIDCode != 0 && p.DBGMCUIDCode == devID {
			return i, true
		}
	}
	return 0, false
}
