// Package hw defines the memory map of the cartridge as seen from the GBA
// and the bus interface that every engine component uses to reach it.
package hw

// GBA address space windows used by the cartridge.
const (
	ROMBase = 0x08000000 // cartridge ROM window, SDRAM or flash chip depending on mode
	ROMSize = 0x02000000 // 32 MiB addressable through the ROM window

	SRAMBase = 0x0E000000 // battery backed save RAM
	SRAMSize = 0x00010000

	// ModeRegister is the SuperCard control register. It sits in the last
	// halfword of the ROM window.
	ModeRegister = 0x09FFFFFE

	// ResetTokenAddress holds ResetToken after a warm reset triggered by the
	// reset trampoline.
	ResetTokenAddress = 0x09FFFF80
	ResetToken        = 0xA55AA55A
)

// Bus is the access path to the cartridge. Addresses are absolute GBA
// addresses. A bus is not safe for concurrent use, the kernel runs a single
// thread of control.
type Bus interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, value uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, value uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)

	// Copy performs a DMA style block transfer of data to dst.
	Copy(dst uint32, data []byte)

	// IME returns the interrupt master enable register.
	IME() uint16
	// SetIME sets the interrupt master enable register.
	SetIME(value uint16)
}

// Launcher transfers control to the image in the ROM window.
type Launcher interface {
	// Boot resets the console. A BIOS boot runs the full BIOS intro
	// (hard reset), otherwise the ROM entry point is entered directly.
	Boot(throughBIOS bool)
}

// Restarter restarts the kernel after a critical failure that may have left
// the cartridge in an inconsistent state.
type Restarter interface {
	Restart()
}

// Values of the SuperCard control register.
const (
	ModeSramReadOnly   = 0x1
	ModeFlashChipWrite = 0x4
	ModeSramReadWrite  = 0x5
	ModeMediaRead      = 0x7
)

// Firmware flash chip command interface. The chip is reached through the ROM
// window in flash chip write mode, the unlock addresses reflect the address
// line wiring of the cartridge.
const (
	FlashUnlockAddress1 = 0x08000B92
	FlashUnlockAddress2 = 0x0800046C

	FlashUnlock1     = 0xAA
	FlashUnlock2     = 0x55
	FlashErase       = 0x80
	FlashEraseBlock  = 0x30
	FlashEraseChip   = 0x10
	FlashProgram     = 0xA0
	FlashIdle        = 0xF0
	FlashIdentify    = 0x90
	FlashChipSize    = 0x80000 // 512 KiB
	FlashToggleBitDQ = 0x0040  // DQ6 toggles while an operation is running
)
