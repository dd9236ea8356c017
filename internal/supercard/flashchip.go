package supercard

import (
	"github.com/retroenv/retroflash/internal/hw"
)

const (
	defaultManufacturer = 0x0001
	defaultDevice       = 0x22C4
	defaultBusyPolls    = 2

	unlockOffset1 = hw.FlashUnlockAddress1 - hw.ROMBase
	unlockOffset2 = hw.FlashUnlockAddress2 - hw.ROMBase
)

type chipState int

const (
	chipRead chipState = iota
	chipUnlocked1
	chipUnlocked2
	chipAutoselect
	chipEraseSetup
	chipEraseUnlocked1
	chipEraseUnlocked2
	chipProgram
)

// FlashCommand is a command accepted by the simulated flash chip.
type FlashCommand struct {
	Command uint16
	Offset  uint32 // chip offset, only set for program commands
}

// flashChip simulates a 16 bit JEDEC flash chip with DQ6 toggle status.
type flashChip struct {
	data         []byte
	manufacturer uint16
	device       uint16

	state      chipState
	busyPolls  int
	busy       int
	toggle     uint16
	commands   []FlashCommand
	autoselect bool
}

func newFlashChip() *flashChip {
	data := make([]byte, hw.FlashChipSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &flashChip{
		data:         data,
		manufacturer: defaultManufacturer,
		device:       defaultDevice,
		busyPolls:    defaultBusyPolls,
	}
}

func (f *flashChip) read16(offset uint32) uint16 {
	if f.busy > 0 {
		f.busy--
		f.toggle ^= hw.FlashToggleBitDQ
		return f.toggle
	}

	if f.autoselect {
		if offset == 0 {
			return f.manufacturer
		}
		return f.device
	}

	offset %= hw.FlashChipSize
	offset &^= 1
	return uint16(f.data[offset]) | uint16(f.data[offset+1])<<8
}

func (f *flashChip) write16(offset uint32, value uint16) {
	if f.busy > 0 {
		return
	}

	if value == hw.FlashIdle && f.state != chipProgram {
		f.state = chipRead
		f.autoselect = false
		f.commands = append(f.commands, FlashCommand{Command: hw.FlashIdle})
		return
	}

	switch f.state {
	case chipRead, chipAutoselect:
		f.expectUnlock(offset, unlockOffset1, value, hw.FlashUnlock1, chipUnlocked1)

	case chipUnlocked1:
		f.expectUnlock(offset, unlockOffset2, value, hw.FlashUnlock2, chipUnlocked2)

	case chipUnlocked2:
		f.command(offset, value)

	case chipEraseSetup:
		f.expectUnlock(offset, unlockOffset1, value, hw.FlashUnlock1, chipEraseUnlocked1)

	case chipEraseUnlocked1:
		f.expectUnlock(offset, unlockOffset2, value, hw.FlashUnlock2, chipEraseUnlocked2)

	case chipEraseUnlocked2:
		f.erase(offset, value)

	case chipProgram:
		f.program(offset, value)
	}
}

func (f *flashChip) expectUnlock(offset, wantOffset uint32, value, want uint16, next chipState) {
	if offset == wantOffset && value == want {
		f.state = next
		return
	}
	f.state = chipRead
}

func (f *flashChip) command(offset uint32, value uint16) {
	if offset != unlockOffset1 {
		f.state = chipRead
		return
	}

	switch value {
	case hw.FlashIdentify:
		f.state = chipAutoselect
		f.autoselect = true
	case hw.FlashErase:
		f.state = chipEraseSetup
	case hw.FlashProgram:
		f.state = chipProgram
	default:
		f.state = chipRead
		return
	}
	f.commands = append(f.commands, FlashCommand{Command: value})
}

func (f *flashChip) erase(offset uint32, value uint16) {
	f.state = chipRead
	switch {
	case value == hw.FlashEraseChip && offset == unlockOffset1:
		for i := range f.data {
			f.data[i] = 0xFF
		}
	case value == hw.FlashEraseBlock:
		start := offset % hw.FlashChipSize &^ 0xFFFF
		for i := start; i < start+0x10000; i++ {
			f.data[i] = 0xFF
		}
	default:
		return
	}
	f.commands = append(f.commands, FlashCommand{Command: value, Offset: offset})
	f.busy = f.busyPolls
}

func (f *flashChip) program(offset uint32, value uint16) {
	f.state = chipRead
	offset %= hw.FlashChipSize
	offset &^= 1
	// programming can only clear bits
	f.data[offset] &= uint8(value)
	f.data[offset+1] &= uint8(value >> 8)
	f.commands[len(f.commands)-1].Offset = offset
	f.busy = f.busyPolls
}
