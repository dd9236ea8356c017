package supercard

import (
	"testing"

	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retrogolib/assert"
)

func setMode(c *Cartridge, mode uint16) {
	c.SetIME(0)
	c.Write16(hw.ModeRegister, 0xA55A)
	c.Write16(hw.ModeRegister, 0xA55A)
	c.Write16(hw.ModeRegister, mode)
	c.Write16(hw.ModeRegister, mode)
	c.SetIME(1)
}

func TestModeRegister(t *testing.T) {
	c := New()
	assert.Equal(t, uint16(hw.ModeMediaRead), c.Mode())

	setMode(c, hw.ModeSramReadWrite)
	assert.Equal(t, uint16(hw.ModeSramReadWrite), c.Mode())
	assert.Len(t, c.ModeWrites(), 1)
	assert.True(t, c.ModeWrites()[0].InterruptsDisabled)

	// incomplete unlock sequence is ignored
	c.Write16(hw.ModeRegister, 0xA55A)
	c.Write16(hw.ModeRegister, hw.ModeMediaRead)
	assert.Equal(t, uint16(hw.ModeSramReadWrite), c.Mode())

	// mode write with interrupts enabled is recorded
	c.Write16(hw.ModeRegister, 0xA55A)
	c.Write16(hw.ModeRegister, 0xA55A)
	c.Write16(hw.ModeRegister, hw.ModeMediaRead)
	c.Write16(hw.ModeRegister, hw.ModeMediaRead)
	assert.Equal(t, uint16(hw.ModeMediaRead), c.Mode())
	assert.Len(t, c.ModeWrites(), 2)
	assert.False(t, c.ModeWrites()[1].InterruptsDisabled)
}

func TestSDRAMModeGating(t *testing.T) {
	c := New()

	// writes in media mode do not reach SDRAM
	c.Copy(hw.ROMBase, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{0, 0, 0, 0}, c.SDRAM(0, 4))

	setMode(c, hw.ModeSramReadWrite)
	c.Copy(hw.ROMBase+0xFFFE, []byte{1, 2, 3, 4})
	c.Write32(hw.ROMBase+0x100, 0xDEADBEEF)
	assert.Equal(t, []byte{1, 2, 3, 4}, c.SDRAM(0xFFFE, 4))
	assert.Equal(t, uint32(0xDEADBEEF), c.Read32(hw.ROMBase+0x100))

	setMode(c, hw.ModeSramReadOnly)
	c.Write32(hw.ROMBase+0x100, 0)
	assert.Equal(t, uint32(0xDEADBEEF), c.Read32(hw.ROMBase+0x100))
	assert.Equal(t, uint8(0xEF), c.Read8(hw.ROMBase+0x100))
	assert.Equal(t, uint8(0xBE), c.Read8(hw.ROMBase+0x101))
}

func TestSRAM(t *testing.T) {
	c := New()
	c.Write8(hw.SRAMBase, 0x12)
	assert.Equal(t, uint8(0xFF), c.Read8(hw.SRAMBase))

	setMode(c, hw.ModeSramReadWrite)
	c.Copy(hw.SRAMBase+2, []byte{0xAA, 0xBB})
	assert.Equal(t, uint8(0xAA), c.Read8(hw.SRAMBase+2))
	assert.Equal(t, uint8(0xBB), c.SRAM()[3])
}

func TestSRAMFault(t *testing.T) {
	c := New(WithSRAMFault(func(offset uint32, value uint8) uint8 {
		if offset == 1 {
			return value ^ 0xFF
		}
		return value
	}))
	setMode(c, hw.ModeSramReadWrite)
	c.Copy(hw.SRAMBase, []byte{0x11, 0x22})
	assert.Equal(t, []byte{0x11, 0xDD}, c.SRAM()[:2])
}

func unlock(c *Cartridge) {
	c.Write16(hw.FlashUnlockAddress1, hw.FlashUnlock1)
	c.Write16(hw.FlashUnlockAddress2, hw.FlashUnlock2)
}

func waitReady(c *Cartridge) {
	for c.Read16(hw.ROMBase) != c.Read16(hw.ROMBase) {
		continue
	}
}

func TestFlashChipIdentify(t *testing.T) {
	c := New(WithFlashID(0x00BF, 0x2272))
	setMode(c, hw.ModeFlashChipWrite)

	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashIdentify)
	assert.Equal(t, uint16(0x2272), c.Read16(hw.FlashUnlockAddress1))
	assert.Equal(t, uint16(0x00BF), c.Read16(hw.ROMBase))

	c.Write16(hw.ROMBase, hw.FlashIdle)
	assert.Equal(t, uint16(0xFFFF), c.Read16(hw.ROMBase))
}

func TestFlashChipProgramAndErase(t *testing.T) {
	c := New(WithBusyPolls(3))
	setMode(c, hw.ModeFlashChipWrite)

	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashProgram)
	c.Write16(hw.ROMBase+0x10, 0x1234)

	polls := 0
	for c.Read16(hw.ROMBase+0x10) != c.Read16(hw.ROMBase+0x10) {
		polls++
	}
	assert.True(t, polls > 0)
	assert.Equal(t, uint16(0x1234), c.Read16(hw.ROMBase+0x10))

	// programming without erase only clears bits
	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashProgram)
	c.Write16(hw.ROMBase+0x10, 0xFF00)
	waitReady(c)
	assert.Equal(t, uint16(0x1200), c.Read16(hw.ROMBase+0x10))

	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashErase)
	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashEraseChip)
	waitReady(c)
	assert.Equal(t, uint16(0xFFFF), c.Read16(hw.ROMBase+0x10))

	commands := c.FlashCommands()
	assert.Equal(t, uint16(hw.FlashProgram), commands[0].Command)
	assert.Equal(t, uint32(0x10), commands[0].Offset)
	assert.Equal(t, uint16(hw.FlashEraseChip), commands[len(commands)-1].Command)
}

func TestFlashChipIgnoresWritesOutsideFlashMode(t *testing.T) {
	c := New()
	unlock(c)
	c.Write16(hw.FlashUnlockAddress1, hw.FlashProgram)
	c.Write16(hw.ROMBase, 0)
	assert.Equal(t, uint16(0xFFFF), c.Read16(hw.ROMBase))
	assert.Empty(t, c.FlashCommands())
}

func TestBootAndRestart(t *testing.T) {
	c := New()
	setMode(c, hw.ModeSramReadOnly)
	c.Boot(true)
	c.Restart()
	assert.Equal(t, []bool{true}, c.Boots())
	assert.Equal(t, 1, c.Restarts())
	assert.Equal(t, uint16(hw.ModeMediaRead), c.Mode())
}
