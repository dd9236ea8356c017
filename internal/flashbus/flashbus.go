// Package flashbus implements the SuperCard operating mode protocol.
//
// The cartridge exposes different memories through the ROM window depending
// on its mode. Exactly one mode is active at any time and it is process wide
// state of the hardware, so all mode changes go through a single Controller
// handle that is passed explicitly to every component needing bus access.
package flashbus

import (
	"fmt"

	"github.com/retroenv/retroflash/internal/hw"
)

// Mode is a SuperCard operating mode as written to the control register.
type Mode uint16

// Supported modes.
const (
	// SramReadOnly maps SDRAM read-only into the ROM window, SRAM is accessible.
	SramReadOnly Mode = hw.ModeSramReadOnly
	// FlashChipWrite maps the firmware flash chip command interface.
	FlashChipWrite Mode = hw.ModeFlashChipWrite
	// SramReadWrite maps SDRAM writable into the ROM window, SRAM is accessible.
	SramReadWrite Mode = hw.ModeSramReadWrite
	// MediaRead maps the firmware and the SD card interface.
	MediaRead Mode = hw.ModeMediaRead
)

// unlockKey is written twice before the mode value.
const unlockKey = 0xA55A

func (m Mode) String() string {
	switch m {
	case MediaRead:
		return "media-read"
	case SramReadOnly:
		return "sram-read-only"
	case SramReadWrite:
		return "sram-read-write"
	case FlashChipWrite:
		return "flash-chip-write"
	default:
		return fmt.Sprintf("mode(0x%X)", uint16(m))
	}
}

// Controller owns the mode state of a cartridge bus.
type Controller struct {
	bus  hw.Bus
	mode Mode
}

// New returns a controller for the given bus. The cartridge powers up in
// MediaRead mode, the kernel is executed from there.
func New(bus hw.Bus) *Controller {
	return &Controller{
		bus:  bus,
		mode: MediaRead,
	}
}

// Bus returns the underlying bus.
func (c *Controller) Bus() hw.Bus {
	return c.bus
}

// Mode returns the last mode that was written.
func (c *Controller) Mode() Mode {
	return c.mode
}

// SetMode switches the cartridge into the given mode. Interrupts are
// suspended while the unlock sequence is written and the previous interrupt
// master enable state is restored afterwards. The hardware requires the key
// and the mode value to be written twice each.
// The write can not fail observably, a cartridge that ignores it only shows
// up as corrupt data for callers that read back.
func (c *Controller) SetMode(mode Mode) {
	ime := c.bus.IME()
	c.bus.SetIME(0)

	c.bus.Write16(hw.ModeRegister, unlockKey)
	c.bus.Write16(hw.ModeRegister, unlockKey)
	c.bus.Write16(hw.ModeRegister, uint16(mode))
	c.bus.Write16(hw.ModeRegister, uint16(mode))

	c.bus.SetIME(ime)
	c.mode = mode
}

// Enter switches into mode and returns a function that switches back to
// MediaRead. It pairs a mode write with the restoring write:
//
//	defer c.Enter(flashbus.SramReadWrite)()
func (c *Controller) Enter(mode Mode) func() {
	c.SetMode(mode)
	return func() {
		c.SetMode(MediaRead)
	}
}
