// Package supercard implements a simulated SuperCard cartridge that can be
// attached to the engine in place of real hardware.
//
// The simulation covers the parts of the cartridge the kernel talks to:
// 32 MiB of SDRAM behind the ROM window, 64 KiB of SRAM, the mode control
// register with its unlock sequence and the JEDEC firmware flash chip.
package supercard

import (
	"github.com/retroenv/retroflash/internal/hw"
)

const (
	pageShift = 16
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

type page [pageSize]byte

// ModeWrite is one completed write sequence to the control register.
type ModeWrite struct {
	Mode uint16
	// InterruptsDisabled is true if IME was cleared for all four register writes.
	InterruptsDisabled bool
}

// Cartridge is a simulated SuperCard. It implements hw.Bus, hw.Launcher and
// hw.Restarter.
type Cartridge struct {
	sdram map[uint32]*page
	sram  [hw.SRAMSize]byte
	chip  *flashChip

	mode       uint16
	ime        uint16
	unlockStep int
	pending    uint16
	unlockIME  bool
	modeWrites []ModeWrite

	sramFault func(offset uint32, value uint8) uint8

	boots    []bool
	restarts int
}

// Option configures a simulated cartridge.
type Option func(*Cartridge)

// WithFlashID sets the manufacturer and device id that the firmware flash
// chip reports in identify mode.
func WithFlashID(manufacturer, device uint16) Option {
	return func(c *Cartridge) {
		c.chip.manufacturer = manufacturer
		c.chip.device = device
	}
}

// WithBusyPolls sets the number of status reads the flash chip stays busy
// after an erase or program command.
func WithBusyPolls(polls int) Option {
	return func(c *Cartridge) {
		if polls >= 0 {
			c.chip.busyPolls = polls
		}
	}
}

// WithFirmware preloads the firmware flash chip.
func WithFirmware(data []byte) Option {
	return func(c *Cartridge) {
		copy(c.chip.data, data)
	}
}

// WithSRAMFault installs a function that decides which value is actually
// stored in SRAM for a write, used to simulate defective save RAM.
func WithSRAMFault(fault func(offset uint32, value uint8) uint8) Option {
	return func(c *Cartridge) {
		c.sramFault = fault
	}
}

// New returns a powered up cartridge in media mode with interrupts enabled.
// The flash chip defaults to an AMD compatible 0x0001/0x22C4 part.
func New(opts ...Option) *Cartridge {
	c := &Cartridge{
		sdram: make(map[uint32]*page),
		chip:  newFlashChip(),
		mode:  hw.ModeMediaRead,
		ime:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the active control register value.
func (c *Cartridge) Mode() uint16 {
	return c.mode
}

// ModeWrites returns all completed control register sequences.
func (c *Cartridge) ModeWrites() []ModeWrite {
	return c.modeWrites
}

// FlashCommands returns the commands the flash chip accepted.
func (c *Cartridge) FlashCommands() []FlashCommand {
	return c.chip.commands
}

// Firmware returns a copy of the firmware flash chip contents.
func (c *Cartridge) Firmware() []byte {
	data := make([]byte, len(c.chip.data))
	copy(data, c.chip.data)
	return data
}

// SRAM returns a copy of the save RAM contents.
func (c *Cartridge) SRAM() []byte {
	data := make([]byte, len(c.sram))
	copy(data, c.sram[:])
	return data
}

// LoadSRAM replaces the save RAM contents.
func (c *Cartridge) LoadSRAM(data []byte) {
	copy(c.sram[:], data)
}

// SDRAM returns a copy of length bytes of SDRAM starting at offset,
// independent of the active mode.
func (c *Cartridge) SDRAM(offset, length uint32) []byte {
	data := make([]byte, length)
	for i := uint32(0); i < length; {
		off := offset + i
		n := pageSize - off&pageMask
		if n > length-i {
			n = length - i
		}
		if p, ok := c.sdram[off>>pageShift]; ok {
			copy(data[i:i+n], p[off&pageMask:])
		}
		i += n
	}
	return data
}

// LoadSDRAM writes data to SDRAM at offset independent of the active mode.
func (c *Cartridge) LoadSDRAM(offset uint32, data []byte) {
	c.copySDRAM(offset, data)
}

// Boot implements hw.Launcher.
func (c *Cartridge) Boot(throughBIOS bool) {
	c.boots = append(c.boots, throughBIOS)
}

// Boots returns the recorded boots, true for each boot through the BIOS.
func (c *Cartridge) Boots() []bool {
	return c.boots
}

// Restart implements hw.Restarter. The kernel restarts in media mode.
func (c *Cartridge) Restart() {
	c.restarts++
	c.mode = hw.ModeMediaRead
	c.unlockStep = 0
	c.ime = 1
}

// Restarts returns how often the kernel was restarted.
func (c *Cartridge) Restarts() int {
	return c.restarts
}

// IME implements hw.Bus.
func (c *Cartridge) IME() uint16 {
	return c.ime
}

// SetIME implements hw.Bus.
func (c *Cartridge) SetIME(value uint16) {
	c.ime = value
}

// Read8 implements hw.Bus.
func (c *Cartridge) Read8(addr uint32) uint8 {
	switch {
	case inROM(addr):
		value := c.readROM16(addr &^ 1)
		return uint8(value >> (8 * (addr & 1)))
	case inSRAM(addr):
		if !c.sramMapped() {
			return 0xFF
		}
		return c.sram[addr-hw.SRAMBase]
	default:
		return 0
	}
}

// Write8 implements hw.Bus.
func (c *Cartridge) Write8(addr uint32, value uint8) {
	switch {
	case inROM(addr):
		if c.mode == hw.ModeSramReadWrite && addr&^1 != hw.ModeRegister {
			c.writeSDRAM8(addr-hw.ROMBase, value)
		}
	case inSRAM(addr):
		if !c.sramMapped() {
			return
		}
		offset := addr - hw.SRAMBase
		if c.sramFault != nil {
			value = c.sramFault(offset, value)
		}
		c.sram[offset] = value
	}
}

// Read16 implements hw.Bus.
func (c *Cartridge) Read16(addr uint32) uint16 {
	if inROM(addr) {
		return c.readROM16(addr &^ 1)
	}
	return uint16(c.Read8(addr)) | uint16(c.Read8(addr+1))<<8
}

// Write16 implements hw.Bus.
func (c *Cartridge) Write16(addr uint32, value uint16) {
	addr &^= 1
	if addr == hw.ModeRegister {
		c.writeModeRegister(value)
		return
	}
	if inROM(addr) {
		switch c.mode {
		case hw.ModeSramReadWrite:
			c.writeSDRAM8(addr-hw.ROMBase, uint8(value))
			c.writeSDRAM8(addr-hw.ROMBase+1, uint8(value>>8))
		case hw.ModeFlashChipWrite:
			c.chip.write16(addr-hw.ROMBase, value)
		}
		return
	}
	c.Write8(addr, uint8(value))
	c.Write8(addr+1, uint8(value>>8))
}

// Read32 implements hw.Bus.
func (c *Cartridge) Read32(addr uint32) uint32 {
	return uint32(c.Read16(addr)) | uint32(c.Read16(addr+2))<<16
}

// Write32 implements hw.Bus.
func (c *Cartridge) Write32(addr uint32, value uint32) {
	c.Write16(addr, uint16(value))
	c.Write16(addr+2, uint16(value>>16))
}

// Copy implements hw.Bus. Block transfers into the ROM window only reach
// SDRAM in SRAM read write mode, like DMA writes on the real cartridge.
func (c *Cartridge) Copy(dst uint32, data []byte) {
	if inROM(dst) && inROM(dst+uint32(len(data))-1) {
		if c.mode == hw.ModeSramReadWrite {
			c.copySDRAM(dst-hw.ROMBase, data)
		}
		return
	}
	for i, b := range data {
		c.Write8(dst+uint32(i), b)
	}
}

func (c *Cartridge) writeModeRegister(value uint16) {
	if c.unlockStep == 0 {
		c.unlockIME = true
	}
	if c.ime != 0 {
		c.unlockIME = false
	}

	switch c.unlockStep {
	case 0, 1:
		if value == 0xA55A {
			c.unlockStep++
			return
		}
		c.unlockStep = 0

	case 2:
		c.pending = value
		c.unlockStep = 3

	case 3:
		c.unlockStep = 0
		if value != c.pending {
			return
		}
		c.mode = value
		c.modeWrites = append(c.modeWrites, ModeWrite{
			Mode:               value,
			InterruptsDisabled: c.unlockIME,
		})
	}
}

func (c *Cartridge) sramMapped() bool {
	return c.mode == hw.ModeSramReadOnly || c.mode == hw.ModeSramReadWrite
}

func (c *Cartridge) readROM16(addr uint32) uint16 {
	offset := addr - hw.ROMBase
	switch c.mode {
	case hw.ModeSramReadOnly, hw.ModeSramReadWrite:
		return uint16(c.readSDRAM8(offset)) | uint16(c.readSDRAM8(offset+1))<<8
	default:
		return c.chip.read16(offset)
	}
}

func (c *Cartridge) readSDRAM8(offset uint32) uint8 {
	p, ok := c.sdram[offset>>pageShift]
	if !ok {
		return 0
	}
	return p[offset&pageMask]
}

func (c *Cartridge) writeSDRAM8(offset uint32, value uint8) {
	c.sdramPage(offset)[offset&pageMask] = value
}

func (c *Cartridge) copySDRAM(offset uint32, data []byte) {
	for len(data) > 0 {
		p := c.sdramPage(offset)
		n := copy(p[offset&pageMask:], data)
		data = data[n:]
		offset += uint32(n)
	}
}

func (c *Cartridge) sdramPage(offset uint32) *page {
	index := offset >> pageShift
	p, ok := c.sdram[index]
	if !ok {
		p = &page{}
		c.sdram[index] = p
	}
	return p
}

func inROM(addr uint32) bool {
	return addr >= hw.ROMBase && addr < hw.ROMBase+hw.ROMSize
}

func inSRAM(addr uint32) bool {
	return addr >= hw.SRAMBase && addr < hw.SRAMBase+hw.SRAMSize
}
