// Package rom provides a byte addressed view of the image that was composed
// into the cartridge ROM window.
package rom

import (
	"fmt"
	"io"

	"github.com/retroenv/retroflash/internal/hw"
)

// Image is a view over the composed image starting at hw.ROMBase.
// It does not switch cartridge modes, callers must map SDRAM writable
// before writing through the view.
type Image struct {
	bus  hw.Bus
	size uint32
}

// New returns a view of size bytes of the ROM window.
func New(bus hw.Bus, size uint32) *Image {
	if size > hw.ROMSize {
		size = hw.ROMSize
	}
	return &Image{
		bus:  bus,
		size: size,
	}
}

// Size returns the number of composed bytes.
func (i *Image) Size() uint32 {
	return i.size
}

// Address returns the absolute bus address of an image offset.
func (i *Image) Address(offset uint32) uint32 {
	return hw.ROMBase + offset
}

// Word returns the little endian word at the given offset, which does not
// have to be inside the composed part of the window.
func (i *Image) Word(offset uint32) uint32 {
	return i.bus.Read32(hw.ROMBase + offset)
}

// SetWord writes a little endian word at the given offset.
func (i *Image) SetWord(offset, value uint32) {
	i.bus.Write32(hw.ROMBase+offset, value)
}

// ReadAt implements io.ReaderAt for the composed part of the window.
func (i *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("invalid offset %d", off)
	}
	if off >= int64(i.size) {
		return 0, io.EOF
	}

	n := len(p)
	if remaining := int64(i.size) - off; int64(n) > remaining {
		n = int(remaining)
	}
	addr := hw.ROMBase + uint32(off)
	for j := 0; j < n; j++ {
		p[j] = i.bus.Read8(addr + uint32(j))
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt for the whole ROM window.
func (i *Image) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > hw.ROMSize {
		return 0, fmt.Errorf("write of %d bytes at offset %d exceeds the ROM window", len(p), off)
	}
	i.bus.Copy(hw.ROMBase+uint32(off), p)
	return len(p), nil
}
