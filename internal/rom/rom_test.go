package rom

import (
	"io"
	"testing"

	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retroflash/internal/supercard"
	"github.com/retroenv/retrogolib/assert"
)

func writableCartridge() *supercard.Cartridge {
	cart := supercard.New()
	for _, v := range []uint16{0xA55A, 0xA55A, hw.ModeSramReadWrite, hw.ModeSramReadWrite} {
		cart.Write16(hw.ModeRegister, v)
	}
	return cart
}

func TestImageReadWrite(t *testing.T) {
	cart := writableCartridge()
	img := New(cart, 8)

	n, err := img.WriteAt([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 9, n)

	buf := make([]byte, 4)
	n, err = img.ReadAt(buf, 6)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{7, 8}, buf[:n])

	_, err = img.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, uint32(0x04030201), img.Word(0))
	img.SetWord(4, 0xCAFEBABE)
	assert.Equal(t, []byte{0xBE, 0xBA, 0xFE, 0xCA}, cart.SDRAM(4, 4))
	assert.Equal(t, uint32(hw.ROMBase+4), img.Address(4))
}

func TestImageWriteOutsideWindow(t *testing.T) {
	img := New(writableCartridge(), hw.ROMSize+1)
	assert.Equal(t, uint32(hw.ROMSize), img.Size())

	_, err := img.WriteAt([]byte{1, 2}, hw.ROMSize-1)
	assert.Error(t, err)
}
