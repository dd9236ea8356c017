package savetype

import (
	"testing"

	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retroflash/internal/supercard"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newImage(t *testing.T, size uint32, tags map[uint32]string) *rom.Image {
	t.Helper()

	cart := supercard.New()
	cart.LoadSDRAM(0, make([]byte, size))
	for offset, tag := range tags {
		cart.LoadSDRAM(offset, []byte(tag))
	}
	flashbus.New(cart).SetMode(flashbus.SramReadOnly)
	return rom.New(cart, size)
}

func TestFind(t *testing.T) {
	tests := []struct {
		name   string
		size   uint32
		tags   map[uint32]string
		want   Library
		offset uint32
	}{
		{
			name:   "eeprom",
			size:   0x8000,
			tags:   map[uint32]string{0x1234: "EEPROM_V124"},
			want:   EEPROM,
			offset: 0x1234,
		},
		{
			name:   "flash 512 is not reported as flash",
			size:   0x8000,
			tags:   map[uint32]string{0x2000: "FLASH512_V131"},
			want:   Flash512,
			offset: 0x2000,
		},
		{
			name:   "tag across chunk boundary",
			size:   0x10000,
			tags:   map[uint32]string{scanChunk - 4: "FLASH1M_V103"},
			want:   Flash1M,
			offset: scanChunk - 4,
		},
		{
			name:   "first tag wins",
			size:   0x10000,
			tags:   map[uint32]string{0x9000: "EEPROM_V124", 0x4000: "SRAM_V113"},
			want:   SRAM,
			offset: 0x4000,
		},
		{
			name: "no tag",
			size: 0x8000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(log.NewTestLogger(t))
			got, err := d.Find(newImage(t, tt.size, tt.tags))
			assert.NoError(t, err)

			if tt.want == "" {
				assert.True(t, got == nil)
				return
			}
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got.Library)
			assert.Equal(t, tt.offset, got.Offset)
		})
	}
}

func TestFindSignature(t *testing.T) {
	d := New(log.NewTestLogger(t))

	img := newImage(t, 0x8000, map[uint32]string{0x100: "SRAM_V113"})
	assert.Nil(t, d.FindSignature(img))

	img = newImage(t, 0x8000, map[uint32]string{0x100: "EEPROM_V124"})
	saveType := d.FindSignature(img)
	assert.NotNil(t, saveType)
	assert.False(t, saveType.Patch(img))
}

func TestPatchUnsupported(t *testing.T) {
	img := newImage(t, 0x8000, nil)
	for _, library := range []Library{EEPROM, Flash512, Flash1M, Flash} {
		t.Run(string(library), func(t *testing.T) {
			assert.False(t, (&Type{Library: library}).Patch(img))
		})
	}
}
