package resetpatch

import (
	"encoding/binary"
	"errors"
	"math/bits"
	"testing"

	"github.com/retroenv/retroflash/internal/arm"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retroflash/internal/supercard"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const (
	testImageSize = 0x2000
	testEntry     = hw.ROMBase + 0xC0
)

var testLayout = Layout{
	Base:    hw.ROMBase,
	Ceiling: hw.ROMBase + 0x1800,
	Floor:   hw.ROMBase + 0xC0,
}

// testCode is a short trampoline of two words.
var testCode = []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

// newImage returns an image filled with code like words, starting with a
// branch to testEntry.
func newImage(t *testing.T) (*supercard.Cartridge, *rom.Image) {
	t.Helper()

	data := make([]byte, testImageSize)
	for i := 0; i < len(data); i += 4 {
		binary.LittleEndian.PutUint32(data[i:], 0xE1A00000+uint32(i))
	}
	binary.LittleEndian.PutUint32(data, arm.Branch(hw.ROMBase, testEntry))

	cart := supercard.New()
	cart.LoadSDRAM(0, data)
	flashbus.New(cart).SetMode(flashbus.SramReadWrite)
	return cart, rom.New(cart, testImageSize)
}

func putWord(cart *supercard.Cartridge, addr, value uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, value)
	cart.LoadSDRAM(addr-hw.ROMBase, b)
}

func fill(cart *supercard.Cartridge, addr, size, value uint32) {
	for offset := uint32(0); offset < size; offset += 4 {
		putWord(cart, addr+offset, value)
	}
}

func TestPatchSelectsEmptyRun(t *testing.T) {
	cart, img := newImage(t)
	site := uint32(hw.ROMBase + 0x1000)
	fill(cart, site, uint32(len(testCode))+4, 0)
	putWord(cart, hw.ROMBase+0x400, StackLiteral)
	putWord(cart, hw.ROMBase+0x1F00, StackLiteral)

	p := New(log.NewTestLogger(t), WithLayout(testLayout), WithTrampoline(testCode))
	target, err := p.Patch(img)
	assert.NoError(t, err)

	assert.Equal(t, uint32(testEntry), target.OriginalEntryPoint)
	assert.Equal(t, site, target.TrampolineSite)
	assert.Equal(t, 2, target.StackLiteralOccurrences)

	assert.Equal(t, site, arm.BranchTarget(img.Word(0), hw.ROMBase))
	assert.Equal(t, testCode, cart.SDRAM(site-hw.ROMBase, uint32(len(testCode))))
	assert.Equal(t, uint32(testEntry), img.Word(site-hw.ROMBase+8))
	assert.Equal(t, uint32(RemappedLiteral), img.Word(0x400))
	assert.Equal(t, uint32(RemappedLiteral), img.Word(0x1F00))
}

func TestPatchPrefersHighestRun(t *testing.T) {
	cart, img := newImage(t)
	low := uint32(hw.ROMBase + 0x800)
	high := uint32(hw.ROMBase + 0x1400)
	fill(cart, low, 12, 0xFFFFFFFF)
	fill(cart, high, 12, 0xFFFFFFFF)
	putWord(cart, hw.ROMBase+0x200, StackLiteral)

	p := New(log.NewTestLogger(t), WithLayout(testLayout), WithTrampoline(testCode))
	target, err := p.Patch(img)
	assert.NoError(t, err)
	assert.Equal(t, high, target.TrampolineSite)
}

func TestPatchMixedRunIsNotEmpty(t *testing.T) {
	cart, img := newImage(t)
	site := uint32(hw.ROMBase + 0x1000)
	putWord(cart, site, 0)
	putWord(cart, site+4, 0xFFFFFFFF)
	putWord(cart, site+8, 0)
	putWord(cart, hw.ROMBase+0x200, StackLiteral)
	entry := img.Word(0)

	p := New(log.NewTestLogger(t), WithLayout(testLayout), WithTrampoline(testCode))
	_, err := p.Patch(img)
	assert.True(t, errors.Is(err, ErrNoFreeSpace))
	assert.Equal(t, entry, img.Word(0))
	assert.Equal(t, uint32(StackLiteral), img.Word(0x200))
}

func TestPatchWithoutStackLiteral(t *testing.T) {
	cart, img := newImage(t)
	fill(cart, hw.ROMBase+0x1000, 12, 0)
	entry := img.Word(0)

	p := New(log.NewTestLogger(t), WithLayout(testLayout), WithTrampoline(testCode))
	target, err := p.Patch(img)
	assert.True(t, errors.Is(err, ErrNoStackLiteral))
	assert.Equal(t, 0, target.StackLiteralOccurrences)
	assert.Equal(t, entry, img.Word(0))
	assert.Equal(t, make([]byte, 12), cart.SDRAM(0x1000, 12))
}

func TestPatchSmallImageUsesSpaceBehindIt(t *testing.T) {
	cart, _ := newImage(t)
	putWord(cart, hw.ROMBase+0x100, StackLiteral)
	img := rom.New(cart, 0x400)

	p := New(log.NewTestLogger(t), WithLayout(testLayout), WithTrampoline(testCode))
	target, err := p.Patch(img)
	assert.NoError(t, err)
	assert.Equal(t, testLayout.Ceiling-12, target.TrampolineSite)
	assert.Equal(t, uint32(testEntry), img.Word(testLayout.Ceiling-hw.ROMBase-4))
}

func TestPatchDefaultTrampoline(t *testing.T) {
	cart, img := newImage(t)
	code := DefaultTrampoline()
	site := uint32(hw.ROMBase + 0x1000)
	fill(cart, site, uint32(len(code))+4, 0)
	putWord(cart, hw.ROMBase+0x300, StackLiteral)

	p := New(log.NewTestLogger(t), WithLayout(testLayout))
	target, err := p.Patch(img)
	assert.NoError(t, err)
	assert.Equal(t, site, target.TrampolineSite)
	assert.Equal(t, code, cart.SDRAM(site-hw.ROMBase, uint32(len(code))))
	assert.Equal(t, uint32(testEntry), img.Word(site-hw.ROMBase+uint32(len(code))))

	// the trampoline literal survives the literal rewrite
	assert.Equal(t, uint32(StackLiteral), img.Word(site-hw.ROMBase+literalIRQVector*4))
}

func TestDefaultTrampoline(t *testing.T) {
	code := DefaultTrampoline()
	assert.Len(t, code, trampolineWords*4)

	word := func(i int) uint32 { return binary.LittleEndian.Uint32(code[i*4:]) }
	assert.Equal(t, uint32(0xE28F0008), word(0))
	assert.Equal(t, uint32(0xE59F105C), word(1))
	assert.Equal(t, uint32(0xE59FF06C), word(3))
	assert.Equal(t, uint32(0xE3A01301), word(4))
	assert.Equal(t, uint32(0xE2811C01), word(5))
	assert.Equal(t, uint32(0xE1D123B0), word(6))
	assert.Equal(t, uint32(0xE3120FC3), word(7))
	assert.Equal(t, uint32(0x159F1044), word(8))
	assert.Equal(t, uint32(0x1591F000), word(9))
	assert.Equal(t, uint32(0xE3A02005), word(14))
	assert.Equal(t, uint32(0xE3A02007), word(22))
	assert.Equal(t, uint32(hardResetCall), word(25))
	assert.Equal(t, uint32(hw.ResetToken), word(literalToken))
	assert.Equal(t, uint32(RemappedLiteral), word(literalChain))
}

func TestDefaultTrampolineKeyCheck(t *testing.T) {
	code := DefaultTrampoline()
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(code[i*4:]) }
	rotated := func(w uint32) uint32 { return bits.RotateLeft32(w&0xFF, -2*int(w>>8&0xF)) }
	rn := func(w uint32) uint32 { return w >> 16 & 0xF }
	rd := func(w uint32) uint32 { return w >> 12 & 0xF }

	base, add, load, test := word(4), word(5), word(6), word(7)
	assert.Equal(t, rd(base), rn(add))
	assert.Equal(t, rd(add), rn(load))
	assert.Equal(t, rd(load), rn(test))
	halfwordOffset := load>>4&0xF0 | load&0xF
	assert.Equal(t, uint32(keyInput), rotated(base)+rotated(add)+halfwordOffset)
	assert.Equal(t, uint32(resetKeys), rotated(test))

	// the game's handler is entered with the r0 of the BIOS dispatcher
	for _, i := range []int{4, 5, 6, 8} {
		assert.True(t, rd(word(i)) != uint32(arm.R0))
	}
	assert.Equal(t, arm.LoadRegister(arm.NE, arm.PC, arm.R1), word(9))
}

func TestNewDefaults(t *testing.T) {
	p := New(log.NewTestLogger(t))
	assert.Equal(t, DefaultLayout, p.layout)
	assert.Equal(t, uint32(trampolineWords*4), p.trampolineSize())

	p = New(log.NewTestLogger(t), WithTrampoline([]byte{1, 2, 3, 4, 5}))
	assert.Equal(t, []uint32{0x04030201, 0x05}, p.trampoline)
}

func TestTargetString(t *testing.T) {
	target := Target{OriginalEntryPoint: 0x080000C0, TrampolineSite: 0x09FFFE00, StackLiteralOccurrences: 1}
	assert.Equal(t, "entry 0x080000C0, trampoline 0x09FFFE00, 1 literals", target.String())
}
