// Package resetpatch redirects the entry point of a composed GBA image
// through a trampoline that adds warm reset support.
//
// The patch is applied in place and can not be undone. An image that can
// not be patched still boots, only without warm reset support.
package resetpatch

import (
	"errors"
	"fmt"

	"github.com/retroenv/retroflash/internal/arm"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// Interrupt vector literals. Every occurrence of StackLiteral in the image
// is replaced by RemappedLiteral so that the game installs its interrupt
// handler behind the trampoline hook.
const (
	StackLiteral    = 0x03007FFC
	RemappedLiteral = 0x03FFFFF4
)

var (
	// ErrNoFreeSpace is returned when no empty run for the trampoline was found.
	ErrNoFreeSpace = errors.New("no free space for the reset trampoline")
	// ErrNoStackLiteral is returned when the image does not reference the
	// interrupt vector literal.
	ErrNoStackLiteral = errors.New("interrupt vector literal not found")
)

// Layout describes the addresses that bound the free space search.
type Layout struct {
	Base    uint32 // address of the image entry branch
	Ceiling uint32 // the trampoline and entry word end below this address
	Floor   uint32 // the search stops at this address
}

// DefaultLayout is the layout of the cartridge ROM window.
var DefaultLayout = Layout{
	Base:    hw.ROMBase,
	Ceiling: 0x09FFFF00,
	Floor:   0x080000C0,
}

// Target is the result of a successful patch.
type Target struct {
	OriginalEntryPoint      uint32
	TrampolineSite          uint32
	TrampolineSize          uint32 // including the saved entry word
	StackLiteralOccurrences int
}

// Patcher applies the reset patch.
type Patcher struct {
	logger     *log.Logger
	layout     Layout
	trampoline []uint32
}

// Option configures a patcher.
type Option func(*Patcher)

// WithLayout sets the address layout used for the free space search.
func WithLayout(layout Layout) Option {
	return func(p *Patcher) {
		p.layout = layout
	}
}

// WithTrampoline sets the trampoline code. It is padded with zero bytes to
// a whole number of words.
func WithTrampoline(code []byte) Option {
	return func(p *Patcher) {
		p.trampoline = toWords(code)
	}
}

// New returns a patcher that installs the default trampoline.
func New(logger *log.Logger, opts ...Option) *Patcher {
	p := &Patcher{
		logger:     logger,
		layout:     DefaultLayout,
		trampoline: toWords(DefaultTrampoline()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Patch patches the image, which has to be mapped writable. On error the
// entry point is left unmodified.
func (p *Patcher) Patch(img *rom.Image) (Target, error) {
	p.logger.Info("Soft reset patching")

	target := Target{
		OriginalEntryPoint: arm.BranchTarget(p.word(img, p.layout.Base), p.layout.Base),
	}

	site, ok := p.findSite(img)
	if !ok {
		return target, ErrNoFreeSpace
	}
	target.TrampolineSite = site
	target.TrampolineSize = p.trampolineSize() + 4

	target.StackLiteralOccurrences = p.remapLiterals(img)
	if target.StackLiteralOccurrences == 0 {
		return target, ErrNoStackLiteral
	}

	p.setWord(img, p.layout.Base, arm.Branch(p.layout.Base, site))
	for i, w := range p.trampoline {
		p.setWord(img, site+uint32(i*4), w)
	}
	p.setWord(img, site+p.trampolineSize(), target.OriginalEntryPoint)

	p.logger.Info("Patched",
		log.Hex("entry", target.OriginalEntryPoint),
		log.Hex("trampoline", site),
		log.Int("literals", target.StackLiteralOccurrences))
	return target, nil
}

// findSite searches downwards from the ceiling for an empty run that holds
// the trampoline and the entry word. If the image ends below the start of
// the search the space behind it is used.
func (p *Patcher) findSite(img *rom.Image) (uint32, bool) {
	runSize := p.trampolineSize() + 4
	site := p.layout.Ceiling - runSize
	if site < p.layout.Base+img.Size() {
		for site > p.layout.Floor {
			if p.isEmpty(img, site, runSize) {
				break
			}
			site -= 4
		}
	}
	if site <= p.layout.Floor {
		return 0, false
	}
	return site, true
}

// isEmpty returns whether the run at addr consists only of zero words or
// only of words with all bits set. Runs mixing both are not empty.
func (p *Patcher) isEmpty(img *rom.Image, addr, size uint32) bool {
	var zeroes, ones bool
	for offset := uint32(0); offset < size; offset += 4 {
		switch w := p.word(img, addr+offset); {
		case w == 0 && !ones:
			zeroes = true
		case w == 0xFFFFFFFF && !zeroes:
			ones = true
		default:
			return false
		}
	}
	return true
}

func (p *Patcher) remapLiterals(img *rom.Image) int {
	count := 0
	for offset := uint32(0); offset+4 <= img.Size(); offset += 4 {
		if img.Word(offset) == StackLiteral {
			img.SetWord(offset, RemappedLiteral)
			count++
		}
	}
	return count
}

func (p *Patcher) trampolineSize() uint32 {
	return uint32(len(p.trampoline) * 4)
}

func (p *Patcher) word(img *rom.Image, addr uint32) uint32 {
	return img.Word(addr - hw.ROMBase)
}

func (p *Patcher) setWord(img *rom.Image, addr, value uint32) {
	img.SetWord(addr-hw.ROMBase, value)
}

func toWords(code []byte) []uint32 {
	padded := make([]byte, (len(code)+3)&^3)
	copy(padded, code)
	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = uint32(padded[i*4]) | uint32(padded[i*4+1])<<8 |
			uint32(padded[i*4+2])<<16 | uint32(padded[i*4+3])<<24
	}
	return words
}

// String returns a description of the target for log output.
func (t Target) String() string {
	return fmt.Sprintf("entry 0x%08X, trampoline 0x%08X, %d literals",
		t.OriginalEntryPoint, t.TrampolineSite, t.StackLiteralOccurrences)
}
