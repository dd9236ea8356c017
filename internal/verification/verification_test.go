package verification

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retroflash/internal/arm"
	"github.com/retroenv/retroflash/internal/composer"
	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retroflash/internal/resetpatch"
	"github.com/retroenv/retroflash/internal/supercard"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NoError(t, os.WriteFile(path, data, 0o644))
}

func testCore() []byte {
	data := make([]byte, 0x800)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	binary.LittleEndian.PutUint32(data, arm.Branch(hw.ROMBase, hw.ROMBase+0xC0))
	binary.LittleEndian.PutUint32(data[0x100:], resetpatch.StackLiteral)
	binary.LittleEndian.PutUint32(data[0x400:], resetpatch.StackLiteral)
	return data
}

func compose(t *testing.T, settings options.Settings, game string) (*flashbus.Controller, *supercard.Cartridge,
	string, *composer.Result, string) {

	t.Helper()
	dir := t.TempDir()
	kernelDir := filepath.Join(dir, "scfw")
	writeFile(t, filepath.Join(kernelDir, "nes.gba"), testCore())
	writeFile(t, filepath.Join(kernelDir, "hvca.gba"), testCore())
	for _, name := range []string{"font_a.raw", "font_k.raw", "mapr/mnsf.bin", "disksys.rom"} {
		writeFile(t, filepath.Join(kernelDir, "hvca", name), []byte(name))
	}

	path := filepath.Join(dir, game)
	payload := make([]byte, 0x1234)
	for i := range payload {
		payload[i] = byte(i)
	}
	writeFile(t, path, payload)

	logger := log.NewTestLogger(t)
	cart := supercard.New()
	bus := flashbus.New(cart)
	family := detector.New(logger).Detect(path, settings)
	c := composer.New(logger, bus, settings, composer.WithKernelDir(kernelDir))
	result, err := c.Compose(context.Background(), family, path)
	assert.NoError(t, err)
	return bus, cart, kernelDir, result, path
}

func TestVerifyImage(t *testing.T) {
	tests := []struct {
		name     string
		game     string
		settings options.Settings
		patched  bool
	}{
		{name: "plain", game: "Game (U).nes"},
		{name: "reset patched", game: "Game (E).nes", settings: options.DefaultSettings(), patched: true},
		{name: "terminator", game: "song.nsf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, _, kernelDir, result, path := compose(t, tt.settings, tt.game)
			assert.Equal(t, tt.patched, result.ResetPatch != nil)

			err := VerifyImage(context.Background(), log.NewTestLogger(t), bus, kernelDir, result, path)
			assert.NoError(t, err)
			assert.Equal(t, flashbus.MediaRead, bus.Mode())
		})
	}
}

func TestVerifyImageMismatch(t *testing.T) {
	bus, cart, kernelDir, result, path := compose(t, options.Settings{}, "Game (U).nes")

	payload := result.Segments[len(result.Segments)-1]
	cart.LoadSDRAM(payload.Offset+0x10, []byte{0xAA, 0xBB})

	err := VerifyImage(context.Background(), log.NewTestLogger(t), bus, kernelDir, result, path)
	assert.ErrorContains(t, err, "segment 'Game (U).nes' mismatch: 2 offset mismatches")
	assert.Equal(t, flashbus.MediaRead, bus.Mode())
}

func TestVerifyImageSegmentCount(t *testing.T) {
	bus, _, kernelDir, result, path := compose(t, options.Settings{}, "Game (U).nes")
	result.Segments = result.Segments[:1]

	err := VerifyImage(context.Background(), log.NewTestLogger(t), bus, kernelDir, result, path)
	assert.ErrorContains(t, err, "mismatched segment count")
}

func TestCheckBufferEqual(t *testing.T) {
	logger := log.NewTestLogger(t)
	assert.NoError(t, checkBufferEqual(logger, 0, []byte{1, 2}, []byte{1, 2}))
	assert.ErrorContains(t, checkBufferEqual(logger, 0, []byte{1, 2}, []byte{1}), "mismatched lengths")
	assert.ErrorContains(t, checkBufferEqual(logger, 0x100, []byte{1, 2, 3}, []byte{0, 2, 0}), "2 offset mismatches")
	assert.ErrorContains(t, checkBufferEqual(logger, 0, make([]byte, 12), bytes.Repeat([]byte{1}, 12)), "12 offset mismatches")
}
