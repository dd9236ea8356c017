package inspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNES(t *testing.T) {
	data := make([]byte, 16+16384+8192)
	copy(data, []byte{'N', 'E', 'S', 0x1A})
	data[4] = 1 // 16 KiB PRG
	data[5] = 1 // 8 KiB CHR
	path := writeFile(t, "Game (E).nes", data)

	i := New(log.NewTestLogger(t))
	cart, err := i.NES(path)
	assert.NoError(t, err)
	assert.Equal(t, uint8(0), cart.Mapper)
	assert.Len(t, cart.PRG, 16384)
	assert.Len(t, cart.CHR, 8192)

	i.Inspect(detector.NES, path)
}

func TestNESInvalid(t *testing.T) {
	path := writeFile(t, "broken.nes", []byte("not a cartridge"))

	i := New(log.NewTestLogger(t))
	_, err := i.NES(path)
	assert.Error(t, err)

	// logged only
	i.Inspect(detector.NES, path)
}

func TestAudioInvalid(t *testing.T) {
	path := writeFile(t, "empty.mpa", nil)

	i := New(log.NewTestLogger(t))
	_, err := i.Audio(path)
	assert.Error(t, err)

	i.Inspect(detector.Music, path)
	i.Inspect(detector.Native, path)
}
