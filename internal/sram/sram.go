// Package sram transfers save files between the file system and the
// battery backed cartridge SRAM.
package sram

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retrogolib/log"
)

// ChunkSize is the transfer unit between the file system and SRAM.
const ChunkSize = 16 * 1024

// ErrSaveNotFound is returned when the save file to load does not exist.
var ErrSaveNotFound = errors.New("save file does not exist")

// maxReportedMismatches limits the mismatch log output of a single load.
const maxReportedMismatches = 10

// Transfer copies save data through a cartridge bus.
type Transfer struct {
	logger *log.Logger
	bus    *flashbus.Controller
	buf    []byte
}

// New returns a save transfer using the given bus.
func New(logger *log.Logger, bus *flashbus.Controller) *Transfer {
	return &Transfer{
		logger: logger,
		bus:    bus,
		buf:    make([]byte, ChunkSize),
	}
}

// Load writes the save file at path into SRAM. Every byte is read back,
// mismatches are logged and counted but do not abort the transfer. Data
// beyond the SRAM size is ignored.
func (t *Transfer) Load(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.logger.Info("Save file does not exist", log.String("file", path))
			return 0, fmt.Errorf("loading '%s': %w", path, ErrSaveNotFound)
		}
		return 0, fmt.Errorf("opening save file '%s': %w", path, err)
	}
	defer func() { _ = file.Close() }()

	t.logger.Info("Loading SRAM", log.String("file", path))

	var total uint32
	mismatches := 0
	for total < hw.SRAMSize {
		n, err := io.ReadFull(file, t.buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return mismatches, fmt.Errorf("reading save file '%s': %w", path, err)
		}
		if n == 0 {
			break
		}
		if uint32(n) > hw.SRAMSize-total {
			t.logger.Warn("Save file is larger than SRAM", log.String("file", path))
			n = int(hw.SRAMSize - total)
		}

		mismatches += t.writeChunk(total, t.buf[:n])
		total += uint32(n)

		t.logger.Debug("SRAM chunk loaded", log.Hex("offset", total))
		if err != nil {
			break
		}
	}

	if mismatches > 0 {
		t.logger.Warn("SRAM verification failed", log.Int("mismatches", mismatches))
	}
	return mismatches, nil
}

func (t *Transfer) writeChunk(offset uint32, data []byte) int {
	defer t.bus.Enter(flashbus.SramReadWrite)()
	bus := t.bus.Bus()

	mismatches := 0
	for i, b := range data {
		addr := hw.SRAMBase + offset + uint32(i)
		bus.Write8(addr, b)
		if got := bus.Read8(addr); got != b {
			mismatches++
			if mismatches <= maxReportedMismatches {
				t.logger.Warn("SRAM write failed",
					log.Hex("offset", offset+uint32(i)),
					log.Hex("expected", b),
					log.Hex("got", got))
			}
		}
	}
	return mismatches
}

// Save writes the complete SRAM contents to the file at path.
func (t *Transfer) Save(path string) error {
	t.logger.Info("Saving SRAM", log.String("file", path))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating save file '%s': %w", path, err)
	}

	for offset := uint32(0); offset < hw.SRAMSize; offset += ChunkSize {
		t.readChunk(offset, t.buf)
		if _, err := file.Write(t.buf); err != nil {
			_ = file.Close()
			return fmt.Errorf("writing save file '%s': %w", path, err)
		}
		t.logger.Debug("SRAM chunk saved", log.Hex("offset", offset+ChunkSize))
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("closing save file '%s': %w", path, err)
	}
	return nil
}

func (t *Transfer) readChunk(offset uint32, buf []byte) {
	defer t.bus.Enter(flashbus.SramReadOnly)()
	bus := t.bus.Bus()

	for i := range buf {
		buf[i] = bus.Read8(hw.SRAMBase + offset + uint32(i))
	}
}
