// Package firmware reprograms the flash chip holding the cartridge firmware.
//
// Programming follows the JEDEC command set: every command is preceded by
// the two cycle unlock sequence, completion of erase and program operations
// is detected by polling the DQ6 toggle bit. The polls have no timeout, a
// chip that never finishes hangs the programmer like it hangs the hardware.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retrogolib/log"
)

// MaxSize is the largest firmware image that fits into the chip.
const MaxSize = hw.FlashChipSize

// VendorSignature is the expected value of bits 8 to 15 of the chip id.
const VendorSignature = 0x22

// ChunkSize is the size of the file chunks that are programmed in one go.
const ChunkSize = 16 * 1024

// ChipID is the identification of the flash chip, the device code in the
// lower and the manufacturer code in the upper 16 bits.
type ChipID uint32

// Device returns the device code.
func (id ChipID) Device() uint16 {
	return uint16(id)
}

// Manufacturer returns the manufacturer code.
func (id ChipID) Manufacturer() uint16 {
	return uint16(id >> 16)
}

// Vendor returns the vendor signature byte.
func (id ChipID) Vendor() uint8 {
	return uint8(id >> 8)
}

func (id ChipID) String() string {
	return fmt.Sprintf("0x%08X", uint32(id))
}

// Programmer flashes firmware images through a cartridge bus.
type Programmer struct {
	logger *log.Logger
	bus    *flashbus.Controller
	config Config
	buf    []byte
}

// New creates a new Programmer for the given bus.
func New(logger *log.Logger, bus *flashbus.Controller, opts ...Option) *Programmer {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		logger: logger,
		bus:    bus,
		config: cfg,
		buf:    make([]byte, ChunkSize),
	}
}

// Flash programs the firmware file at path.
func (p *Programmer) Flash(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening firmware '%s': %w", path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("getting firmware file info '%s': %w", path, err)
	}

	return p.Program(ctx, file, info.Size())
}

// Program performs the complete firmware update:
//  1. Identify the chip and check its vendor signature
//  2. Ask the confirmer
//  3. Check the firmware size
//  4. Erase the chip
//  5. Program the image word by word
//
// Interrupts are disabled during the chip operations. The context is only
// checked before the erase, once the chip is erased the update runs to
// completion.
func (p *Programmer) Program(ctx context.Context, r io.Reader, size int64) error {
	id := p.Identify()
	p.logger.Info("Flash chip identified", log.Stringer("id", id))
	if id.Vendor() != VendorSignature {
		return &UnrecognizedChipError{ID: id}
	}

	if p.config.Confirmer != nil {
		ok, err := p.config.Confirmer.Confirm(id)
		if err != nil {
			return fmt.Errorf("confirming firmware update: %w", err)
		}
		if !ok {
			return ErrCancelled
		}
	}

	if size > MaxSize {
		return &FirmwareTooLargeError{Size: size}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}

	bus := p.bus.Bus()
	ime := bus.IME()
	bus.SetIME(0)
	defer bus.SetIME(ime)

	p.logger.Info("Erasing flash")
	p.erase()
	p.reportProgress(Progress{Phase: PhaseErasing, TotalBytes: int(size)})

	p.logger.Info("Programming flash", log.Int("size", int(size)))
	written, err := p.program(r, int(size))
	if err != nil {
		return fmt.Errorf("programming flash at offset 0x%X: %w", written, err)
	}

	p.reportProgress(Progress{Phase: PhaseComplete, BytesWritten: written, TotalBytes: int(size)})
	p.logger.Info("Firmware flashed", log.Int("bytes", written))
	return nil
}

// Identify reads the chip id in autoselect mode and returns the chip to
// read mode. The bus is left in media mode.
func (p *Programmer) Identify() ChipID {
	bus := p.bus.Bus()
	ime := bus.IME()
	bus.SetIME(0)
	defer bus.SetIME(ime)

	defer p.bus.Enter(flashbus.FlashChipWrite)()

	p.unlock()
	bus.Write16(hw.FlashUnlockAddress1, hw.FlashIdentify)
	id := ChipID(bus.Read16(hw.FlashUnlockAddress1)) | ChipID(bus.Read16(hw.ROMBase))<<16
	bus.Write16(hw.ROMBase, hw.FlashIdle)
	return id
}

func (p *Programmer) erase() {
	defer p.bus.Enter(flashbus.FlashChipWrite)()
	bus := p.bus.Bus()

	p.unlock()
	bus.Write16(hw.FlashUnlockAddress1, hw.FlashErase)
	p.unlock()
	bus.Write16(hw.FlashUnlockAddress1, hw.FlashEraseChip)
	p.waitReady()
	bus.Write16(hw.ROMBase, hw.FlashIdle)
}

// program reads the image in chunks in media mode and programs every
// chunk in flash chip mode.
func (p *Programmer) program(r io.Reader, size int) (int, error) {
	written := 0
	for {
		p.bus.SetMode(flashbus.MediaRead)
		n, err := io.ReadFull(r, p.buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return written, fmt.Errorf("reading firmware: %w", err)
		}
		if n == 0 {
			return written, nil
		}

		chunk := p.buf[:n]
		if n%2 != 0 {
			chunk = append(chunk, 0xFF)
		}
		p.programChunk(uint32(written), chunk)
		written += n

		p.reportProgress(Progress{Phase: PhaseProgramming, BytesWritten: written, TotalBytes: size})
		p.logger.Debug("Chunk programmed", log.Hex("offset", written), log.Hex("size", size))

		if err != nil || written >= MaxSize {
			return written, nil
		}
	}
}

func (p *Programmer) programChunk(offset uint32, data []byte) {
	defer p.bus.Enter(flashbus.FlashChipWrite)()
	bus := p.bus.Bus()

	for i := 0; i < len(data); i += 2 {
		p.unlock()
		bus.Write16(hw.FlashUnlockAddress1, hw.FlashProgram)
		bus.Write16(hw.ROMBase+offset+uint32(i), uint16(data[i])|uint16(data[i+1])<<8)
		p.waitReady()
		bus.Write16(hw.ROMBase, hw.FlashIdle)
	}
}

func (p *Programmer) unlock() {
	bus := p.bus.Bus()
	bus.Write16(hw.FlashUnlockAddress1, hw.FlashUnlock1)
	bus.Write16(hw.FlashUnlockAddress2, hw.FlashUnlock2)
}

// waitReady polls until two consecutive reads return the same value, DQ6
// toggles on every read while an operation is running.
func (p *Programmer) waitReady() {
	bus := p.bus.Bus()
	for {
		if bus.Read16(hw.ROMBase) == bus.Read16(hw.ROMBase) {
			return
		}
	}
}

func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}
