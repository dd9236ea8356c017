// Package segment streams byte sources into the cartridge ROM window.
//
// All segments of a composition are written back to back, each write starts
// at the cumulative offset of all previously written segments.
package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retrogolib/log"
)

// ChunkSize is the size of the staging buffer used for every transfer.
const ChunkSize = 16 * 1024

// ErrCompositionOverflow is returned when a segment does not fit below the
// composition ceiling. The segment is truncated at the ceiling.
var ErrCompositionOverflow = errors.New("composition exceeds the ROM window")

// Segment is a named byte source of known length.
type Segment struct {
	Name   string
	Source io.Reader
	Size   uint32
}

// FromBytes returns a segment for an in memory record.
func FromBytes(name string, data []byte) Segment {
	return Segment{
		Name:   name,
		Source: bytes.NewReader(data),
		Size:   uint32(len(data)),
	}
}

// Open returns a segment reading the file at path. The returned file has to
// be closed by the caller.
func Open(name, path string) (Segment, *os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return Segment{}, nil, fmt.Errorf("opening file '%s': %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return Segment{}, nil, fmt.Errorf("getting file info '%s': %w", path, err)
	}

	seg := Segment{
		Name:   name,
		Source: file,
		Size:   uint32(info.Size()),
	}
	return seg, file, nil
}

// Entry describes a segment that was committed to the ROM window.
type Entry struct {
	Name   string
	Offset uint32
	Length uint32
}

// Composition tracks the bytes committed to the ROM window for one image.
type Composition struct {
	logger  *log.Logger
	bus     *flashbus.Controller
	ceiling uint32
	written uint32
	entries []Entry
	buf     []byte

	truncated bool
}

// Option configures a composition.
type Option func(*Composition)

// WithCeiling lowers the size limit of the composition.
func WithCeiling(ceiling uint32) Option {
	return func(c *Composition) {
		if ceiling < hw.ROMSize {
			c.ceiling = ceiling
		}
	}
}

// New returns an empty composition that writes through the given bus.
func New(logger *log.Logger, bus *flashbus.Controller, opts ...Option) *Composition {
	c := &Composition{
		logger:  logger,
		bus:     bus,
		ceiling: hw.ROMSize,
		buf:     make([]byte, ChunkSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WrittenOffset returns the number of bytes committed so far.
func (c *Composition) WrittenOffset() uint32 {
	return c.written
}

// TotalSize returns the size limit of the composition.
func (c *Composition) TotalSize() uint32 {
	return c.ceiling
}

// Truncated returns whether a segment was cut off at the ceiling.
func (c *Composition) Truncated() bool {
	return c.truncated
}

// Segments returns the committed segments in write order.
func (c *Composition) Segments() []Entry {
	return c.entries
}

// Write streams the segment into the ROM window at the current offset.
// Chunks are read while the bus is in media mode and copied with SDRAM
// mapped writable, the bus is left in media mode after every chunk.
func (c *Composition) Write(seg Segment) error {
	entry := Entry{
		Name:   seg.Name,
		Offset: c.written,
	}
	defer func() {
		c.entries = append(c.entries, entry)
	}()

	for {
		n, err := io.ReadFull(seg.Source, c.buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("reading segment '%s': %w", seg.Name, err)
		}
		if n == 0 {
			return nil
		}

		room := c.ceiling - c.written
		overflow := uint32(n) > room
		if overflow {
			n = int(room)
		}

		if n > 0 {
			c.bus.SetMode(flashbus.SramReadWrite)
			c.bus.Bus().Copy(hw.ROMBase+c.written, c.buf[:n])
			c.bus.SetMode(flashbus.MediaRead)

			c.written += uint32(n)
			entry.Length += uint32(n)
		}

		c.logger.Debug("Chunk written",
			log.String("segment", seg.Name),
			log.Hex("offset", c.written),
			log.Hex("size", seg.Size))

		if overflow {
			c.truncated = true
			return fmt.Errorf("segment '%s' truncated at offset 0x%X: %w", seg.Name, c.written, ErrCompositionOverflow)
		}
		if err != nil {
			return nil
		}
	}
}
