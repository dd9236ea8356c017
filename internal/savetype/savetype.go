// Package savetype detects the save library that a GBA image was linked
// with.
package savetype

import (
	"bytes"
	"errors"
	"io"

	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// Library is the version tag prefix the Nintendo save libraries embed.
type Library string

// Known save libraries, longer tags first so that FLASH512_V is not
// reported as FLASH_V.
const (
	EEPROM   Library = "EEPROM_V"
	SRAM     Library = "SRAM_V"
	Flash512 Library = "FLASH512_V"
	Flash1M  Library = "FLASH1M_V"
	Flash    Library = "FLASH_V"
)

var libraries = []Library{EEPROM, SRAM, Flash512, Flash1M, Flash}

const scanChunk = 16 * 1024

// Type is a detected save library.
type Type struct {
	Library Library
	Offset  uint32
}

// Patch implements rom.SaveType. Only EEPROM and flash types reach it,
// FindSignature returns nil for SRAM images. Those need library specific
// patch tables which are not shipped, so the patch always fails.
func (t *Type) Patch(_ *rom.Image) bool {
	return false
}

// Detector is the default save type detector.
type Detector struct {
	logger *log.Logger
}

// New returns a save type detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Find returns the first save library tag in the image.
func (d *Detector) Find(img *rom.Image) (*Type, error) {
	const overlap = 16
	buf := make([]byte, scanChunk+overlap)
	carried := 0

	for offset := int64(0); ; offset += scanChunk {
		n, err := img.ReadAt(buf[carried:carried+scanChunk], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		window := buf[:carried+n]

		if t := findTag(window, uint32(offset)-uint32(carried)); t != nil {
			return t, nil
		}
		if n < scanChunk {
			return nil, nil
		}

		carried = overlap
		copy(buf, window[len(window)-overlap:])
	}
}

// FindSignature implements rom.SaveTypeDetector. SRAM images are usable on
// the cartridge without a patch and return nil.
func (d *Detector) FindSignature(img *rom.Image) rom.SaveType {
	t, err := d.Find(img)
	if err != nil {
		d.logger.Warn("Detecting save type failed", log.Err(err))
		return nil
	}
	if t == nil {
		d.logger.Debug("No save library found")
		return nil
	}

	d.logger.Info("Detected save type",
		log.String("library", string(t.Library)),
		log.Hex("offset", t.Offset))
	if t.Library == SRAM {
		return nil
	}
	return t
}

func findTag(window []byte, base uint32) *Type {
	best := -1
	var lib Library
	for _, l := range libraries {
		i := bytes.Index(window, []byte(l))
		if i >= 0 && (best < 0 || i < best) {
			best = i
			lib = l
		}
	}
	if best < 0 {
		return nil
	}
	return &Type{
		Library: lib,
		Offset:  base + uint32(best),
	}
}
