// Package inspect reads metadata of guest payloads before they are loaded.
//
// Inspection is informational, the cores accept payloads that fail to parse
// and the composer loads them unchanged.
package inspect

import (
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
)

// bytesPerSample of the decoded stream, 16 bit stereo.
const bytesPerSample = 4

// Audio describes an MPEG audio payload.
type Audio struct {
	SampleRate int
	Duration   time.Duration
}

// Inspector logs payload metadata.
type Inspector struct {
	logger *log.Logger
}

// New returns a payload inspector.
func New(logger *log.Logger) *Inspector {
	return &Inspector{
		logger: logger,
	}
}

// Inspect logs the metadata of the payload at path if the family has a
// known payload format. Parse failures are logged as warnings.
func (i *Inspector) Inspect(family detector.Family, path string) {
	switch family {
	case detector.NES:
		cart, err := i.NES(path)
		if err != nil {
			i.logger.Warn("Payload is not an iNES file", log.String("file", path), log.Err(err))
			return
		}
		i.logger.Info("NES payload",
			log.String("file", path),
			log.Uint8("mapper", cart.Mapper),
			log.Int("prg", len(cart.PRG)),
			log.Int("chr", len(cart.CHR)),
			log.Int("mirror", int(cart.Mirror)),
			log.Int("battery", int(cart.Battery)),
		)
		if len(cart.Trainer) > 0 {
			i.logger.Warn("Payload contains a trainer", log.String("file", path))
		}

	case detector.Music:
		audio, err := i.Audio(path)
		if err != nil {
			i.logger.Warn("Payload is not MPEG audio", log.String("file", path), log.Err(err))
			return
		}
		i.logger.Info("Audio payload",
			log.String("file", path),
			log.Int("sample_rate", audio.SampleRate),
			log.String("duration", audio.Duration.String()),
		)
	}
}

// NES parses the iNES file at path.
func (i *Inspector) NES(path string) (*cartridge.Cartridge, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	cart, err := cartridge.LoadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}
	return cart, nil
}

// Audio probes the MPEG audio file at path.
func (i *Inspector) Audio(path string) (Audio, error) {
	file, err := os.Open(path)
	if err != nil {
		return Audio{}, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	dec, err := mp3.NewDecoder(file)
	if err != nil {
		return Audio{}, fmt.Errorf("mp3: %w", err)
	}

	audio := Audio{
		SampleRate: dec.SampleRate(),
	}
	if audio.SampleRate > 0 {
		samples := dec.Length() / bytesPerSample
		audio.Duration = time.Duration(samples) * time.Second / time.Duration(audio.SampleRate)
	}
	return audio, nil
}
