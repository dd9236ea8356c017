// Package verification verifies that a composed image recreates its sources.
package verification

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/retroenv/retroflash/internal/composer"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/resetpatch"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// expected is the content a segment of the image was written from.
type expected struct {
	name string
	data []byte
}

// VerifyImage reads the composed image back through the bus and compares
// every segment with the file or record it was written from. Words changed
// by the reset patch are accepted.
func VerifyImage(ctx context.Context, logger *log.Logger, bus *flashbus.Controller,
	kernelDir string, result *composer.Result, path string) error {

	sources, err := expectedSegments(kernelDir, result.Plan, path)
	if err != nil {
		return err
	}
	if len(sources) != len(result.Segments) {
		return fmt.Errorf("mismatched segment count, %d != %d", len(sources), len(result.Segments))
	}

	defer bus.Enter(flashbus.SramReadOnly)()
	img := rom.New(bus.Bus(), result.Size)

	for i, entry := range result.Segments {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		source := sources[i]
		if entry.Name != source.name {
			return fmt.Errorf("segment %d is '%s', expected '%s'", i, entry.Name, source.name)
		}
		if uint32(len(source.data)) < entry.Length {
			return fmt.Errorf("segment '%s' is longer than its source", entry.Name)
		}
		want := source.data[:entry.Length]

		got := make([]byte, entry.Length)
		if _, err := img.ReadAt(got, int64(entry.Offset)); err != nil {
			return fmt.Errorf("reading segment '%s': %w", entry.Name, err)
		}
		if result.ResetPatch != nil {
			acceptResetPatch(*result.ResetPatch, entry.Offset, want, got)
		}

		if err := checkBufferEqual(logger, entry.Offset, want, got); err != nil {
			return fmt.Errorf("segment '%s' mismatch: %w", entry.Name, err)
		}
	}
	return nil
}

// expectedSegments rebuilds the segment sources of a plan in write order.
func expectedSegments(kernelDir string, plan composer.Plan, path string) ([]expected, error) {
	var sources []expected

	if plan.Core != "" {
		data, err := readFile(filepath.Join(kernelDir, plan.Core))
		if err != nil {
			return nil, err
		}
		sources = append(sources, expected{name: plan.Core, data: data})
	}

	for _, dep := range plan.Dependencies {
		depPath := filepath.Join(kernelDir, dep.Path)
		data, err := readFile(depPath)
		if err != nil {
			return nil, err
		}
		if dep.Header != nil {
			header, err := dep.Header(depPath, uint32(len(data))).MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("encoding %s header: %w", dep.Path, err)
			}
			sources = append(sources, expected{name: dep.Path + " header", data: header})
		}
		sources = append(sources, expected{name: dep.Path, data: data})
	}

	payload, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if plan.Header != nil {
		header, err := plan.Header(path, uint32(len(payload))).MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encoding header: %w", err)
		}
		sources = append(sources, expected{name: "header", data: header})
	}
	sources = append(sources, expected{name: filepath.Base(path), data: payload})

	if plan.Terminator != nil {
		data, err := plan.Terminator.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encoding terminator: %w", err)
		}
		sources = append(sources, expected{name: "terminator", data: data})
	}
	return sources, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file for comparison: %w", err)
	}
	return data, nil
}

// acceptResetPatch copies the expected bytes over the words of a segment
// that the reset patch rewrote: the entry branch, the trampoline and the
// remapped interrupt vector literals.
func acceptResetPatch(target resetpatch.Target, offset uint32, want, got []byte) {
	site := target.TrampolineSite - resetpatch.DefaultLayout.Base
	le := binary.LittleEndian

	for i := word(offset) - offset; i+4 <= uint32(len(got)); i += 4 {
		abs := offset + i
		inTrampoline := abs >= site && abs < site+target.TrampolineSize
		remapped := le.Uint32(want[i:]) == resetpatch.StackLiteral &&
			le.Uint32(got[i:]) == resetpatch.RemappedLiteral

		if abs == 0 || inTrampoline || remapped {
			copy(got[i:i+4], want[i:i+4])
		}
	}
}

// word rounds offset up to the next word boundary.
func word(offset uint32) uint32 {
	return (offset + 3) &^ 3
}

func checkBufferEqual(logger *log.Logger, offset uint32, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < 10 {
			logger.Warn("Offset mismatch",
				log.Hex("offset", offset+uint32(i)),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}
