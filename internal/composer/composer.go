// Package composer builds the image of a guest file in the cartridge SDRAM.
//
// An image is the interpreter core followed by the dependency files the
// core needs, the header record describing the payload and the payload
// itself. After the final segment the image is finalized: the save file is
// preloaded and the waitstate, save type and reset patches are applied.
package composer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retroflash/internal/record"
	"github.com/retroenv/retroflash/internal/resetpatch"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retroflash/internal/savetype"
	"github.com/retroenv/retroflash/internal/segment"
	"github.com/retroenv/retroflash/internal/sram"
	"github.com/retroenv/retroflash/internal/state"
	"github.com/retroenv/retrogolib/log"
)

// ConfigStore provides the boolean kernel settings.
type ConfigStore interface {
	Enabled(setting options.Setting) bool
}

// stage of the composition state machine.
type stage int

const (
	stageLoadCore stage = iota
	stageLoadDependency
	stageWriteHeader
	stageWritePayload
	stageFinalize
)

func (s stage) String() string {
	switch s {
	case stageLoadCore:
		return "load-core"
	case stageLoadDependency:
		return "load-dependency"
	case stageWriteHeader:
		return "write-header"
	case stageWritePayload:
		return "write-payload"
	case stageFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result describes a composed image.
type Result struct {
	Plan     Plan
	Segments []segment.Entry
	// Size is the number of bytes of the image.
	Size      uint32
	Truncated bool
	// ResetPatch is set if the reset trampoline was installed.
	ResetPatch *resetpatch.Target
	// SaveFile is the save file that belongs to the image if autosave is
	// enabled.
	SaveFile string
}

// Composer composes images through a cartridge bus.
type Composer struct {
	logger *log.Logger
	bus    *flashbus.Controller
	config ConfigStore

	kernelDir   string
	segmentOpts []segment.Option
	saveTypes   rom.SaveTypeDetector
	waitstates  rom.WaitstatePatcher
	resetPatch  *resetpatch.Patcher
	sram        *sram.Transfer
	state       *state.Store
}

// Option configures a composer.
type Option func(*Composer)

// WithKernelDir sets the directory holding the cores and the state files.
func WithKernelDir(dir string) Option {
	return func(c *Composer) {
		c.kernelDir = dir
	}
}

// WithSaveTypeDetector replaces the default save type detector.
func WithSaveTypeDetector(saveTypes rom.SaveTypeDetector) Option {
	return func(c *Composer) {
		c.saveTypes = saveTypes
	}
}

// WithWaitstatePatcher sets the waitstate patcher. Without one the
// waitstate patch step is skipped.
func WithWaitstatePatcher(patcher rom.WaitstatePatcher) Option {
	return func(c *Composer) {
		c.waitstates = patcher
	}
}

// WithResetPatcher replaces the default reset patcher.
func WithResetPatcher(patcher *resetpatch.Patcher) Option {
	return func(c *Composer) {
		c.resetPatch = patcher
	}
}

// WithSegmentOptions sets options for every composition.
func WithSegmentOptions(opts ...segment.Option) Option {
	return func(c *Composer) {
		c.segmentOpts = opts
	}
}

// New returns a composer writing through the given bus.
func New(logger *log.Logger, bus *flashbus.Controller, config ConfigStore, opts ...Option) *Composer {
	c := &Composer{
		logger:    logger,
		bus:       bus,
		config:    config,
		kernelDir: options.DefaultKernelDir,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.saveTypes == nil {
		c.saveTypes = savetype.New(logger)
	}
	if c.resetPatch == nil {
		c.resetPatch = resetpatch.New(logger)
	}
	c.sram = sram.New(logger, bus)
	c.state = state.New(c.kernelDir)
	return c
}

// SaveFilePath returns the save file that belongs to the payload at path.
func SaveFilePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".sav"
}

// Compose writes the image for the payload at path. A missing core is
// returned as CoreNotFoundError before anything is written, errors after
// the first segment leave a partial image in the cartridge.
func (c *Composer) Compose(ctx context.Context, family detector.Family, path string) (*Result, error) {
	plan, err := NewPlan(family, path, c.config)
	if err != nil {
		return nil, err
	}

	payload, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("getting file info '%s': %w", path, err)
	}

	comp := segment.New(c.logger, c.bus, c.segmentOpts...)
	result := &Result{Plan: plan}

	if plan.Core != "" {
		corePath := filepath.Join(c.kernelDir, plan.Core)
		if _, err := os.Stat(corePath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &CoreNotFoundError{Name: plan.CoreName, Path: corePath}
			}
			return nil, fmt.Errorf("getting core file info '%s': %w", corePath, err)
		}

		c.logStage(stageLoadCore, plan.CoreName)
		if err := c.writeFile(comp, plan.Core, corePath); err != nil {
			return nil, err
		}
	}

	for _, dep := range plan.Dependencies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}
		c.logStage(stageLoadDependency, dep.Path)
		if err := c.writeDependency(comp, dep); err != nil {
			return nil, err
		}
	}

	if plan.Header != nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}
		c.logStage(stageWriteHeader, record.BaseName(path))
		header := plan.Header(path, uint32(payload.Size()))
		if err := c.writeRecord(comp, "header", header); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cancelled: %w", err)
	}
	c.logStage(stageWritePayload, record.BaseName(path))
	if err := c.writeFile(comp, record.BaseName(path), path); err != nil {
		return nil, err
	}
	if plan.Terminator != nil {
		if err := c.writeRecord(comp, "terminator", plan.Terminator); err != nil {
			return nil, err
		}
	}

	result.Segments = comp.Segments()
	result.Size = comp.WrittenOffset()
	result.Truncated = comp.Truncated()
	if result.Truncated {
		c.logger.Warn("Image exceeds the ROM window and was truncated", log.Hex("size", result.Size))
	}

	c.logStage(stageFinalize, record.BaseName(path))
	c.finalize(result, path)
	return result, nil
}

// finalize runs the enabled finalization steps in order. Failing steps are
// logged and skipped.
func (c *Composer) finalize(result *Result, path string) {
	if c.config.Enabled(options.Autosave) {
		result.SaveFile = SaveFilePath(path)
		if _, err := c.sram.Load(result.SaveFile); err != nil && !errors.Is(err, sram.ErrSaveNotFound) {
			c.logger.Warn("Loading save file failed", log.Err(err))
		}
		if err := c.state.SetLastSaved(result.SaveFile); err != nil {
			c.logger.Warn("Recording save file failed", log.Err(err))
		}
	}

	img := rom.New(c.bus.Bus(), result.Size)
	defer c.bus.Enter(flashbus.SramReadWrite)()

	if c.config.Enabled(options.WaitstatePatch) {
		if c.waitstates != nil {
			c.logger.Info("Applying waitstate patches")
			c.waitstates.Apply(img)
		} else {
			c.logger.Debug("No waitstate patcher available")
		}
	}

	if c.config.Enabled(options.SRAMPatch) {
		c.logger.Info("Applying SRAM patch")
		saveType := c.saveTypes.FindSignature(img)
		switch {
		case saveType == nil:
			c.logger.Info("No need to patch")
		case !saveType.Patch(img):
			c.logger.Warn("Save type patch error")
		}
	}

	if c.config.Enabled(options.SoftResetPatch) {
		target, err := c.resetPatch.Patch(img)
		if err != nil {
			c.logger.Warn("Soft reset patch skipped", log.Err(err))
			return
		}
		result.ResetPatch = &target
	}
}

func (c *Composer) writeDependency(comp *segment.Composition, dep Dependency) error {
	path := filepath.Join(c.kernelDir, dep.Path)
	seg, file, err := segment.Open(dep.Path, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingDependencyError{Role: dep.Role, Path: path}
		}
		return err
	}
	defer func() { _ = file.Close() }()

	if dep.Header != nil {
		if err := c.writeRecord(comp, dep.Path+" header", dep.Header(path, seg.Size)); err != nil {
			return err
		}
	}
	return c.write(comp, seg)
}

func (c *Composer) writeFile(comp *segment.Composition, name, path string) error {
	seg, file, err := segment.Open(name, path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return c.write(comp, seg)
}

func (c *Composer) writeRecord(comp *segment.Composition, name string, rec record.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return c.write(comp, segment.FromBytes(name, data))
}

// write commits the segment. Overflowing the ROM window is logged, the
// composition continues with the truncated image.
func (c *Composer) write(comp *segment.Composition, seg segment.Segment) error {
	err := comp.Write(seg)
	if errors.Is(err, segment.ErrCompositionOverflow) {
		c.logger.Warn("Segment truncated", log.String("segment", seg.Name), log.Err(err))
		return nil
	}
	return err
}

func (c *Composer) logStage(s stage, name string) {
	c.logger.Info("Composing", log.Stringer("stage", s), log.String("name", name))
}
