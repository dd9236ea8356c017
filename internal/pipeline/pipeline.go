// Package pipeline orchestrates the loader workflow: the boot time autosave,
// the selection of a file and the launch of the composed image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retroflash/internal/composer"
	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retroflash/internal/firmware"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
	"github.com/retroenv/retroflash/internal/inspect"
	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retroflash/internal/rom"
	"github.com/retroenv/retroflash/internal/sram"
	"github.com/retroenv/retroflash/internal/state"
	"github.com/retroenv/retroflash/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

// ErrAutosaveEnabled is returned for manual save file operations while the
// autosave setting manages the save RAM.
var ErrAutosaveEnabled = errors.New("disable autosave to manage SRAM manually")

// Pipeline orchestrates the complete loader workflow.
type Pipeline struct {
	logger    *log.Logger
	bus       *flashbus.Controller
	launcher  hw.Launcher
	restarter hw.Restarter
	opts      options.Program

	detector  *detector.Detector
	inspector *inspect.Inspector
	composer  *composer.Composer
	firmware  *firmware.Programmer
	sram      *sram.Transfer
	state     *state.Store
}

// Option configures a pipeline.
type Option func(*config)

type config struct {
	confirmer    firmware.Confirmer
	composerOpts []composer.Option
	firmwareOpts []firmware.Option
}

// WithConfirmer sets the confirmer that is asked before firmware is flashed.
func WithConfirmer(confirmer firmware.Confirmer) Option {
	return func(c *config) {
		c.confirmer = confirmer
	}
}

// WithComposerOptions passes options to the image composer.
func WithComposerOptions(opts ...composer.Option) Option {
	return func(c *config) {
		c.composerOpts = append(c.composerOpts, opts...)
	}
}

// WithFirmwareOptions passes options to the firmware programmer.
func WithFirmwareOptions(opts ...firmware.Option) Option {
	return func(c *config) {
		c.firmwareOpts = append(c.firmwareOpts, opts...)
	}
}

// New creates a new loader pipeline.
func New(logger *log.Logger, bus *flashbus.Controller, launcher hw.Launcher, restarter hw.Restarter,
	opts options.Program, pipelineOpts ...Option) *Pipeline {

	var cfg config
	for _, opt := range pipelineOpts {
		opt(&cfg)
	}

	kernelDir := opts.KernelDir
	if kernelDir == "" {
		kernelDir = options.DefaultKernelDir
	}
	opts.KernelDir = kernelDir

	composerOpts := append([]composer.Option{composer.WithKernelDir(kernelDir)}, cfg.composerOpts...)
	firmwareOpts := append([]firmware.Option{
		firmware.WithConfirmer(cfg.confirmer),
		firmware.WithProgressCallback(func(progress firmware.Progress) {
			logger.Debug("Firmware update",
				log.String("phase", string(progress.Phase)),
				log.Int("written", progress.BytesWritten),
				log.Int("total", progress.TotalBytes))
		}),
	}, cfg.firmwareOpts...)

	return &Pipeline{
		logger:    logger,
		bus:       bus,
		launcher:  launcher,
		restarter: restarter,
		opts:      opts,
		detector:  detector.New(logger),
		inspector: inspect.New(logger),
		composer:  composer.New(logger, bus, opts.Settings, composerOpts...),
		firmware:  firmware.New(logger, bus, firmwareOpts...),
		sram:      sram.New(logger, bus),
		state:     state.New(kernelDir),
	}
}

// Execute runs the workflow selected by the program options.
func (p *Pipeline) Execute(ctx context.Context) error {
	if p.opts.Boot {
		if err := p.Boot(ctx); err != nil {
			return fmt.Errorf("boot autosave: %w", err)
		}
	}

	if p.opts.Save != "" {
		if err := p.SaveSRAM(p.opts.Save); err != nil {
			return err
		}
	}

	if p.opts.Input == "" {
		return nil
	}
	return p.Select(ctx, p.opts.Input)
}

// Boot runs the boot time autosave. After a warm reset, or after every
// reset if the cold boot save setting is on, the save RAM is stored to the
// save file that was preloaded before the last launch.
func (p *Pipeline) Boot(ctx context.Context) error {
	settings := p.opts.Settings
	if !settings.Autosave {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}

	defer func() {
		if err := p.state.ClearLastSaved(); err != nil {
			p.logger.Warn("Removing last saved marker failed", log.Err(err))
		}
	}()

	if !settings.ColdBootSave && !state.HasResetToken(p.bus) {
		p.logger.Info("Skipping autosave due to cold boot")
		return nil
	}

	path, ok, err := p.state.LastSaved()
	if err != nil {
		return fmt.Errorf("reading last saved marker: %w", err)
	}
	if !ok {
		return nil
	}

	if err := p.sram.Save(path); err != nil {
		return fmt.Errorf("saving SRAM: %w", err)
	}
	return nil
}

// SaveSRAM stores the save RAM contents in the file at path.
func (p *Pipeline) SaveSRAM(path string) error {
	if p.opts.Settings.Autosave {
		return ErrAutosaveEnabled
	}
	if err := p.sram.Save(path); err != nil {
		return fmt.Errorf("saving SRAM: %w", err)
	}
	p.logger.Info("Saved SRAM", log.String("file", path))
	return nil
}

// Select handles a selected file: firmware files are flashed, save files
// are loaded into the save RAM and every other file is composed into the
// cartridge and launched. Launching does not return on real hardware.
func (p *Pipeline) Select(ctx context.Context, path string) error {
	family := p.detector.Detect(path, p.opts.Settings)

	switch family {
	case detector.Firmware:
		if err := p.firmware.Flash(ctx, path); err != nil {
			return fmt.Errorf("flashing firmware: %w", err)
		}
		return nil

	case detector.Save:
		return p.loadSave(path)
	}

	p.inspector.Inspect(family, path)

	result, err := p.composer.Compose(ctx, family, path)
	if err != nil {
		var depErr *composer.MissingDependencyError
		if errors.As(err, &depErr) {
			p.logger.Warn("Composing failed, restarting", log.Err(err))
			p.restarter.Restart()
		}
		return fmt.Errorf("composing image: %w", err)
	}

	if p.opts.Verify {
		if err := verification.VerifyImage(ctx, p.logger, p.bus, p.opts.KernelDir, result, path); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		p.logger.Info("Verification successful")
	}

	if p.opts.Output != "" {
		if err := p.writeImage(result, p.opts.Output); err != nil {
			return err
		}
	}

	p.launch(path)
	return nil
}

func (p *Pipeline) loadSave(path string) error {
	if p.opts.Settings.Autosave {
		return ErrAutosaveEnabled
	}

	mismatches, err := p.sram.Load(path)
	if err != nil {
		return fmt.Errorf("loading SRAM: %w", err)
	}
	if mismatches > 0 {
		p.logger.Warn("SRAM verification failed", log.Int("mismatches", mismatches))
	}
	p.logger.Info("Loaded SRAM", log.String("file", path))
	return nil
}

// writeImage dumps the composed image to a file.
func (p *Pipeline) writeImage(result *composer.Result, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file '%s': %w", path, err)
	}
	defer func() { _ = file.Close() }()

	defer p.bus.Enter(flashbus.SramReadOnly)()
	img := rom.New(p.bus.Bus(), result.Size)
	if _, err := io.Copy(file, io.NewSectionReader(img, 0, int64(img.Size()))); err != nil {
		return fmt.Errorf("writing output file '%s': %w", path, err)
	}

	p.logger.Info("Wrote image", log.String("file", path), log.Hex("size", result.Size))
	return nil
}

// launch records the launched file and transfers control to the image in
// read-only mode with interrupts disabled.
func (p *Pipeline) launch(path string) {
	p.bus.SetMode(flashbus.MediaRead)
	if err := p.state.SetLastPlayed(path); err != nil {
		p.logger.Warn("Recording last played file failed", log.Err(err))
	}

	p.bus.SetMode(flashbus.SramReadOnly)
	p.bus.Bus().SetIME(0)

	boot := "soft reset"
	if p.opts.Settings.BIOSBoot {
		boot = "bios"
	}
	p.logger.Info("Launching", log.String("file", path), log.String("boot", boot))
	p.launcher.Boot(p.opts.Settings.BIOSBoot)
}
