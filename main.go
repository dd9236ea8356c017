// Package main implements the loader for SuperCard flash cartridges
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retroflash/internal/app"
	"github.com/retroenv/retroflash/internal/cli"
	"github.com/retroenv/retroflash/internal/config"
	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/pipeline"
	"github.com/retroenv/retroflash/internal/supercard"
	retroapp "github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := retroapp.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Flags)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			app.PrintBanner(opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Flags)
	app.PrintBanner(opts, version, commit, date)
	app.PrintInfo(logger, opts)

	// the cartridge is simulated, the composed image is available through -o
	cart := supercard.New()
	bus := flashbus.New(cart)

	var pipelineOpts []pipeline.Option
	if !opts.Yes {
		pipelineOpts = append(pipelineOpts, pipeline.WithConfirmer(cli.NewConfirmer(os.Stdin, os.Stdout)))
	}
	pipe := pipeline.New(logger, bus, cart, cart, opts, pipelineOpts...)

	if err := pipe.Execute(ctx); err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Error("Loading failed", log.Err(err))
		os.Exit(1)
	}
}
