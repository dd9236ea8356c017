// Package app provides the main application helpers of the loader.
package app

import (
	"fmt"

	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// PrintBanner prints the application version information.
func PrintBanner(opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	fmt.Println("[-------------------------------------------]")
	fmt.Println("[ retroflash - SuperCard ROM loader & flash ]")
	fmt.Printf("[-------------------------------------------]\n\n")
	fmt.Printf("version: %s\n\n", buildinfo.Version(version, commit, date))
}

// PrintInfo logs the file that is processed and the settings that affect
// loading it.
func PrintInfo(logger *log.Logger, opts options.Program) {
	if opts.Quiet {
		return
	}

	if opts.Input != "" {
		logger.Info("Processing file",
			log.String("file", opts.Input),
			log.String("kernel", opts.KernelDir),
		)
	}

	for _, setting := range options.AllSettings {
		if opts.Settings.Enabled(setting) {
			logger.Debug("Setting enabled", log.String("setting", string(setting)))
		}
	}
}
