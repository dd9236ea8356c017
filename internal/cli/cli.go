// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/retroenv/retroflash/internal/options"
)

var settingUsage = map[options.Setting]string{
	options.Autosave:       "preload the save file and store the save RAM at the next boot",
	options.SRAMPatch:      "patch the save type of native games to SRAM",
	options.WaitstatePatch: "apply waitstate patches",
	options.SoftResetPatch: "install the soft reset trampoline",
	options.BIOSBoot:       "launch through the BIOS intro",
	options.ColdBootSave:   "run the boot autosave also after power on",
	options.SMSABIOS:       "load a BIOS for SMSAdvance",
	options.WSVBIOS:        "load a BIOS for WasabiGBA",
	options.NGPBIOS:        "load a BIOS for NGPGBA",
	options.BWSCBIOS:       "load a BIOS for SwanGBA",
	options.DrSMSPriority:  "load Master System and Game Gear games with DrSMS",
	options.CoGPriority:    "load ColecoVision games with CoG",
	options.SidewaysText:   "use the sideways text reader",
}

// ParseFlags parses command line flags and returns the program options
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	opts := options.Program{Settings: options.DefaultSettings()}
	readOptionFlags(flags, &opts)
	settings := readSettingFlags(flags, opts.Settings)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil {
		return opts, &UsageError{flags: flags, msg: err.Error()}
	}

	if err := validateArgs(args); err != nil {
		return opts, err
	}
	if len(args) > 0 {
		opts.Input = args[0]
	}
	if opts.Input == "" && opts.Save == "" && !opts.Boot {
		return opts, &UsageError{flags: flags}
	}

	for setting, enabled := range settings {
		if err := opts.Settings.Set(setting, *enabled); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retroflash [options] <file to load>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after file to load, please pass the file to load as last argument", arg),
			}
		}
	}
	if len(args) > 1 {
		return &UsageError{msg: "only one file can be loaded"}
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the file to load into the cartridge")
	flags.StringVar(&opts.Output, "o", "", "write the composed image to this file")
	flags.StringVar(&opts.KernelDir, "k", options.DefaultKernelDir, "kernel directory with cores, BIOS files and state files")
	flags.StringVar(&opts.Save, "save", "", "store the save RAM contents in this file")
	flags.BoolVar(&opts.Boot, "boot", false, "run the boot time autosave before loading")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the composed image against its source files")
	flags.BoolVar(&opts.Yes, "y", false, "flash firmware without asking for confirmation")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

// readSettingFlags registers a flag for every kernel setting, defaulting to
// the current value.
func readSettingFlags(flags *flag.FlagSet, current options.Settings) map[options.Setting]*bool {
	settings := make(map[options.Setting]*bool, len(options.AllSettings))
	for _, setting := range options.AllSettings {
		settings[setting] = flags.Bool(string(setting), current.Enabled(setting), settingUsage[setting])
	}
	return settings
}
