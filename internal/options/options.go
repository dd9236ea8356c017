// Package options contains the program options and the kernel settings.
package options

import (
	"fmt"
)

// DefaultKernelDir is the directory holding interpreter cores, BIOS files
// and the kernel state files.
const DefaultKernelDir = "scfw"

// Parameters contains file path options.
type Parameters struct {
	Input     string `flag:"i" usage:"file to load into the cartridge"`
	Output    string `flag:"o" usage:"write the composed image to this file"`
	KernelDir string `flag:"k" usage:"kernel directory with cores and BIOS files" default:"scfw"`
	Save      string `flag:"save" usage:"save the SRAM contents to this file instead of loading a save"`
}

// Flags contains behavior options.
type Flags struct {
	Verify bool `flag:"verify" usage:"verify the composed image against its sources"`
	Yes    bool `flag:"y" usage:"do not ask for confirmation before flashing firmware"`
	Boot   bool `flag:"boot" usage:"run the boot time autosave before loading"`
	Debug  bool `flag:"debug" usage:"enable debug logging"`
	Quiet  bool `flag:"q" usage:"quiet mode"`
}

// Program options of the loader.
type Program struct {
	Parameters
	Flags
	Settings Settings
}

// Setting names a boolean kernel setting.
type Setting string

// Kernel settings.
const (
	Autosave       Setting = "autosave"
	SRAMPatch      Setting = "sram_patch"
	WaitstatePatch Setting = "waitstate_patch"
	SoftResetPatch Setting = "soft_reset_patch"
	BIOSBoot       Setting = "biosboot"
	ColdBootSave   Setting = "cold_boot_save"
	SMSABIOS       Setting = "smsa_bios"
	WSVBIOS        Setting = "wsv_bios"
	NGPBIOS        Setting = "ngp_bios"
	BWSCBIOS       Setting = "bwsc_bios"
	DrSMSPriority  Setting = "drsms_prio"
	CoGPriority    Setting = "cog_prio"
	SidewaysText   Setting = "txtmode_s"
)

// AllSettings lists all kernel settings in menu order.
var AllSettings = []Setting{
	Autosave, SRAMPatch, WaitstatePatch, SoftResetPatch, BIOSBoot, ColdBootSave,
	SMSABIOS, WSVBIOS, NGPBIOS, BWSCBIOS, DrSMSPriority, CoGPriority, SidewaysText,
}

// Settings are the kernel settings that control loading.
type Settings struct {
	Autosave       bool // load the save file before launch and store it again at the next boot
	SRAMPatch      bool
	WaitstatePatch bool
	SoftResetPatch bool // install the warm reset trampoline
	BIOSBoot       bool // launch through the BIOS intro
	ColdBootSave   bool // run the boot autosave also after power on

	SMSABIOS bool
	WSVBIOS  bool
	NGPBIOS  bool
	BWSCBIOS bool

	DrSMSPriority bool // load .sms and .gg with DrSMS instead of SMSAdvance
	CoGPriority   bool // load .col with CoG instead of Cologne
	SidewaysText  bool
}

// DefaultSettings returns the settings of a fresh kernel installation.
func DefaultSettings() Settings {
	return Settings{
		Autosave:       true,
		SRAMPatch:      true,
		WaitstatePatch: true,
		SoftResetPatch: true,
		BIOSBoot:       true,
		ColdBootSave:   true,
	}
}

// Enabled returns whether the given setting is switched on.
func (s Settings) Enabled(setting Setting) bool {
	if p := s.field(setting); p != nil {
		return *p
	}
	return false
}

// Set switches a setting on or off.
func (s *Settings) Set(setting Setting, enabled bool) error {
	p := s.field(setting)
	if p == nil {
		return fmt.Errorf("unknown setting '%s'", setting)
	}
	*p = enabled
	return nil
}

func (s *Settings) field(setting Setting) *bool {
	switch setting {
	case Autosave:
		return &s.Autosave
	case SRAMPatch:
		return &s.SRAMPatch
	case WaitstatePatch:
		return &s.WaitstatePatch
	case SoftResetPatch:
		return &s.SoftResetPatch
	case BIOSBoot:
		return &s.BIOSBoot
	case ColdBootSave:
		return &s.ColdBootSave
	case SMSABIOS:
		return &s.SMSABIOS
	case WSVBIOS:
		return &s.WSVBIOS
	case NGPBIOS:
		return &s.NGPBIOS
	case BWSCBIOS:
		return &s.BWSCBIOS
	case DrSMSPriority:
		return &s.DrSMSPriority
	case CoGPriority:
		return &s.CoGPriority
	case SidewaysText:
		return &s.SidewaysText
	default:
		return nil
	}
}
