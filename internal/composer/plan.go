package composer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/retroflash/internal/detector"
	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retroflash/internal/record"
)

// HeaderFunc builds the header record for the file at path of the given
// size.
type HeaderFunc func(path string, size uint32) record.Record

// Dependency is a file from the kernel directory that is written between
// the core and the payload.
type Dependency struct {
	Role   string
	Path   string     // relative to the kernel directory
	Header HeaderFunc // written in front of the file if set
}

// Plan describes the segments of the image for one family.
type Plan struct {
	Family detector.Family
	// CoreName is the display name of the interpreter core.
	CoreName string
	// Core is the core file relative to the kernel directory. It is empty
	// for native images, the payload is the complete image.
	Core         string
	Dependencies []Dependency
	Header       HeaderFunc
	// Terminator is written after the payload if set.
	Terminator record.Record
}

// NewPlan returns the composition plan for the payload at path.
func NewPlan(family detector.Family, path string, config ConfigStore) (Plan, error) {
	ext := strings.ToLower(filepath.Ext(path))
	plan := Plan{Family: family}

	switch family {
	case detector.Native:

	case detector.GameBoy:
		plan.CoreName, plan.Core = "Goomba", "gb.gba"

	case detector.GameBoyColor:
		plan.CoreName, plan.Core = "Goomba", "gbc.gba"

	case detector.NES:
		plan.CoreName, plan.Core = "PocketNES", "nes.gba"
		plan.Header = pocketNESHeader

	case detector.PCEngine:
		plan.CoreName, plan.Core = "PCEAdvance", "pcea.gba"
		plan.Header = pceAdvanceHeader

	case detector.SMSAdvance:
		plan.CoreName, plan.Core = "SMSAdvance", "smsa.gba"
		plan.Header = smsAdvanceHeader
		if config.Enabled(options.SMSABIOS) {
			bios := map[string]string{".sms": "[BIOS]smsa_sms.rom", ".sg": "[BIOS]smsa_sg.rom", ".gg": "[BIOS]smsa_gg.rom"}
			plan.Dependencies = []Dependency{biosDependency(record.IDSMSAdvance, bios[ext])}
		}

	case detector.DrSMS:
		plan.CoreName, plan.Core = "DrSMS", "drsms.gba"
		plan.Header = drSMSHeader

	case detector.Wasabi:
		plan.CoreName, plan.Core = "WasabiGBA", "wsv.gba"
		plan.Header = consoleHeader(record.IDWasabi, func(string, string) uint32 { return 0 })
		if config.Enabled(options.WSVBIOS) {
			plan.Dependencies = []Dependency{biosDependency(record.IDWasabi, "[BIOS]wsv.rom")}
		}

	case detector.NGP:
		plan.CoreName, plan.Core = "NGPGBA", "ngp.gba"
		plan.Header = consoleHeader(record.IDNGP, func(_, ext string) uint32 { return record.NGPFlags(ext) })
		if config.Enabled(options.NGPBIOS) {
			bios := "[BIOS]ngp_og.rom"
			if ext == ".ngc" {
				bios = "[BIOS]ngp_color.rom"
			}
			plan.Dependencies = []Dependency{biosDependency(record.IDNGP, bios)}
		}

	case detector.Swan:
		plan.CoreName, plan.Core = "SwanGBA", "bwsc.gba"
		plan.Header = consoleHeader(record.IDSwan, func(_, ext string) uint32 { return record.SwanFlags(ext) })
		if config.Enabled(options.BWSCBIOS) {
			bios := map[string]string{".ws": "[BIOS]bws_og.wsc", ".wsc": "[BIOS]bws_color.wsc", ".pc2": "[BIOS]bws_pc2.wsc"}
			plan.Dependencies = []Dependency{biosDependency(record.IDSwan, bios[ext])}
		}

	case detector.HVCA:
		plan.CoreName, plan.Core = "HVCA", "hvca.gba"
		mapper := "hvca/mapr/mfds.bin"
		if ext == ".nsf" {
			mapper = "hvca/mapr/mnsf.bin"
		}
		plan.Dependencies = []Dependency{
			hvcaDependency("font", "hvca/font_a.raw"),
			hvcaDependency("font", "hvca/font_k.raw"),
			hvcaDependency("mapper", mapper),
			hvcaDependency("disk system", "hvca/disksys.rom"),
		}
		plan.Header = hvcaHeader
		plan.Terminator = record.HVCATerminator()

	case detector.Text:
		plan.CoreName, plan.Core = "eBook reader", "txt.gba"
		if config.Enabled(options.SidewaysText) {
			plan.Core = "txt_s.gba"
		}

	case detector.Music:
		plan.CoreName, plan.Core = "Music Player Advance", "mpa.gba"
		if ext == ".mpa" {
			plan.Header = musicHeader
		}

	case detector.CoG:
		plan.CoreName, plan.Core = "CoG", "cog.gba"
		plan.Header = cogHeader

	case detector.Cologne:
		plan.CoreName, plan.Core = "Cologne", "cologne.gba"
		plan.Header = consoleHeader(record.IDCologne, func(name, _ string) uint32 { return record.CologneFlags(name) })
		plan.Dependencies = []Dependency{biosDependency(record.IDCologne, "[BIOS].col")}

	default:
		return Plan{}, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, filepath.Base(path))
	}

	return plan, nil
}

func biosDependency(id uint32, path string) Dependency {
	return Dependency{
		Role: "BIOS",
		Path: path,
		Header: func(path string, size uint32) record.Record {
			return record.BIOSRecord(id, path, size)
		},
	}
}

func hvcaDependency(role, path string) Dependency {
	return Dependency{
		Role:   role,
		Path:   path,
		Header: hvcaHeader,
	}
}

func pocketNESHeader(path string, size uint32) record.Record {
	name := record.BaseName(path)
	return record.PocketNES{
		Name:     name,
		FileSize: size,
		Flags:    record.PocketNESFlags(name),
	}
}

func pceAdvanceHeader(path string, size uint32) record.Record {
	name := record.BaseName(path)
	return record.PCEAdvance{
		Name:     name,
		FileSize: size,
		Flags:    record.PCEAdvanceFlags(name),
	}
}

// smsAdvanceHeader sets the Game Gear flag for every file that is not a
// Master System or SG-1000 file.
func smsAdvanceHeader(path string, size uint32) record.Record {
	name := record.BaseName(path)
	ext := strings.ToLower(filepath.Ext(path))
	gameGear := ext != ".sms" && ext != ".sg"
	return record.Console{
		ID:       record.IDSMSAdvance,
		FileSize: size,
		Flags:    record.SMSAdvanceFlags(name, gameGear),
		Name:     name,
	}
}

func drSMSHeader(path string, _ uint32) record.Record {
	name := record.BaseName(path)
	gameGear := strings.EqualFold(filepath.Ext(path), ".gg")
	return record.DrSMS{
		Flags:    record.DrSMSFlags(name, gameGear),
		GameGear: gameGear,
		Name:     name,
	}
}

func consoleHeader(id uint32, flags func(name, ext string) uint32) HeaderFunc {
	return func(path string, size uint32) record.Record {
		name := record.BaseName(path)
		return record.Console{
			ID:       id,
			FileSize: size,
			Flags:    flags(name, strings.ToLower(filepath.Ext(path))),
			Name:     name,
		}
	}
}

func hvcaHeader(path string, size uint32) record.Record {
	return record.NewHVCA(path, size)
}

func musicHeader(path string, size uint32) record.Record {
	return record.Music{
		Title:    record.Stem(path),
		FileSize: size,
	}
}

func cogHeader(_ string, size uint32) record.Record {
	return record.CoG{FileSize: size}
}
