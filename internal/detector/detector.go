// Package detector handles guest format detection.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// Family is a guest format family that is loaded in the same way.
type Family string

// Supported families.
const (
	Unknown      Family = ""
	Native       Family = "gba"
	GameBoy      Family = "gb"
	GameBoyColor Family = "gbc"
	NES          Family = "pocketnes"
	PCEngine     Family = "pceadvance"
	SMSAdvance   Family = "smsadvance"
	DrSMS        Family = "drsms"
	Wasabi       Family = "wasabigba"
	NGP          Family = "ngpgba"
	Swan         Family = "swangba"
	HVCA         Family = "hvca"
	Text         Family = "text"
	Music        Family = "mpa"
	CoG          Family = "cog"
	Cologne      Family = "cologne"
	Firmware     Family = "firmware"
	Save         Family = "save"
)

func (f Family) String() string {
	if f == Unknown {
		return "unknown"
	}
	return string(f)
}

// Detector maps selected files to their family.
type Detector struct {
	logger *log.Logger
}

// New creates a new format detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the family of a file from its extension. The priority
// settings select between the two cores available for Master System, Game
// Gear and ColecoVision files.
func (d *Detector) Detect(path string, settings options.Settings) Family {
	family := detectFromFile(path, settings)
	d.logger.Debug("Detected format",
		log.Stringer("family", family),
		log.String("file", path))
	return family
}

func detectFromFile(path string, settings options.Settings) Family {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gba":
		return Native
	case ".gb":
		return GameBoy
	case ".gbc":
		return GameBoyColor
	case ".nes":
		return NES
	case ".pce":
		return PCEngine
	case ".sms", ".gg":
		if settings.DrSMSPriority {
			return DrSMS
		}
		return SMSAdvance
	case ".sg":
		return SMSAdvance
	case ".sv":
		return Wasabi
	case ".ngp", ".ngc":
		return NGP
	case ".ws", ".wsc", ".pc2":
		return Swan
	case ".fds", ".nsf":
		return HVCA
	case ".txt":
		return Text
	case ".mpa", ".mpac":
		return Music
	case ".col":
		if settings.CoGPriority {
			return CoG
		}
		return Cologne
	case ".frm":
		return Firmware
	case ".sav":
		return Save
	default:
		return Unknown
	}
}
