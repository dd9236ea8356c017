package record

import (
	"strings"
)

// Filename tokens that select region and hardware flags.
var (
	europeTokens     = []string{"(E)", "(EUR)", "(Europe)"}
	japanTokens      = []string{"(J)", "(JAPAN)"}
	brazilTokens     = []string{"(Brazil)", "(BRA)"}
	dualRegionTokens = []string{"(USA, Europe)", "(UE)"}
	koreaTokens      = []string{"(Korea)", "(KOR)"}
	ggJapanTokens    = []string{"(J)", "(UE)", "(JAPAN)"}
	worldTokens      = []string{"(World)"}
	biosTokens       = []string{"[BIOS]"}
)

// HasToken reports whether name contains any of the tokens, ignoring case.
func HasToken(name string, tokens ...string) bool {
	name = strings.ToLower(name)
	for _, token := range tokens {
		if strings.Contains(name, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// PocketNES flags.
const (
	PocketNESPAL  = 1 << 2
	PocketNESNTSC = 1 << 4
)

// PocketNESFlags returns the timing flags for a NES game name.
func PocketNESFlags(name string) uint32 {
	if HasToken(name, europeTokens...) {
		return PocketNESPAL
	}
	return PocketNESNTSC
}

// PCEAdvanceUSA marks a non Japanese PC Engine game.
const PCEAdvanceUSA = 1 << 2

// PCEAdvanceFlags returns the region flags for a PC Engine game name.
func PCEAdvanceFlags(name string) uint32 {
	if HasToken(name, japanTokens...) {
		return 0
	}
	return PCEAdvanceUSA
}

// SMSAdvance and Cologne flags.
const (
	SMSAdvancePAL      = 1 << 0
	SMSAdvanceJapan    = 1 << 1
	SMSAdvanceGameGear = 1 << 2
)

// SMSAdvanceFlags returns the flags for a Master System, SG-1000 or Game
// Gear game name.
func SMSAdvanceFlags(name string, gameGear bool) uint32 {
	var flags uint32
	if HasToken(name, europeTokens...) {
		flags |= SMSAdvancePAL
	}
	if HasToken(name, japanTokens...) {
		flags |= SMSAdvanceJapan
	}
	if gameGear {
		flags |= SMSAdvanceGameGear
	}
	return flags
}

// CologneFlags returns the timing flags for a ColecoVision game name.
func CologneFlags(name string) uint32 {
	if HasToken(name, europeTokens...) {
		return SMSAdvancePAL
	}
	return 0
}

// DrSMS flags.
const (
	DrSMSDualRegion = 1 << 1
	DrSMSWorld      = 1 << 2
	DrSMSEurope     = 1 << 3
	DrSMSKorea      = 1 << 7

	DrSMSGameGearJapan = 1 << 1
	DrSMSGameGearWorld = 1 << 2
	DrSMSGameGearOther = 1 << 3
)

// DrSMSFlags returns the region flags for a Master System or Game Gear game
// name. Only the first matching token group is used.
func DrSMSFlags(name string, gameGear bool) uint8 {
	if gameGear {
		switch {
		case HasToken(name, ggJapanTokens...):
			return DrSMSGameGearJapan
		case HasToken(name, worldTokens...):
			return DrSMSGameGearWorld
		default:
			return DrSMSGameGearOther
		}
	}

	switch {
	case HasToken(name, europeTokens...), HasToken(name, brazilTokens...):
		return DrSMSEurope
	case HasToken(name, dualRegionTokens...):
		return DrSMSDualRegion
	case HasToken(name, koreaTokens...):
		return DrSMSKorea
	default:
		return DrSMSWorld
	}
}

// SwanGBA flags.
const (
	SwanColor    = 1 << 2
	SwanPC2      = 1 << 1
	SwanNotPC2   = 1 << 3
	NGPColor     = 1 << 2
	BIOSDetected = 1 << 0
)

// SwanFlags returns the hardware flags for a WonderSwan game by its file
// extension.
func SwanFlags(ext string) uint32 {
	var flags uint32
	switch strings.ToLower(ext) {
	case ".wsc":
		flags |= SwanColor | SwanNotPC2
	case ".pc2":
		flags |= SwanPC2
	default:
		flags |= SwanNotPC2
	}
	return flags
}

// NGPFlags returns the hardware flags for a Neo Geo Pocket game by its file
// extension.
func NGPFlags(ext string) uint32 {
	if strings.EqualFold(ext, ".ngc") {
		return NGPColor
	}
	return 0
}

// BIOSFlags returns the BIOS flag of a dependency record.
func BIOSFlags(name string) uint32 {
	if HasToken(name, biosTokens...) {
		return BIOSDetected
	}
	return 0
}

// BIOSRecord returns the header of a BIOS dependency file.
func BIOSRecord(id uint32, path string, size uint32) Console {
	return Console{
		ID:       id,
		FileSize: size,
		BIOS:     BIOSFlags(BaseName(path)),
		Name:     BaseName(path),
	}
}
