package detector

import (
	"testing"

	"github.com/retroenv/retroflash/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestDetect(t *testing.T) {
	logger := log.NewTestLogger(t)
	d := New(logger)

	defaults := options.DefaultSettings()
	priority := options.DefaultSettings()
	priority.DrSMSPriority = true
	priority.CoGPriority = true

	tests := []struct {
		name       string
		inputFile  string
		settings   options.Settings
		wantFamily Family
	}{
		{"native executable", "/games/Game.GBA", defaults, Native},
		{"game boy", "tetris.gb", defaults, GameBoy},
		{"game boy color", "zelda.gbc", defaults, GameBoyColor},
		{"nes", "Game (E).nes", defaults, NES},
		{"pc engine", "bonk.pce", defaults, PCEngine},
		{"master system", "alex.sms", defaults, SMSAdvance},
		{"game gear", "sonic.gg", defaults, SMSAdvance},
		{"master system with drsms priority", "alex.sms", priority, DrSMS},
		{"game gear with drsms priority", "sonic.gg", priority, DrSMS},
		{"sg-1000 ignores drsms priority", "game.sg", priority, SMSAdvance},
		{"supervision", "game.sv", defaults, Wasabi},
		{"neo geo pocket", "game.ngp", defaults, NGP},
		{"neo geo pocket color", "game.ngc", defaults, NGP},
		{"wonderswan", "game.ws", defaults, Swan},
		{"wonderswan color", "game.wsc", defaults, Swan},
		{"pocket challenge v2", "game.pc2", defaults, Swan},
		{"disk system", "zelda.fds", defaults, HVCA},
		{"nsf", "music.nsf", defaults, HVCA},
		{"text", "readme.txt", defaults, Text},
		{"music", "song.mpa", defaults, Music},
		{"music container", "song.mpac", defaults, Music},
		{"colecovision", "game.col", defaults, Cologne},
		{"colecovision with cog priority", "game.col", priority, CoG},
		{"firmware", "SUPERFW.frm", defaults, Firmware},
		{"save", "Game.sav", defaults, Save},
		{"unknown extension", "game.bin", defaults, Unknown},
		{"no extension", "game", defaults, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.inputFile, tt.settings)
			assert.Equal(t, tt.wantFamily, got)
		})
	}
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "pocketnes", NES.String())
}
