// Package state keeps the kernel bookkeeping that survives a reset.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/retroenv/retroflash/internal/flashbus"
	"github.com/retroenv/retroflash/internal/hw"
)

// State file names inside the kernel directory.
const (
	LastPlayedFile = "lastplayed.txt"
	LastSavedFile  = "lastsaved.txt"
)

// Store reads and writes the state files of a kernel directory.
type Store struct {
	dir string
}

// New returns a store rooted at the kernel directory.
func New(dir string) *Store {
	return &Store{
		dir: dir,
	}
}

// Dir returns the kernel directory.
func (s *Store) Dir() string {
	return s.dir
}

// SetLastPlayed records the path of the launched file.
func (s *Store) SetLastPlayed(path string) error {
	return s.write(LastPlayedFile, path)
}

// LastPlayed returns the path of the last launched file.
func (s *Store) LastPlayed() (string, bool, error) {
	return s.read(LastPlayedFile)
}

// SetLastSaved records the save file that the SRAM contents belong to.
func (s *Store) SetLastSaved(path string) error {
	return s.write(LastSavedFile, path)
}

// LastSaved returns the save file that the SRAM contents belong to.
func (s *Store) LastSaved() (string, bool, error) {
	return s.read(LastSavedFile)
}

// ClearLastSaved removes the last saved record. A missing record is not
// an error.
func (s *Store) ClearLastSaved() error {
	err := os.Remove(filepath.Join(s.dir, LastSavedFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing '%s': %w", LastSavedFile, err)
	}
	return nil
}

func (s *Store) write(name, value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating kernel directory '%s': %w", s.dir, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0o644); err != nil {
		return fmt.Errorf("writing '%s': %w", name, err)
	}
	return nil
}

func (s *Store) read(name string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading '%s': %w", name, err)
	}
	return string(data), true, nil
}

// HasResetToken returns whether the reset trampoline left the warm reset
// token in SDRAM. The bus is returned to media mode.
func HasResetToken(bus *flashbus.Controller) bool {
	defer bus.Enter(flashbus.SramReadWrite)()
	return bus.Bus().Read32(hw.ResetTokenAddress) == hw.ResetToken
}
