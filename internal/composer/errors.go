package composer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for files that no core can load.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// CoreNotFoundError indicates that the interpreter core of a family is not
// installed. Nothing was written to the cartridge.
type CoreNotFoundError struct {
	Name string
	Path string
}

func (e *CoreNotFoundError) Error() string {
	return fmt.Sprintf("no %s found, checked '%s'", e.Name, e.Path)
}

// MissingDependencyError indicates that a file required by the core is
// missing. It is returned after the core was written, the cartridge holds
// a partial image.
type MissingDependencyError struct {
	Role string
	Path string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing %s dependency '%s'", e.Role, e.Path)
}
