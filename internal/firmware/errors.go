package firmware

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when flashing was declined at the confirmation.
var ErrCancelled = errors.New("firmware flashing cancelled")

// UnrecognizedChipError indicates that the flash chip does not carry the
// expected vendor signature.
type UnrecognizedChipError struct {
	ID ChipID
}

func (e *UnrecognizedChipError) Error() string {
	return fmt.Sprintf("unrecognized flash chip id %s, expected vendor signature 0x%02X",
		e.ID, VendorSignature)
}

// FirmwareTooLargeError indicates that a firmware image does not fit into
// the flash chip.
type FirmwareTooLargeError struct {
	Size int64
}

func (e *FirmwareTooLargeError) Error() string {
	return fmt.Sprintf("firmware of %d bytes exceeds the flash chip size of %d bytes",
		e.Size, MaxSize)
}
