// Package record builds the fixed layout header records that interpreter
// cores expect in front of a guest payload.
//
// All records are little endian. Name fields hold the name truncated to the
// field width minus one byte, followed by a terminating zero and zero
// padding. Reserved fields are always zero.
package record

import (
	"encoding/binary"
	"path/filepath"
	"strings"
)

// Record is a header record that can be written as a composition segment.
type Record interface {
	// Size returns the encoded size in bytes.
	Size() int
	// MarshalBinary returns the encoded record.
	MarshalBinary() ([]byte, error)
}

// Record identifiers.
const (
	IDPCEAdvance = 'N' | 'E'<<8 | 'S'<<16 | 0x1A<<24 // "NES\x1A"
	IDSMSAdvance = 'S' | 'M'<<8 | 'S'<<16 | 0x1A<<24 // "SMS\x1A"
	IDCologne    = 'C' | 'O'<<8 | 'L'<<16 | 0x1A<<24 // "COL\x1A"
	IDWasabi     = 'W' | 'S'<<8 | 'V'<<16 | 0x1A<<24 // "WSV\x1A"
	IDNGP        = 'N' | 'G'<<8 | 'P'<<16 | 0x1A<<24 // "NGP\x1A"
	IDSwan       = 'B' | 'W'<<8 | 'S'<<16 | 0x1A<<24 // "BWS\x1A"

	IDHVCA           = 0x04174170
	IDHVCATerminator = 0x41700417

	IDDrSMS = 1 // first ROM after the emulator itself
)

var le = binary.LittleEndian

// putName copies name into the field, truncated to leave room for a
// terminating zero.
func putName(field []byte, name string) {
	n := copy(field[:len(field)-1], name)
	for i := n; i < len(field); i++ {
		field[i] = 0
	}
}

// BaseName returns the file name part of a path as stored in name fields.
func BaseName(path string) string {
	return filepath.Base(path)
}

// Stem returns the file name part of a path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PocketNES is the header of the NES interpreter core.
type PocketNES struct {
	Name     string
	FileSize uint32
	Flags    uint32
}

// Size implements Record.
func (r PocketNES) Size() int { return 48 }

// MarshalBinary implements Record.
func (r PocketNES) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	putName(b[0:32], r.Name)
	le.PutUint32(b[32:], r.FileSize)
	le.PutUint32(b[36:], r.Flags)
	// follow and reserved stay zero
	return b, nil
}

// PCEAdvance is the header of the PC Engine interpreter core.
type PCEAdvance struct {
	Name     string
	FileSize uint32
	Flags    uint32
}

// Size implements Record.
func (r PCEAdvance) Size() int { return 64 }

// MarshalBinary implements Record.
func (r PCEAdvance) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	putName(b[0:32], r.Name)
	le.PutUint32(b[32:], r.FileSize)
	le.PutUint32(b[36:], r.Flags)
	le.PutUint32(b[48:], IDPCEAdvance)
	b[52] = '@'
	for i := 53; i < 64; i++ {
		b[i] = ' '
	}
	return b, nil
}

// Console is the shared header layout of the SMSAdvance, Cologne,
// WasabiGBA, NGPGBA and SwanGBA cores. In SMSAdvance and Cologne headers
// the flags field is 16 bits wide followed by a zero hacks field, which
// encodes identically for flag values below 0x10000.
type Console struct {
	ID       uint32
	FileSize uint32
	Flags    uint32
	BIOS     uint32
	Name     string
}

// Size implements Record.
func (r Console) Size() int { return 64 }

// MarshalBinary implements Record.
func (r Console) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	le.PutUint32(b[0:], r.ID)
	le.PutUint32(b[4:], r.FileSize)
	le.PutUint32(b[8:], r.Flags)
	le.PutUint32(b[16:], r.BIOS)
	putName(b[32:64], r.Name)
	return b, nil
}

// DrSMS is the header of the DrSMS Master System and Game Gear core.
type DrSMS struct {
	Flags    uint8
	GameGear bool
	Name     string
}

// Size implements Record.
func (r DrSMS) Size() int { return 40 }

// MarshalBinary implements Record.
func (r DrSMS) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	b[0] = IDDrSMS
	b[6] = r.Flags
	if r.GameGear {
		b[8] = 0x01
	}
	putName(b[12:40], r.Name)
	return b, nil
}

// HVCA is the header of a file loaded by the HVCA Famicom Disk System and
// NSF core. Every dependency and the payload get their own header, the
// image ends with a terminator record.
type HVCA struct {
	ID       uint32
	FileName string
	Ext      string
	FileSize uint32
}

// NewHVCA returns the header for the file at path.
func NewHVCA(path string, size uint32) HVCA {
	return HVCA{
		ID:       IDHVCA,
		FileName: Stem(path),
		Ext:      strings.TrimPrefix(filepath.Ext(path), "."),
		FileSize: size,
	}
}

// HVCATerminator returns the record that ends an HVCA image.
func HVCATerminator() HVCA {
	return HVCA{ID: IDHVCATerminator}
}

// Size implements Record.
func (r HVCA) Size() int { return 44 }

// MarshalBinary implements Record.
func (r HVCA) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	le.PutUint32(b[0:], r.ID)
	putName(b[4:36], r.FileName)
	// the extension field is not terminated when it is filled completely
	copy(b[36:40], r.Ext)
	le.PutUint32(b[40:], r.FileSize)
	return b, nil
}

// Music is the header of the Music Player Advance core.
type Music struct {
	Title    string
	FileSize uint32
}

const (
	musicTerminator  = 0x2D2D2D3B
	musicHeaderSize  = 44
	musicTitleLength = 40
)

// Size implements Record.
func (r Music) Size() int { return 56 }

// MarshalBinary implements Record.
func (r Music) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	le.PutUint32(b[0:], uint32(r.Size()))
	le.PutUint32(b[4:], musicHeaderSize)
	putName(b[8:8+musicTitleLength], r.Title)
	le.PutUint32(b[48:], musicTerminator)
	le.PutUint32(b[52:], r.FileSize)
	return b, nil
}

// CoG is the minimal header of the CoG ColecoVision core.
type CoG struct {
	FileSize uint32
}

// Size implements Record. The 11 bytes of fields are padded to 12 bytes.
func (r CoG) Size() int { return 12 }

// MarshalBinary implements Record. Only the lower 16 bits of the file size
// are stored.
func (r CoG) MarshalBinary() ([]byte, error) {
	b := make([]byte, r.Size())
	le.PutUint16(b[0:], uint16(r.FileSize))
	return b, nil
}
