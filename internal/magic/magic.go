// Package magic classifies files by their leading magic number.
package magic

import (
	"encoding/binary"
	"errors"
)

type Magic uint32

const (
	Magic32    Magic = 0xfeedface
	Magic64    Magic = 0xfeedfacf
	Cigam32    Magic = 0xcefaedfe
	Cigam64    Magic = 0xcffaedfe
	MagicFatBE Magic = 0xcafebabe
	MagicFatLE Magic = 0xbebafeca
)

var (
	ErrTooSmall    = errors.New("file too small to hold a magic")
	ErrNotMachO    = errors.New("not a macho file")
	Err32Bit       = errors.New("32-bit macho is not supported")
	ErrFat         = errors.New("fat/universal macho is not supported")
	ErrByteSwapped = errors.New("big-endian macho is not supported")
)

// CheckMachO64 returns nil if hdr starts with a little-endian 64-bit Mach-O magic,
// otherwise an error describing why the image can't be used.
func CheckMachO64(hdr []byte) error {
	if len(hdr) < 4 {
		return ErrTooSmall
	}
	switch Magic(binary.LittleEndian.Uint32(hdr[:4])) {
	case Magic64:
		return nil
	case Magic32, Cigam32:
		return Err32Bit
	case Cigam64:
		return ErrByteSwapped
	case MagicFatBE, MagicFatLE:
		return ErrFat
	default:
		return ErrNotMachO
	}
}
