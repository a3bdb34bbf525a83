package symtab

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ParseError is returned when a header field points outside the image or
// declares an impossible size.
type ParseError struct {
	Offset uint64
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("macho: %s (offset %#x)", e.Msg, e.Offset)
}

// reader gives bounds-checked little-endian access to a mapped image.
type reader []byte

func (r reader) size() uint64 { return uint64(len(r)) }

func (r reader) slice(what string, off, n uint64) ([]byte, error) {
	if off > r.size() || n > r.size()-off {
		return nil, &ParseError{
			Offset: off,
			Msg:    fmt.Sprintf("%s of %d bytes runs past end of file (size %#x)", what, n, r.size()),
		}
	}
	return r[off : off+n], nil
}

func (r reader) u32(what string, off uint64) (uint32, error) {
	b, err := r.slice(what, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r reader) u64(what string, off uint64) (uint64, error) {
	b, err := r.slice(what, off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// name16 reads a fixed 16 byte, NUL padded segment or section name.
func (r reader) name16(what string, off uint64) (string, error) {
	b, err := r.slice(what, off, 16)
	if err != nil {
		return "", err
	}
	return cstring(b), nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
