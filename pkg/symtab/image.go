// Package symtab reads the exported code symbols of 64-bit Mach-O images.
//
// Images are mapped read-only and every header field is bounds checked
// against the file size before it is used, so truncated or hostile input
// produces a *ParseError instead of a crash.
package symtab

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/symdb/internal/magic"
)

var (
	// ErrUnsupportedImage is returned by Open for anything that is not a
	// little-endian 64-bit Mach-O.
	ErrUnsupportedImage = errors.New("not a supported image")
	// ErrNoSymtab is returned when the image has no LC_SYMTAB load command.
	ErrNoSymtab = errors.New("no LC_SYMTAB load command")
)

// Image is a read-only mapping of a Mach-O file.
type Image struct {
	Path string

	data   reader
	unmap  func() error
	f      *os.File
	layout *Layout
}

// Open maps the file at path and validates its magic.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedImage, path)
	}
	if fi.Size() < types.FileHeaderSize64 {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, magic.ErrTooSmall)
	}
	if fi.Size() > math.MaxInt {
		f.Close()
		return nil, fmt.Errorf("%w: %s is too large to map", ErrUnsupportedImage, path)
	}

	data, unmap, err := mapFile(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	img := &Image{
		Path:  path,
		data:  data,
		unmap: unmap,
		f:     f,
	}
	if err := magic.CheckMachO64(data); err != nil {
		img.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	return img, nil
}

// Size returns the size of the mapped image in bytes.
func (i *Image) Size() int { return len(i.data) }

// Close unmaps the image and closes the underlying file.
// It is safe to call Close more than once.
func (i *Image) Close() error {
	var err error
	if i.unmap != nil {
		err = i.unmap()
		i.unmap = nil
	}
	i.data = nil
	if i.f != nil {
		if cerr := i.f.Close(); err == nil {
			err = cerr
		}
		i.f = nil
	}
	return err
}

// Extract opens the image at path, decodes its exported code symbols and
// releases the mapping before returning.
func Extract(path string) ([]Symbol, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return img.Symbols()
}
