// Package symtabtest builds small synthetic Mach-O images for tests.
package symtabtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
)

const (
	magic64       = 0xfeedfacf
	cpuTypeARM64  = 0x0100000c
	mhDylib       = 0x6
	lcSegment64   = 0x19
	lcSymtab      = 0x2
	headerSize    = 32
	segmentSize   = 72
	sectionSize   = 80
	symtabCmdSize = 24
	nlistSize     = 16

	// nlist n_type values
	NUndf = 0x00
	NExt  = 0x01
	NAbs  = 0x02
	NSect = 0x0e
	NStab = 0x20 // N_GSYM
)

type Section struct {
	Seg  string
	Name string
}

type Segment struct {
	Name     string
	VMAddr   uint64
	Sections []Section
}

type Symbol struct {
	Name  string
	Type  uint8
	Sect  uint8
	Value uint64
	// Strx overrides the string table index when non-zero.
	Strx uint32
}

// Image describes a synthetic little-endian 64-bit Mach-O.
type Image struct {
	Segments []Segment
	Symbols  []Symbol
	NoSymtab bool
	// Raw load commands appended after the generated ones.
	Extra [][]byte
}

// Text returns a __TEXT segment at vmaddr whose first section is __text.
func Text(vmaddr uint64, more ...string) Segment {
	seg := Segment{Name: "__TEXT", VMAddr: vmaddr, Sections: []Section{{"__TEXT", "__text"}}}
	for _, name := range more {
		seg.Sections = append(seg.Sections, Section{"__TEXT", name})
	}
	return seg
}

// Func is an exported symbol defined in section ordinal sect.
func Func(name string, sect uint8, value uint64) Symbol {
	return Symbol{Name: name, Type: NSect | NExt, Sect: sect, Value: value}
}

func put32(b *bytes.Buffer, v uint32) { binary.Write(b, binary.LittleEndian, v) }
func put64(b *bytes.Buffer, v uint64) { binary.Write(b, binary.LittleEndian, v) }

func putName(b *bytes.Buffer, s string) {
	var n [16]byte
	copy(n[:], s)
	b.Write(n[:])
}

// Bytes serializes the image.
func (img Image) Bytes() []byte {
	ncmds := uint32(len(img.Segments) + len(img.Extra))
	sizeofcmds := uint32(0)
	for _, seg := range img.Segments {
		sizeofcmds += segmentSize + sectionSize*uint32(len(seg.Sections))
	}
	for _, raw := range img.Extra {
		sizeofcmds += uint32(len(raw))
	}
	if !img.NoSymtab {
		ncmds++
		sizeofcmds += symtabCmdSize
	}

	var strtab bytes.Buffer
	strtab.WriteByte(0)
	strx := make([]uint32, len(img.Symbols))
	for i, sym := range img.Symbols {
		strx[i] = uint32(strtab.Len())
		strtab.WriteString(sym.Name)
		strtab.WriteByte(0)
	}

	symoff := uint32(headerSize) + sizeofcmds
	stroff := symoff + uint32(len(img.Symbols))*nlistSize

	var b bytes.Buffer
	put32(&b, magic64)
	put32(&b, cpuTypeARM64)
	put32(&b, 0)
	put32(&b, mhDylib)
	put32(&b, ncmds)
	put32(&b, sizeofcmds)
	put32(&b, 0)
	put32(&b, 0)

	for _, seg := range img.Segments {
		put32(&b, lcSegment64)
		put32(&b, segmentSize+sectionSize*uint32(len(seg.Sections)))
		putName(&b, seg.Name)
		put64(&b, seg.VMAddr) // vmaddr
		put64(&b, 0x4000)     // vmsize
		put64(&b, 0)          // fileoff
		put64(&b, 0)          // filesize
		put32(&b, 5)          // maxprot
		put32(&b, 5)          // initprot
		put32(&b, uint32(len(seg.Sections)))
		put32(&b, 0) // flags
		for _, sect := range seg.Sections {
			putName(&b, sect.Name)
			putName(&b, sect.Seg)
			put64(&b, seg.VMAddr)
			put64(&b, 0)
			for range 8 {
				put32(&b, 0)
			}
		}
	}
	for _, raw := range img.Extra {
		b.Write(raw)
	}
	if !img.NoSymtab {
		put32(&b, lcSymtab)
		put32(&b, symtabCmdSize)
		put32(&b, symoff)
		put32(&b, uint32(len(img.Symbols)))
		put32(&b, stroff)
		put32(&b, uint32(strtab.Len()))
	}

	for i, sym := range img.Symbols {
		idx := strx[i]
		if sym.Strx != 0 {
			idx = sym.Strx
		}
		put32(&b, idx)
		b.WriteByte(sym.Type)
		b.WriteByte(sym.Sect)
		binary.Write(&b, binary.LittleEndian, uint16(0))
		put64(&b, sym.Value)
	}
	b.Write(strtab.Bytes())

	return b.Bytes()
}

// Write serializes the image to path.
func (img Image) Write(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, img.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// LoadCommand returns a raw load command of the given type and size.
func LoadCommand(cmd, size uint32) []byte {
	var b bytes.Buffer
	put32(&b, cmd)
	put32(&b, size)
	if size > 8 {
		b.Write(make([]byte, size-8))
	}
	return b.Bytes()
}
