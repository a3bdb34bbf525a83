package symtab

import (
	"fmt"

	"github.com/blacktop/go-macho/types"
)

const (
	TextSegment = "__TEXT"
	TextSection = "__text"

	loadCommandSize      = 8
	segmentCommand64Size = 72
	section64Size        = 80
	symtabCommandSize    = 24
	nlist64Size          = 16

	// section ordinals in nlist_64 are a single byte
	maxSectionOrdinal = 255
)

// SymtabInfo is the payload of an LC_SYMTAB load command.
type SymtabInfo struct {
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

// Layout is what the load command walk learns about an image.
type Layout struct {
	// TextVMAddr is the vmaddr of the first __TEXT segment, or 0.
	TextVMAddr uint64
	// TextSectionOrdinal is the 1-based ordinal of __TEXT,__text counted
	// across every section of every segment. 0 means not found.
	TextSectionOrdinal uint8
	NumSections        uint32
	Symtab             *SymtabInfo

	hasText bool
}

// Layout walks the load commands once and caches the result.
func (i *Image) Layout() (*Layout, error) {
	if i.layout != nil {
		return i.layout, nil
	}
	l, err := walkLoadCommands(i.data)
	if err != nil {
		return nil, err
	}
	i.layout = l
	return l, nil
}

func walkLoadCommands(r reader) (*Layout, error) {
	ncmds, err := r.u32("ncmds", 16)
	if err != nil {
		return nil, err
	}

	l := &Layout{}

	off := uint64(types.FileHeaderSize64)
	for idx := uint32(0); idx < ncmds; idx++ {
		cmd, err := r.u32(fmt.Sprintf("load command %d", idx), off)
		if err != nil {
			return nil, err
		}
		cmdsize, err := r.u32(fmt.Sprintf("load command %d size", idx), off+4)
		if err != nil {
			return nil, err
		}
		if cmdsize < loadCommandSize {
			return nil, &ParseError{Offset: off, Msg: fmt.Sprintf("load command %d has cmdsize %d", idx, cmdsize)}
		}
		if _, err := r.slice(fmt.Sprintf("load command %d (%#x)", idx, cmd), off, uint64(cmdsize)); err != nil {
			return nil, err
		}

		switch types.LoadCmd(cmd) {
		case types.LC_SEGMENT_64:
			if err := l.addSegment(r, off, cmdsize); err != nil {
				return nil, err
			}
		case types.LC_SYMTAB:
			if cmdsize < symtabCommandSize {
				return nil, &ParseError{Offset: off, Msg: fmt.Sprintf("LC_SYMTAB has cmdsize %d", cmdsize)}
			}
			if l.Symtab != nil {
				break
			}
			var st SymtabInfo
			for _, f := range []struct {
				dst *uint32
				at  uint64
			}{
				{&st.Symoff, 8}, {&st.Nsyms, 12}, {&st.Stroff, 16}, {&st.Strsize, 20},
			} {
				if *f.dst, err = r.u32("LC_SYMTAB", off+f.at); err != nil {
					return nil, err
				}
			}
			l.Symtab = &st
		}

		off += uint64(cmdsize)
	}

	return l, nil
}

func (l *Layout) addSegment(r reader, off uint64, cmdsize uint32) error {
	if cmdsize < segmentCommand64Size {
		return &ParseError{Offset: off, Msg: fmt.Sprintf("LC_SEGMENT_64 has cmdsize %d", cmdsize)}
	}
	segname, err := r.name16("segment name", off+8)
	if err != nil {
		return err
	}
	vmaddr, err := r.u64("segment vmaddr", off+24)
	if err != nil {
		return err
	}
	nsects, err := r.u32("segment nsects", off+64)
	if err != nil {
		return err
	}
	if uint64(nsects) > uint64(cmdsize-segmentCommand64Size)/section64Size {
		return &ParseError{
			Offset: off,
			Msg:    fmt.Sprintf("segment %s declares %d sections but cmdsize is %d", segname, nsects, cmdsize),
		}
	}

	if segname == TextSegment && !l.hasText {
		l.hasText = true
		l.TextVMAddr = vmaddr
	}

	sect := off + segmentCommand64Size
	for j := uint32(0); j < nsects; j++ {
		l.NumSections++
		sectname, err := r.name16("section name", sect)
		if err != nil {
			return err
		}
		sectseg, err := r.name16("section segment name", sect+16)
		if err != nil {
			return err
		}
		if l.TextSectionOrdinal == 0 && sectseg == TextSegment && sectname == TextSection && l.NumSections <= maxSectionOrdinal {
			l.TextSectionOrdinal = uint8(l.NumSections)
		}
		sect += section64Size
	}

	return nil
}
