package symtab

import (
	"cmp"
	"encoding/binary"
	"slices"

	"github.com/blacktop/go-macho/types"
)

// MaxSymbols caps the number of qualifying symbols taken from one image.
const MaxSymbols = 1_000_000

// Symbol is an exported code symbol.
type Symbol struct {
	// Name is the raw, still mangled, symbol name.
	Name string
	// Address is Value relative to the __TEXT segment.
	Address uint64
}

// Symbols returns the image's defined symbols in __TEXT,__text ordered by
// address. An image without a __TEXT,__text section yields no symbols.
func (i *Image) Symbols() ([]Symbol, error) {
	l, err := i.Layout()
	if err != nil {
		return nil, err
	}
	return decodeSymbols(i.data, l, MaxSymbols)
}

func decodeSymbols(r reader, l *Layout, limit int) ([]Symbol, error) {
	if l.Symtab == nil {
		return nil, ErrNoSymtab
	}
	if l.TextSectionOrdinal == 0 {
		return nil, nil
	}

	st := l.Symtab
	table, err := r.slice("symbol table", uint64(st.Symoff), uint64(st.Nsyms)*nlist64Size)
	if err != nil {
		return nil, err
	}
	strtab, err := r.slice("string table", uint64(st.Stroff), uint64(st.Strsize))
	if err != nil {
		return nil, err
	}

	var syms []Symbol
	for off := 0; off < len(table) && len(syms) < limit; off += nlist64Size {
		ent := table[off : off+nlist64Size]

		typ := types.NType(ent[4])
		if typ&types.N_STAB != 0 || typ&types.N_TYPE != types.N_SECT {
			continue
		}
		if ent[5] != l.TextSectionOrdinal {
			continue
		}
		value := binary.LittleEndian.Uint64(ent[8:])
		if value == 0 {
			continue
		}
		strx := binary.LittleEndian.Uint32(ent[0:])
		if strx >= st.Strsize {
			continue
		}
		name := cstring(strtab[strx:])
		if name == "" {
			continue
		}

		syms = append(syms, Symbol{
			Name:    name,
			Address: value - l.TextVMAddr,
		})
	}

	slices.SortStableFunc(syms, func(a, b Symbol) int {
		return cmp.Compare(a.Address, b.Address)
	})

	return syms, nil
}
