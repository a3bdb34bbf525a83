package magic

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func le(m Magic) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(m))
	return b
}

func TestCheckMachO64(t *testing.T) {
	tcs := map[string]struct {
		hdr  []byte
		want error
	}{
		"64-bit":      {le(Magic64), nil},
		"32-bit":      {le(Magic32), Err32Bit},
		"32-bit swap": {le(Cigam32), Err32Bit},
		"64-bit swap": {le(Cigam64), ErrByteSwapped},
		"fat":         {le(MagicFatBE), ErrFat},
		"fat le":      {le(MagicFatLE), ErrFat},
		"elf":         {[]byte{0x7f, 'E', 'L', 'F'}, ErrNotMachO},
		"short":       {[]byte{0xcf, 0xfa}, ErrTooSmall},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, CheckMachO64(tc.hdr), tc.want)
		})
	}
}
