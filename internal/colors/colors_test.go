package colors

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	on, off := true, false

	color.NoColor = true
	Init(&on)
	assert.False(t, color.NoColor)
	assert.True(t, Enabled())

	Init(&off)
	assert.True(t, color.NoColor)
	assert.False(t, Enabled())

	// nil keeps whatever was detected
	Init(nil)
	assert.True(t, color.NoColor)
	color.NoColor = false
	Init(nil)
	assert.False(t, color.NoColor)
}

func TestNoColorPassthrough(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	assert.Equal(t, "_main", Symbol().Sprint("_main"))
	assert.Equal(t, "0x1000", Address().Sprint("0x1000"))
	assert.Equal(t, "<redacted>", Missing().Sprint("<redacted>"))
}

func TestColorsApplied(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = false
	got := Symbol().Sprint("_main")
	assert.NotEqual(t, "_main", got)
	assert.Contains(t, got, "_main")
	assert.Contains(t, got, "\x1b[")
}
