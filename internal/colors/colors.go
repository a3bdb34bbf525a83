// Package colors provides centralized color output with TTY-aware defaults.
//
// Colors are automatically disabled when stdout is not a terminal (piped or
// redirected to a file). Use Init() to override based on CLI flags.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (--color)
//   - forceColor == false: force colors off (--color=false)
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

// Symbol highlights a symbol name written back into a crash log.
func Symbol() *color.Color { return color.New(color.Bold, color.FgHiGreen) }

// Address styles the image base and offset of a frame.
func Address() *color.Color { return color.New(color.Faint, color.FgHiBlue) }

// Missing styles frames that could not be resolved.
func Missing() *color.Color { return color.New(color.Faint, color.FgHiRed) }
