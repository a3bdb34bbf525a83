// Package pipe holds the skip errors used to step over a file or build
// without failing the whole run.
package pipe

import (
	"errors"
	"fmt"
	"strings"
)

// IsSkip returns true if the error is an ErrSkip.
func IsSkip(err error) bool {
	return errors.As(err, &ErrSkip{})
}

// ErrSkip occurs when an input is skipped for some reason.
type ErrSkip struct {
	reason string
}

// Error implements the error interface. returns the reason the input was skipped.
func (e ErrSkip) Error() string {
	return e.reason
}

// Skip skips this input with the given reason.
func Skip(reason string) ErrSkip {
	return ErrSkip{reason: reason}
}

// Skipf is Skip with a format string.
func Skipf(format string, args ...any) ErrSkip {
	return Skip(fmt.Sprintf(format, args...))
}

// SkipMemento remembers previous skip errors so you can return them all at once later.
type SkipMemento struct {
	skips []string
	count int
}

// Remember a skip. Identical reasons are only kept once but still counted.
func (e *SkipMemento) Remember(err error) {
	e.count++
	for _, skip := range e.skips {
		if skip == err.Error() {
			return
		}
	}
	e.skips = append(e.skips, err.Error())
}

// Count returns how many skips were remembered, duplicates included.
func (e *SkipMemento) Count() int {
	return e.count
}

// Evaluate return a skip error with all previous skips, or nil if none happened.
func (e *SkipMemento) Evaluate() error {
	if len(e.skips) == 0 {
		return nil
	}
	return Skip(strings.Join(e.skips, ", "))
}
