package symbols

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// SwiftMarker prefixes every Swift 5 mangled symbol name.
const SwiftMarker = "_$s"

// Native demangles an Itanium C++ (or Rust) symbol in-process.
// Mach-O adds an extra leading underscore, so __Z names are retried without it.
// The second result is false when name is not a native mangled name.
func Native(name string) (string, bool) {
	if name == "" {
		return name, false
	}
	if out, err := demangle.ToString(name); err == nil {
		return out, true
	}
	if strings.HasPrefix(name, "__Z") {
		if out, err := demangle.ToString(name[1:]); err == nil {
			return out, true
		}
	}
	return name, false
}

// IsSwift reports whether name carries the Swift mangling marker.
func IsSwift(name string) bool {
	return strings.HasPrefix(name, SwiftMarker)
}
