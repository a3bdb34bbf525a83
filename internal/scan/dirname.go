// Package scan discovers build directories and the images inside them.
//
// A corpus root holds one directory per OS build, named like
// "iPhone14,3 18.5 (22F76) arm64e", each with a Symbols directory that
// mirrors the device file system.
package scan

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
)

// DefaultArch is assumed when a directory name carries no architecture.
const DefaultArch = "arm64e"

// ErrBadDirName is returned for directory names without a version and build.
var ErrBadDirName = errors.New("no version/build match")

var dirNameRE = regexp.MustCompile(`^(?:|.* )([0-9]+(?:\.[0-9]+)*) \(([^)]+)\)(?: (arm64e?))?$`)

// BuildDir is a directory holding the images of one build.
type BuildDir struct {
	Name    string
	Path    string
	Version string
	Build   string
	Arch    string

	semver *version.Version
}

func (b BuildDir) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Build, b.Arch)
}

// ParseDirName extracts the version, build and architecture from a build
// directory name.
func ParseDirName(name string) (*BuildDir, error) {
	m := dirNameRE.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrBadDirName)
	}
	bd := &BuildDir{
		Name:    name,
		Version: m[1],
		Build:   m[2],
		Arch:    m[3],
	}
	if bd.Arch == "" {
		bd.Arch = DefaultArch
	}
	if v, err := version.NewVersion(bd.Version); err == nil {
		bd.semver = v
	}
	return bd, nil
}

func (b *BuildDir) compare(o *BuildDir) int {
	switch {
	case b.semver != nil && o.semver != nil:
		if c := b.semver.Compare(o.semver); c != 0 {
			return c
		}
	case b.semver != nil:
		return -1
	case o.semver != nil:
		return 1
	}
	if c := cmp.Compare(b.Build, o.Build); c != 0 {
		return c
	}
	return cmp.Compare(b.Name, o.Name)
}
