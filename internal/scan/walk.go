package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/utils"
)

// SymbolsDir is the directory inside a build directory that is scanned.
const SymbolsDir = "Symbols"

// Entry is a candidate image.
type Entry struct {
	// Name is the base name.
	Name string
	// Path is the path on disk.
	Path string
	// RelPath is the path below Symbols with a leading slash.
	RelPath string
}

// BuildDirs lists the build directories directly below root in ascending
// version order. Hidden entries, plain files and directories whose name does
// not parse are skipped.
func BuildDirs(root string) ([]*BuildDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	var dirs []*BuildDir
	for _, entry := range entries {
		if utils.IsHidden(entry.Name()) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		fi, err := os.Stat(path)
		if err != nil {
			log.WithError(err).Warnf("failed to stat %s", path)
			continue
		}
		if !fi.IsDir() {
			continue
		}
		bd, err := ParseDirName(entry.Name())
		if err != nil {
			log.Warnf("Skipping directory (%v)", err)
			continue
		}
		bd.Path = path
		dirs = append(dirs, bd)
	}

	slices.SortStableFunc(dirs, func(a, b *BuildDir) int { return a.compare(b) })

	return dirs, nil
}

// Files lists the regular files below the Symbols directory of bd in lexical
// order. Symlinked files are followed, symlinked directories are not.
func Files(bd *BuildDir) ([]Entry, error) {
	root := filepath.Join(bd.Path, SymbolsDir)
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("symbols directory missing or invalid: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("symbols directory missing or invalid: %s is not a directory", root)
	}

	var files []Entry
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.WithError(err).Warnf("failed to read %s", path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if utils.IsHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			fi, err := os.Stat(path)
			if err != nil || !fi.Mode().IsRegular() {
				return nil
			}
		case !d.Type().IsRegular():
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, Entry{
			Name:    d.Name(),
			Path:    path,
			RelPath: "/" + filepath.ToSlash(rel),
		})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}
