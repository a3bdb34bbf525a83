package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirName(t *testing.T) {
	tests := []struct {
		name    string
		version string
		build   string
		arch    string
	}{
		{"iPhone14,3 18.5 (22F76)", "18.5", "22F76", "arm64e"},
		{"iPhone14,3 18.5 (22F76) arm64e", "18.5", "22F76", "arm64e"},
		{"iPhone10,6 16.7.10 (20H350) arm64", "16.7.10", "20H350", "arm64"},
		{"17.0 (21A329)", "17.0", "21A329", "arm64e"},
		{"Some Device Name 26.0 (23A5276f)", "26.0", "23A5276f", "arm64e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd, err := ParseDirName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.version, bd.Version)
			assert.Equal(t, tt.build, bd.Build)
			assert.Equal(t, tt.arch, bd.Arch)
			assert.Equal(t, tt.name, bd.Name)
		})
	}

	for _, name := range []string{
		"Symbols",
		"iPhone14,3 18.5",
		"iPhone14,3 18.5 (22F76) x86_64",
		"iPhone14,3 18.5(22F76)",
		"18.5 ()",
		"iPhone14,318.5 (22F76)",
	} {
		_, err := ParseDirName(name)
		assert.ErrorIs(t, err, ErrBadDirName, name)
	}
}

func mkfile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestBuildDirs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"iPhone14,3 18.10 (22X1)",
		"iPhone14,3 18.5 (22F76)",
		"iPhone14,3 18.5 (22F76) arm64",
		"iPhone14,3 9.3 (13E233)",
		"not a build",
		".hidden 1.0 (1A1)",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	mkfile(t, filepath.Join(root, "README 1.0 (1A1)"))

	dirs, err := BuildDirs(root)
	require.NoError(t, err)

	var got []string
	for _, d := range dirs {
		got = append(got, d.String())
		assert.Equal(t, filepath.Join(root, d.Name), d.Path)
	}
	assert.Equal(t, []string{
		"9.3 (13E233, arm64e)",
		"18.5 (22F76, arm64e)",
		"18.5 (22F76, arm64)",
		"18.10 (22X1, arm64e)",
	}, got)

	_, err = BuildDirs(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	root := t.TempDir()
	bd := &BuildDir{Path: root}
	symbols := filepath.Join(root, SymbolsDir)

	mkfile(t, filepath.Join(symbols, "usr", "lib", "libobjc.A.dylib"))
	mkfile(t, filepath.Join(symbols, "System", "Library", "Frameworks", "Foundation.framework", "Foundation"))
	mkfile(t, filepath.Join(symbols, "usr", "lib", ".DS_Store"))
	mkfile(t, filepath.Join(symbols, ".git", "HEAD"))
	mkfile(t, filepath.Join(root, "outside"))

	require.NoError(t, os.Symlink(filepath.Join(symbols, "usr", "lib", "libobjc.A.dylib"), filepath.Join(symbols, "usr", "lib", "libobjc.dylib")))
	require.NoError(t, os.Symlink(filepath.Join(symbols, "usr"), filepath.Join(symbols, "usr-link")))
	require.NoError(t, os.Symlink(filepath.Join(symbols, "nope"), filepath.Join(symbols, "dangling")))

	files, err := Files(bd)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.Equal(t, filepath.Base(f.Path), f.Name)
	}
	assert.Equal(t, []string{
		"/System/Library/Frameworks/Foundation.framework/Foundation",
		"/usr/lib/libobjc.A.dylib",
		"/usr/lib/libobjc.dylib",
	}, rel)
}

func TestFilesWithoutSymbolsDir(t *testing.T) {
	root := t.TempDir()
	_, err := Files(&BuildDir{Path: root})
	assert.Error(t, err)

	mkfile(t, filepath.Join(root, SymbolsDir))
	_, err = Files(&BuildDir{Path: root})
	assert.Error(t, err)
}
