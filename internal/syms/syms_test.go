package syms

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/symdb/internal/config"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/demangle"
	"github.com/blacktop/symdb/internal/model"
	"github.com/blacktop/symdb/internal/pipe"
	"github.com/blacktop/symdb/internal/scan"
	"github.com/blacktop/symdb/pkg/symbols"
	"github.com/blacktop/symdb/pkg/symtab/symtabtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textBase = 0x180000000

func libImage(names ...string) symtabtest.Image {
	img := symtabtest.Image{Segments: []symtabtest.Segment{symtabtest.Text(textBase)}}
	for i, name := range names {
		img.Symbols = append(img.Symbols, symtabtest.Func(name, 1, textBase+uint64(0x1000*(i+1))))
	}
	return img
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// corpus lays out two valid builds, one badly named directory and a build
// without a Symbols directory.
func corpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	b1 := filepath.Join(root, "iPhone14,3 18.5 (22F76)", "Symbols")
	libImage("_main", "__ZN3Foo3barEv").Write(t, mkdir(t, filepath.Join(b1, "usr", "lib", "libfoo.dylib")))
	libImage("_main", "__ZN3Foo3barEv").Write(t, mkdir(t, filepath.Join(b1, "usr", "lib", "libbar.dylib")))
	writeFile(t, filepath.Join(b1, "usr", "share", "README"), []byte("not an image at all"))

	b2 := filepath.Join(root, "iPhone14,3 18.6 (22G86) arm64", "Symbols")
	libImage("_$s4main3FooV", "_start").Write(t, mkdir(t, filepath.Join(b2, "System", "Library", "Foo")))

	bad := filepath.Join(root, "random folder", "Symbols")
	libImage("_ignored").Write(t, mkdir(t, filepath.Join(bad, "libignored.dylib")))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "iPhone14,3 17.0 (21A329)"), 0o755))

	return root
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	return path
}

func openDB(t *testing.T) db.Database {
	t.Helper()
	d, err := db.Open(config.Database{
		Driver:    config.DriverSqlite,
		Path:      filepath.Join(t.TempDir(), "symbols.db"),
		BatchSize: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

type fakeSwift map[string]string

func (f fakeSwift) Demangle(name string) (string, error) {
	if out, ok := f[name]; ok {
		return out, nil
	}
	return name, nil
}

func TestRun(t *testing.T) {
	root := corpus(t)
	d := openDB(t)

	r, err := symbols.NewResolver(fakeSwift{"_$s4main3FooV": "main.Foo"}, 16)
	require.NoError(t, err)

	stats, err := (&Extractor{DB: d, Resolver: r}).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Builds)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 6, stats.Symbols)
	assert.Equal(t, 2, stats.Demangle.Native)
	assert.Equal(t, 1, stats.Demangle.Foreign)
	assert.NotEmpty(t, stats.String())

	c, err := d.Counts()
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Builds: 2, Files: 3, Symbols: 6}, *c)

	b, err := d.FindBuild("22F76", "arm64e")
	require.NoError(t, err)
	assert.Equal(t, "18.5", b.Version)

	files, err := d.Files(b.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "libbar.dylib", files[0].Name)
	assert.Equal(t, "/usr/lib/libbar.dylib", files[0].Path)

	// identical symbols in two files get their own rows
	for _, f := range files {
		syms, err := d.Symbols(f.ID)
		require.NoError(t, err)
		require.Len(t, syms, 2)
		assert.Equal(t, "_main", syms[0].Name)
		assert.Equal(t, int64(0x1000), syms[0].Address)
		assert.Equal(t, "Foo::bar()", syms[1].Name)
	}

	sym, err := d.LookupSymbol(model.SymbolQuery{Build: "22G86", Arch: "arm64", File: "Foo", Address: 0x1000})
	require.NoError(t, err)
	assert.Equal(t, "main.Foo", sym.Name)

	_, err = d.FindBuild("", "arm64e")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunTwiceAddsNothing(t *testing.T) {
	root := corpus(t)
	d := openDB(t)

	_, err := (&Extractor{DB: d}).Run(context.Background(), root)
	require.NoError(t, err)
	first, err := d.Counts()
	require.NoError(t, err)

	_, err = (&Extractor{DB: d}).Run(context.Background(), root)
	require.NoError(t, err)
	second, err := d.Counts()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunMissingRoot(t *testing.T) {
	_, err := (&Extractor{DB: openDB(t)}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRunCanceled(t *testing.T) {
	root := corpus(t)
	d := openDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Extractor{DB: d}).Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)

	c, err := d.Counts()
	require.NoError(t, err)
	assert.Zero(t, c.Builds)
}

type brokenSwift struct{}

func (brokenSwift) Demangle(name string) (string, error) {
	return name, &demangle.ProtocolError{Sent: name, Echo: "garbage"}
}

func TestRunAbortsOnProtocolError(t *testing.T) {
	root := corpus(t)
	d := openDB(t)

	r, err := symbols.NewResolver(brokenSwift{}, 16)
	require.NoError(t, err)

	_, err = (&Extractor{DB: d, Resolver: r}).Run(context.Background(), root)
	var perr *demangle.ProtocolError
	require.ErrorAs(t, err, &perr)

	// the first build was committed before the Swift symbol of the second was seen
	c, err := d.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Builds)
}

func TestRunWithProgress(t *testing.T) {
	root := corpus(t)
	d := openDB(t)

	var out discard
	stats, err := (&Extractor{DB: d, Progress: true, ProgressOutput: &out}).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
}

type discard struct{ n int }

func (d *discard) Write(p []byte) (int, error) {
	d.n += len(p)
	return len(p), nil
}

func TestSkipReasons(t *testing.T) {
	root := corpus(t)
	r, err := symbols.NewResolver(nil, 0)
	require.NoError(t, err)
	e := &Extractor{Resolver: r}

	readme := filepath.Join(root, "iPhone14,3 18.5 (22F76)", "Symbols", "usr", "share", "README")
	_, err = e.file(scan.Entry{Name: "README", Path: readme, RelPath: "/usr/share/README"})
	require.True(t, pipe.IsSkip(err))
	assert.Contains(t, err.Error(), "unusable image")

	bd, err := scan.ParseDirName("iPhone14,3 17.0 (21A329)")
	require.NoError(t, err)
	bd.Path = filepath.Join(root, bd.Name)
	err = e.build(context.Background(), bd, &Stats{})
	require.True(t, pipe.IsSkip(err))
	assert.Contains(t, err.Error(), "no usable Symbols directory")
}
