// Package syms extracts the symbols of every build below a corpus root and
// writes them to a symbol database.
package syms

import (
	"context"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/model"
	"github.com/blacktop/symdb/internal/pipe"
	"github.com/blacktop/symdb/internal/scan"
	"github.com/blacktop/symdb/internal/utils"
	"github.com/blacktop/symdb/pkg/symbols"
	"github.com/blacktop/symdb/pkg/symtab"
	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Stats summarizes a run.
type Stats struct {
	Builds   int
	Files    int
	Skipped  int
	Symbols  int
	Demangle symbols.Stats
}

func (s Stats) String() string {
	return fmt.Sprintf("%s builds, %s files (%s skipped), %s symbols (%s demangled natively, %s Swift)",
		humanize.Comma(int64(s.Builds)),
		humanize.Comma(int64(s.Files)),
		humanize.Comma(int64(s.Skipped)),
		humanize.Comma(int64(s.Symbols)),
		humanize.Comma(int64(s.Demangle.Native)),
		humanize.Comma(int64(s.Demangle.Foreign)),
	)
}

// Extractor walks build directories one file at a time.
type Extractor struct {
	DB       db.Database
	Resolver *symbols.Resolver
	// Progress shows a progress bar per build on ProgressOutput.
	Progress       bool
	ProgressOutput io.Writer
}

type fileSymbols struct {
	entry   scan.Entry
	symbols []model.Symbol
}

// Run processes every build directory directly below root. Files that can't
// be parsed are skipped; database and demangler protocol errors stop the run.
func (e *Extractor) Run(ctx context.Context, root string) (*Stats, error) {
	if e.Resolver == nil {
		e.Resolver, _ = symbols.NewResolver(nil, 0)
	}

	dirs, err := scan.BuildDirs(root)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	defer func() { stats.Demangle = e.Resolver.Stats() }()
	for _, bd := range dirs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.build(ctx, bd, stats); err != nil {
			if pipe.IsSkip(err) {
				log.WithField("dir", bd.Name).Warnf("Skipping build: %v", err)
				continue
			}
			return stats, err
		}
	}

	return stats, nil
}

func (e *Extractor) build(ctx context.Context, bd *scan.BuildDir, stats *Stats) error {
	log.WithFields(log.Fields{
		"version": bd.Version,
		"build":   bd.Build,
		"arch":    bd.Arch,
	}).Infof("Scanning %s", bd.Name)

	entries, err := scan.Files(bd)
	if err != nil {
		return pipe.Skipf("no usable %s directory: %v", scan.SymbolsDir, err)
	}

	bar := e.newBar(bd, len(entries))
	defer bar.wait()

	var (
		skips   pipe.SkipMemento
		results []fileSymbols
	)
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		syms, err := e.file(ent)
		bar.increment()
		if err != nil {
			if pipe.IsSkip(err) {
				utils.Indent(log.Debug, 2)(fmt.Sprintf("Skipping %s: %v", ent.RelPath, err))
				skips.Remember(err)
				stats.Skipped++
				continue
			}
			return err
		}
		utils.Indent(log.Debug, 2)(fmt.Sprintf("Processed %s (%d symbols)", ent.RelPath, len(syms)))
		results = append(results, fileSymbols{entry: ent, symbols: syms})
	}
	bar.wait()

	if err := skips.Evaluate(); err != nil {
		utils.Indent(log.Warn, 2)(fmt.Sprintf("Skipped %s files: %v", humanize.Comma(int64(skips.Count())), err))
	}

	utils.Indent(log.Info, 2)(fmt.Sprintf("Writing %s files of %s", humanize.Comma(int64(len(results))), bd))

	buildID, err := e.DB.EnsureBuild(&model.Build{
		Version: bd.Version,
		Build:   bd.Build,
		Arch:    bd.Arch,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.DB.WriteFile(buildID, &model.File{
			Name: r.entry.Name,
			Path: r.entry.RelPath,
		}, r.symbols); err != nil {
			return err
		}
		stats.Files++
		stats.Symbols += len(r.symbols)
	}
	stats.Builds++

	return nil
}

// file extracts and resolves the symbols of one image.
func (e *Extractor) file(ent scan.Entry) ([]model.Symbol, error) {
	raw, err := symtab.Extract(ent.Path)
	if err != nil {
		return nil, pipe.Skipf("unusable image: %v", err)
	}

	syms := make([]model.Symbol, 0, len(raw))
	for _, s := range raw {
		name, err := e.Resolver.Resolve(s.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to demangle %s in %s: %w", s.Name, ent.RelPath, err)
		}
		syms = append(syms, model.Symbol{
			Name:    name,
			Address: int64(s.Address),
		})
	}

	return syms, nil
}

type progressBar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func (e *Extractor) newBar(bd *scan.BuildDir, total int) *progressBar {
	if !e.Progress || total == 0 {
		return nil
	}
	opts := []mpb.ContainerOption{mpb.WithWidth(60)}
	if e.ProgressOutput != nil {
		opts = append(opts, mpb.WithOutput(e.ProgressOutput))
	}
	p := mpb.New(opts...)
	name := "      " + bd.Build
	bar := p.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d/%d"),
			decor.Name(" ] "),
		),
	)
	return &progressBar{p: p, bar: bar}
}

func (b *progressBar) increment() {
	if b != nil {
		b.bar.Increment()
	}
}

// wait flushes the bar, aborting it if it never completed. Safe to call twice.
func (b *progressBar) wait() {
	if b == nil || b.p == nil {
		return
	}
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.p.Wait()
	b.p = nil
}
