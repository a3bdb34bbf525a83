// Package merge copies the contents of one symbol database into another.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/model"
	"github.com/blacktop/symdb/internal/utils"
	"github.com/dustin/go-humanize"
)

type Stats struct {
	Builds    int
	NewBuilds int
	Files     int
	Symbols   int
}

func (s Stats) String() string {
	return fmt.Sprintf("%s builds (%s new), %s files, %s symbols",
		humanize.Comma(int64(s.Builds)),
		humanize.Comma(int64(s.NewBuilds)),
		humanize.Comma(int64(s.Files)),
		humanize.Comma(int64(s.Symbols)),
	)
}

// Merge inserts every build, file and symbol of src into dst. Rows dst
// already has are left alone, so merging twice adds nothing.
func Merge(ctx context.Context, dst, src db.Database) (*Stats, error) {
	builds, err := src.Builds()
	if err != nil {
		return nil, fmt.Errorf("failed to list source builds: %w", err)
	}

	stats := &Stats{}
	for _, b := range builds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if _, err := dst.FindBuild(b.Build, b.Arch); errors.Is(err, model.ErrNotFound) {
			log.WithFields(log.Fields{
				"version": b.Version,
				"build":   b.Build,
				"arch":    b.Arch,
			}).Info("Adding new build")
			stats.NewBuilds++
		} else if err != nil {
			return stats, err
		}

		dstID, err := dst.EnsureBuild(&model.Build{
			Version: b.Version,
			Build:   b.Build,
			Arch:    b.Arch,
		})
		if err != nil {
			return stats, err
		}

		files, err := src.Files(b.ID)
		if err != nil {
			return stats, fmt.Errorf("failed to list files of %s: %w", b.Build, err)
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			syms, err := src.Symbols(f.ID)
			if err != nil {
				return stats, fmt.Errorf("failed to read symbols of %s: %w", f.Path, err)
			}
			if _, err := dst.WriteFile(dstID, &model.File{Name: f.Name, Path: f.Path}, syms); err != nil {
				return stats, err
			}
			stats.Files++
			stats.Symbols += len(syms)
		}
		utils.Indent(log.Debug, 2)(fmt.Sprintf("Merged %s files of %s (%s)", humanize.Comma(int64(len(files))), b.Build, b.Arch))
		stats.Builds++
	}

	return stats, nil
}
