// Package db provides a database interface and implementations.
package db

import (
	"fmt"

	"github.com/blacktop/symdb/internal/config"
	"github.com/blacktop/symdb/internal/model"
)

// Database is the interface that wraps the symbol store operations.
type Database interface {
	// Connect connects to the database and migrates the schema.
	Connect() error

	// EnsureBuild inserts the build if (build, arch) is new and returns its id.
	// An existing row is never changed.
	EnsureBuild(b *model.Build) (uint, error)

	// WriteFile inserts the file (unique per build and name) and its symbols
	// in one transaction and returns the file id. Symbols already present at
	// the same address are left untouched.
	WriteFile(buildID uint, f *model.File, syms []model.Symbol) (uint, error)

	// FindBuild returns the build for the given build id and arch.
	// It returns model.ErrNotFound if there is none.
	FindBuild(build, arch string) (*model.Build, error)

	// Builds returns every build ordered by id.
	Builds() ([]model.Build, error)

	// Files returns the files of a build ordered by id.
	Files(buildID uint) ([]model.File, error)

	// Symbols returns the symbols of a file ordered by address.
	Symbols(fileID uint) ([]model.Symbol, error)

	// LookupSymbol returns the symbol matching q.
	// It returns model.ErrNotFound if there is none.
	LookupSymbol(q model.SymbolQuery) (*model.Symbol, error)

	// Counts returns the number of rows in each table.
	Counts() (*model.Counts, error)

	// Close closes the database.
	Close() error
}

// Open creates the database selected by conf and connects to it.
func Open(conf config.Database) (Database, error) {
	var (
		d   Database
		err error
	)
	switch conf.Driver {
	case config.DriverSqlite, "":
		d, err = NewSqlite(conf.Path, conf.BatchSize, conf.ReadOnly)
	case config.DriverPostgres:
		d, err = NewPostgres(conf.Host, conf.Port, conf.User, conf.Password, conf.Name, conf.SSLMode, conf.BatchSize, conf.ReadOnly)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := d.Connect(); err != nil {
		return nil, err
	}
	return d, nil
}
