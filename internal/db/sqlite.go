package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Sqlite is a database that stores data in a sqlite database.
type Sqlite struct {
	URL string
	// Config
	BatchSize int
	ReadOnly  bool

	store
}

// NewSqlite creates a new Sqlite database.
func NewSqlite(path string, batchSize int, readOnly bool) (Database, error) {
	if path == "" {
		return nil, fmt.Errorf("'path' is required")
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Sqlite{
		URL:       path,
		BatchSize: batchSize,
		ReadOnly:  readOnly,
	}, nil
}

func (s *Sqlite) dsn() string {
	name := s.URL
	params := []string{"_pragma=foreign_keys(1)"}
	if s.ReadOnly {
		// the driver only hands the query to sqlite for file: URIs
		if !strings.HasPrefix(name, "file:") {
			name = "file:" + (&url.URL{Path: name}).EscapedPath()
		}
		params = append([]string{"mode=ro"}, params...)
	} else {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	params = append(params, "_pragma=busy_timeout(5000)")

	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + strings.Join(params, "&")
}

// Connect connects to the database.
func (s *Sqlite) Connect() (err error) {
	s.store.batchSize = s.BatchSize
	s.store.db, err = gorm.Open(sqlite.Open(s.dsn()), gormConfig(s.BatchSize))
	if err != nil {
		return fmt.Errorf("failed to connect sqlite database: %w", err)
	}
	// single writer
	db, err := s.store.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sqlite connection pool: %w", err)
	}
	db.SetMaxOpenConns(1)

	if s.ReadOnly {
		return nil
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return nil
}

// Close checkpoints the write-ahead log into the main database file,
// truncating it, and closes the database. Read-only databases are just closed.
func (s *Sqlite) Close() error {
	if s.store.db == nil {
		return nil
	}
	if s.ReadOnly {
		return s.store.close()
	}
	if err := s.store.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		s.store.close()
		return fmt.Errorf("failed to checkpoint sqlite database: %w", err)
	}
	return s.store.close()
}
