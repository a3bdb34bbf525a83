package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Postgres is a database that stores data in a Postgres database.
type Postgres struct {
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
	SSLMode   string
	BatchSize int
	ReadOnly  bool

	store
}

// NewPostgres creates a new Postgres database.
func NewPostgres(host, port, user, password, database, sslmode string, batchSize int, readOnly bool) (Database, error) {
	if host == "" || port == "" || user == "" || database == "" {
		return nil, fmt.Errorf("'host', 'port', 'user' and 'database' are required")
	}
	if sslmode == "" {
		sslmode = "disable"
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Postgres{
		Host:      host,
		Port:      port,
		User:      user,
		Password:  password,
		Database:  database,
		SSLMode:   sslmode,
		BatchSize: batchSize,
		ReadOnly:  readOnly,
	}, nil
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue quotes v for a key/value connection string when it is empty or
// holds whitespace, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\r\n'\\") {
		return v
	}
	return "'" + dsnEscaper.Replace(v) + "'"
}

func (p *Postgres) dsn() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		dsnValue(p.Host), dsnValue(p.Port), dsnValue(p.User), dsnValue(p.Database), dsnValue(p.SSLMode))
	if p.Password != "" {
		dsn += " password=" + dsnValue(p.Password)
	}
	if p.ReadOnly {
		dsn += " default_transaction_read_only=on"
	}
	return dsn
}

// Connect connects to the database.
func (p *Postgres) Connect() (err error) {
	p.store.batchSize = p.BatchSize
	p.store.db, err = gorm.Open(postgres.Open(p.dsn()), gormConfig(p.BatchSize))
	if err != nil {
		return fmt.Errorf("failed to connect postgres database: %w", err)
	}
	if p.ReadOnly {
		return nil
	}
	if err := p.migrate(); err != nil {
		return fmt.Errorf("failed to migrate postgres database: %w", err)
	}
	return nil
}

// Close closes the database.
func (p *Postgres) Close() error {
	return p.store.close()
}
