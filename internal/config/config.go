// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultDatabasePath = "symbols.db"
	DefaultBatchSize    = 1000
	DefaultCacheSize    = 65536
	DefaultTimeout      = 30 * time.Second
)

// Database selects and configures the symbol store.
type Database struct {
	Driver    string `mapstructure:"driver" json:"driver"`
	Path      string `mapstructure:"path" json:"path"`
	Host      string `mapstructure:"host" json:"host"`
	Port      string `mapstructure:"port" json:"port"`
	User      string `mapstructure:"user" json:"user"`
	Password  string `mapstructure:"password" json:"password"`
	Name      string `mapstructure:"name" json:"name"`
	SSLMode   string `mapstructure:"sslmode" json:"sslmode"`
	BatchSize int    `mapstructure:"batch_size" json:"batch_size"`
	// ReadOnly opens an existing database without migrating or writing it.
	ReadOnly bool `mapstructure:"-" json:"-"`
}

// Demangler configures the swift-demangle helper.
type Demangler struct {
	Path      string        `mapstructure:"path" json:"path"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	CacheSize int           `mapstructure:"cache_size" json:"cache_size"`
}

// Config is the configuration struct
type Config struct {
	Database  Database  `mapstructure:"database" json:"database"`
	Demangler Demangler `mapstructure:"demangler" json:"demangler"`
	Progress  bool      `mapstructure:"progress" json:"progress"`
}

// SetDefaults registers the default value of every key with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSqlite)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.batch_size", DefaultBatchSize)
	v.SetDefault("demangler.timeout", DefaultTimeout)
	v.SetDefault("demangler.cache_size", DefaultCacheSize)
}

// Dir returns the directory holding the configuration file.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to get user home directory: %v", err)
	}
	return filepath.Join(home, ".config", "symdb"), nil
}

func (c *Config) verify() error {
	switch c.Database.Driver {
	case "":
		c.Database.Driver = DriverSqlite
		fallthrough
	case DriverSqlite:
		if c.Database.Path == "" {
			return fmt.Errorf("config: database.path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("config: database.host, database.user and database.name must be set for the postgres driver")
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("config: database.batch_size must be positive")
	}
	if c.Demangler.Timeout < 0 {
		return fmt.Errorf("config: demangler.timeout cannot be negative")
	}
	if c.Demangler.CacheSize < 0 {
		return fmt.Errorf("config: demangler.cache_size cannot be negative")
	}

	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load unmarshals and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
