package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DriverSqlite, c.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, c.Database.Path)
	assert.Equal(t, DefaultBatchSize, c.Database.BatchSize)
	assert.Equal(t, DefaultTimeout, c.Demangler.Timeout)
	assert.Equal(t, DefaultCacheSize, c.Demangler.CacheSize)
	assert.False(t, c.Progress)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  host: db.local
  user: symdb
  name: symbols
  batch_size: 250
demangler:
  path: /opt/swift/bin/swift-demangle
  timeout: 5s
progress: true
`), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, c.Database.Driver)
	assert.Equal(t, "db.local", c.Database.Host)
	assert.Equal(t, "5432", c.Database.Port)
	assert.Equal(t, 250, c.Database.BatchSize)
	assert.Equal(t, "/opt/swift/bin/swift-demangle", c.Demangler.Path)
	assert.Equal(t, 5*time.Second, c.Demangler.Timeout)
	assert.True(t, c.Progress)
}

func TestVerify(t *testing.T) {
	good := func() Config {
		return Config{
			Database:  Database{Driver: DriverSqlite, Path: "symbols.db", BatchSize: 10},
			Demangler: Demangler{Timeout: time.Second, CacheSize: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"empty driver defaults to sqlite", func(c *Config) { c.Database.Driver = "" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, false},
		{"postgres without host", func(c *Config) { c.Database.Driver = DriverPostgres }, false},
		{"zero batch size", func(c *Config) { c.Database.BatchSize = 0 }, false},
		{"negative timeout", func(c *Config) { c.Demangler.Timeout = -time.Second }, false},
		{"zero timeout disables deadline", func(c *Config) { c.Demangler.Timeout = 0 }, true},
		{"negative cache", func(c *Config) { c.Demangler.CacheSize = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good()
			tt.mutate(&c)
			err := c.verify()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
