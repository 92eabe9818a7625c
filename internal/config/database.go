package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Supported catalog drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Pool defaults. SQLite allows a single writer, so its pool stays small.
const (
	DefaultMaxOpenConns       = 10
	DefaultMaxIdleConns       = 5
	DefaultSQLiteMaxOpenConns = 4
	DefaultConnMaxLifetime    = 30 * time.Minute
	DefaultConnMaxIdleTime    = 15 * time.Minute
)

// DatabaseFileName is the catalog file created under paths.data_dir
const DatabaseFileName = "plugins.db"

// DatabaseConfig represents catalog database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ResolvePath returns the SQLite file path, defaulting to dataDir/plugins.db
func (d DatabaseConfig) ResolvePath(dataDir string) string {
	if d.Path != "" {
		return d.Path
	}
	return filepath.Join(dataDir, DatabaseFileName)
}

func applyDatabaseDefaults(config *DatabaseConfig) {
	if config.MaxOpenConns == 0 {
		if config.Driver == DriverSQLite {
			config.MaxOpenConns = DefaultSQLiteMaxOpenConns
		} else {
			config.MaxOpenConns = DefaultMaxOpenConns
		}
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = DefaultMaxIdleConns
	}
	if config.MaxIdleConns > config.MaxOpenConns {
		config.MaxIdleConns = config.MaxOpenConns
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if config.ConnMaxIdleTime == 0 {
		config.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
}

func validateDatabaseConfig(config *DatabaseConfig) error {
	switch config.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if config.DSN == "" {
			return fmt.Errorf("database.dsn cannot be empty when database.driver is postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	if config.MaxOpenConns < 0 || config.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes cannot be negative")
	}
	return nil
}
