package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gearshelf/internal/config"
)

// sqlitePragmas are applied through the DSN so every pooled connection gets them
const sqlitePragmas = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

// DatabaseManager manages the catalog database connection
type DatabaseManager struct {
	config *config.DatabaseConfig
	gormDB *gorm.DB
	sqlDB  *sql.DB
	logger *zerolog.Logger
}

// GORMConfig represents GORM configuration shared by both drivers
var GORMConfig = &gorm.Config{
	Logger:                 logger.Default.LogMode(logger.Silent),
	SkipDefaultTransaction: true,
	PrepareStmt:            true,
}

// SQLiteDSN builds the DSN for a catalog file
func SQLiteDSN(path string) string {
	return "file:" + path + sqlitePragmas
}

// Dialector selects the gorm dialector for the configured driver
func Dialector(cfg *config.DatabaseConfig, dataDir string) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		path := cfg.ResolvePath(dataDir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create catalog directory for %s", path)
		}
		return sqlite.Open(SQLiteDSN(path)), nil
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	}
	return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
}

// NewDatabaseManager opens the catalog database and verifies the connection
func NewDatabaseManager(cfg *config.DatabaseConfig, dataDir string, logger *zerolog.Logger) (*DatabaseManager, error) {
	dialector, err := Dialector(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, GORMConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := runHealthCheck(db); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "database health check failed")
	}

	if logger != nil {
		logger.Info().Str("driver", db.Dialector.Name()).Msg("Catalog database opened")
	}

	return &DatabaseManager{
		config: cfg,
		gormDB: db,
		sqlDB:  sqlDB,
		logger: logger,
	}, nil
}

// runHealthCheck performs a basic query to verify database connectivity
func runHealthCheck(db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result int
	return db.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error
}

// GetGormDB returns the GORM database instance
func (d *DatabaseManager) GetGormDB() *gorm.DB {
	return d.gormDB
}

// GetSQLDB returns the underlying SQL database instance
func (d *DatabaseManager) GetSQLDB() *sql.DB {
	return d.sqlDB
}

// Close closes the database connection
func (d *DatabaseManager) Close() error {
	return d.sqlDB.Close()
}

// NewDatabaseManagerFromExisting wraps already opened GORM and SQL handles
func NewDatabaseManagerFromExisting(gormDB *gorm.DB, sqlDB *sql.DB) *DatabaseManager {
	return &DatabaseManager{
		gormDB: gormDB,
		sqlDB:  sqlDB,
	}
}
