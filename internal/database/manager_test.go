package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gearshelf/internal/config"
	"gearshelf/internal/models"
)

func sqliteConfig(path string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         path,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
}

func TestNewDatabaseManager_SQLite(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &config.DatabaseConfig{Driver: config.DriverSQLite, MaxOpenConns: 2, MaxIdleConns: 1}

	dm, err := NewDatabaseManager(cfg, filepath.Join(dataDir, "nested"), nil)
	require.NoError(t, err)
	defer dm.Close()

	assert.FileExists(t, filepath.Join(dataDir, "nested", config.DatabaseFileName))
	assert.Equal(t, "sqlite", dm.GetGormDB().Dialector.Name())
	assert.NoError(t, dm.GetSQLDB().Ping())

	var mode string
	require.NoError(t, dm.GetGormDB().Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestMigrate_CreatesSchemaIdempotently(t *testing.T) {
	dm, err := NewDatabaseManager(sqliteConfig(filepath.Join(t.TempDir(), "catalog.db")), "", nil)
	require.NoError(t, err)
	defer dm.Close()

	mm := NewMigrationManager(dm.GetGormDB(), nil)
	require.NoError(t, mm.Migrate(context.Background()))
	require.NoError(t, mm.Migrate(context.Background()))

	migrator := dm.GetGormDB().Migrator()
	assert.True(t, migrator.HasTable(&models.CatalogPlugin{}))
	assert.True(t, migrator.HasTable(&models.ScanSession{}))
	for _, idx := range []string{"idx_plugins_path", "idx_plugins_type", "idx_plugins_manufacturer", "idx_plugins_active"} {
		assert.True(t, migrator.HasIndex(&models.CatalogPlugin{}, idx), idx)
	}
	assert.True(t, migrator.HasIndex(&models.ScanSession{}, "idx_scan_sessions_date"))
}

func TestMigrate_BackfillsSearchKeys(t *testing.T) {
	dm, err := NewDatabaseManager(sqliteConfig(filepath.Join(t.TempDir(), "catalog.db")), "", nil)
	require.NoError(t, err)
	defer dm.Close()

	ctx := context.Background()
	mm := NewMigrationManager(dm.GetGormDB(), nil)
	require.NoError(t, mm.Migrate(ctx))

	manufacturer := "Ölwerk"
	row := models.CatalogPlugin{Name: "Über Delay", Manufacturer: &manufacturer, Type: models.PluginTypeVST3, Path: "/uber", ScanDate: 1, IsActive: true}
	require.NoError(t, dm.GetGormDB().Create(&row).Error)

	require.NoError(t, mm.Migrate(ctx))

	var got models.CatalogPlugin
	require.NoError(t, dm.GetGormDB().First(&got, row.ID).Error)
	assert.Equal(t, "über delay", got.NameKey)
	assert.Equal(t, "ölwerk", got.ManufacturerKey)
}

func TestDialector_UnsupportedDriver(t *testing.T) {
	_, err := Dialector(&config.DatabaseConfig{Driver: "oracle"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDialector_Postgres(t *testing.T) {
	d, err := Dialector(&config.DatabaseConfig{Driver: config.DriverPostgres, DSN: "host=localhost"}, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
