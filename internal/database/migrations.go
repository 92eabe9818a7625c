package database

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gearshelf/internal/models"
)

// MigrationManager manages the catalog schema
type MigrationManager struct {
	db     *gorm.DB
	logger *zerolog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *gorm.DB, logger *zerolog.Logger) *MigrationManager {
	return &MigrationManager{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the plugins and scan_sessions tables and their indexes.
// It is idempotent.
func (m *MigrationManager) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(
		&models.CatalogPlugin{},
		&models.ScanSession{},
	); err != nil {
		return errors.Wrap(err, "failed to auto-migrate tables")
	}

	filled, err := m.backfillSearchKeys(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to backfill search keys")
	}
	if filled > 0 && m.logger != nil {
		m.logger.Info().Int64("rows", filled).Msg("Backfilled plugin search keys")
	}

	if m.logger != nil {
		m.logger.Debug().Msg("Catalog migrations completed")
	}
	return nil
}

// backfillSearchKeys fills the folded search columns of rows written before
// those columns existed
func (m *MigrationManager) backfillSearchKeys(ctx context.Context) (int64, error) {
	var filled int64
	var batch []models.CatalogPlugin
	result := m.db.WithContext(ctx).
		Where("name_key = ? AND name <> ?", "", "").
		FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				batch[i].SetSearchKeys()
				if err := m.db.WithContext(ctx).Model(&batch[i]).UpdateColumns(map[string]interface{}{
					"name_key":         batch[i].NameKey,
					"manufacturer_key": batch[i].ManufacturerKey,
				}).Error; err != nil {
					return err
				}
				filled++
			}
			return nil
		})
	return filled, result.Error
}
