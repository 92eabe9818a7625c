package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gearshelf/internal/database"
	"gearshelf/internal/models"
)

var (
	// ErrNotInitialized is returned by every operation before Initialize succeeds
	ErrNotInitialized = errors.New("catalog store not initialized")
	// ErrInvalidArgument marks caller input the store refuses to act on
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a single-row lookup matches nothing
	ErrNotFound = errors.New("plugin not found")
)

const (
	activeOrder   = "manufacturer, name"
	secondsPerDay = 24 * 60 * 60
)

const uniqueCountQuery = `SELECT COUNT(*) FROM (
	SELECT DISTINCT LOWER(TRIM(name)) AS normalized_name,
		LOWER(COALESCE(manufacturer, 'unknown')) AS normalized_manufacturer
	FROM plugins
	WHERE is_active = ?
) AS active_identities`

// Filter narrows a paginated catalog listing; zero values match everything
type Filter struct {
	Type         models.PluginType
	Manufacturer string
}

// Store persists discovered plugins and scan sessions
type Store struct {
	db          *gorm.DB
	logger      zerolog.Logger
	now         func() time.Time
	initialized atomic.Bool
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store over db. Initialize must be called before use.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates the schema if needed. It is safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	if err := database.NewMigrationManager(s.db, &s.logger).Migrate(ctx); err != nil {
		return err
	}
	s.initialized.Store(true)
	s.logger.Info().Msg("Catalog initialized")
	return nil
}

func (s *Store) ready() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// SavePlugins records the result of one scan. In a single transaction every
// active row is deactivated, each discovered plugin is upserted by path (and
// so reactivated), and a scan session is appended. Any failure rolls the whole
// save back and is returned as reported by the database.
func (s *Store) SavePlugins(ctx context.Context, plugins []models.Plugin, scanTimeMillis int64, scanErrors []string) (*models.ScanSession, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	for _, p := range plugins {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	if scanTimeMillis < 0 {
		return nil, fmt.Errorf("%w: negative scan time %d", ErrInvalidArgument, scanTimeMillis)
	}

	now := s.now()
	scanDate := now.UnixMilli()
	stamp := now.Unix()

	var session *models.ScanSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CatalogPlugin{}).
			Where("is_active = ?", true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": stamp}).Error; err != nil {
			return err
		}

		for _, p := range plugins {
			if err := upsertPlugin(tx, p, scanDate, stamp); err != nil {
				return err
			}
		}

		unique, err := countUnique(tx)
		if err != nil {
			return err
		}

		session = &models.ScanSession{
			ScanDate:      scanDate,
			TotalFiles:    len(plugins),
			UniquePlugins: int(unique),
			ScanTime:      scanTimeMillis,
			Errors:        joinErrors(scanErrors),
			CreatedAt:     stamp,
		}
		return tx.Create(session).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Int("plugins", len(plugins)).Msg("Failed to save scan, rolled back")
		return nil, err
	}

	s.logger.Info().
		Str("scan_id", session.ScanID.String()).
		Int("total_files", session.TotalFiles).
		Int("unique_plugins", session.UniquePlugins).
		Msg("Saved plugins to catalog")
	return session, nil
}

func upsertPlugin(tx *gorm.DB, p models.Plugin, scanDate, stamp int64) error {
	var existing []models.CatalogPlugin
	if err := tx.Where("path = ?", p.Path).Limit(1).Find(&existing).Error; err != nil {
		return err
	}

	if len(existing) > 0 {
		return tx.Model(&existing[0]).Updates(map[string]interface{}{
			"name":             p.Name,
			"manufacturer":     models.StringPtr(p.Manufacturer),
			"type":             p.Type,
			"format":           models.StringPtr(p.Format),
			"version":          models.StringPtr(p.Version),
			"file_size":        p.FileSize,
			"last_modified":    p.LastModified,
			"scan_date":        scanDate,
			"is_active":        true,
			"updated_at":       stamp,
			"name_key":         models.FoldKey(p.Name),
			"manufacturer_key": models.FoldKey(p.Manufacturer),
		}).Error
	}

	row := models.CatalogPlugin{
		Name:         p.Name,
		Manufacturer: models.StringPtr(p.Manufacturer),
		Type:         p.Type,
		Path:         p.Path,
		Format:       models.StringPtr(p.Format),
		Version:      models.StringPtr(p.Version),
		FileSize:     p.FileSize,
		LastModified: p.LastModified,
		ScanDate:     scanDate,
		IsActive:     true,
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
	}
	row.SetSearchKeys()
	return tx.Create(&row).Error
}

func countUnique(tx *gorm.DB) (int64, error) {
	var unique int64
	if err := tx.Raw(uniqueCountQuery, true).Scan(&unique).Error; err != nil {
		return 0, err
	}
	return unique, nil
}

func joinErrors(errs []string) *string {
	if len(errs) == 0 {
		return nil
	}
	joined := strings.Join(errs, "; ")
	return &joined
}

// ActivePlugins returns all active rows ordered by manufacturer then name
func (s *Store) ActivePlugins(ctx context.Context) ([]models.CatalogPlugin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.CatalogPlugin
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(activeOrder).
		Find(&rows).Error
	return rows, err
}

// PluginsByType returns active rows of one plugin type
func (s *Store) PluginsByType(ctx context.Context, t models.PluginType) ([]models.CatalogPlugin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !t.IsKnown() {
		return nil, fmt.Errorf("%w: unknown plugin type %q", ErrInvalidArgument, t)
	}
	var rows []models.CatalogPlugin
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND type = ?", true, t).
		Order(activeOrder).
		Find(&rows).Error
	return rows, err
}

// PluginsByManufacturer returns active rows whose manufacturer matches exactly
func (s *Store) PluginsByManufacturer(ctx context.Context, manufacturer string) ([]models.CatalogPlugin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.CatalogPlugin
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND manufacturer = ?", true, manufacturer).
		Order("name").
		Find(&rows).Error
	return rows, err
}

// PluginByPath returns the row for path, active or not
func (s *Store) PluginByPath(ctx context.Context, path string) (*models.CatalogPlugin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var row models.CatalogPlugin
	if err := s.db.WithContext(ctx).Where("path = ?", path).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ActivePluginsPage returns one page of active rows matching filter and the
// total number of matches
func (s *Store) ActivePluginsPage(ctx context.Context, filter Filter, offset, limit int) ([]models.CatalogPlugin, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("%w: offset %d limit %d", ErrInvalidArgument, offset, limit)
	}

	query := s.db.WithContext(ctx).Model(&models.CatalogPlugin{}).Where("is_active = ?", true)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Manufacturer != "" {
		query = query.Where("manufacturer = ?", filter.Manufacturer)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CatalogPlugin
	if err := query.Order(activeOrder).Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Search matches q case-insensitively as a substring of name or manufacturer.
// LIKE wildcards in q match literally.
func (s *Store) Search(ctx context.Context, q string) ([]models.CatalogPlugin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidArgument)
	}

	pattern := "%" + escapeLike(models.FoldKey(q)) + "%"
	var rows []models.CatalogPlugin
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(`(name_key LIKE ? ESCAPE '\' OR manufacturer_key LIKE ? ESCAPE '\')`, pattern, pattern).
		Order(activeOrder).
		Find(&rows).Error
	return rows, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Statistics reads the catalog counters in one transaction so they describe
// a single committed state
func (s *Store) Statistics(ctx context.Context) (*models.CatalogStatistics, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := &models.CatalogStatistics{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active := tx.Model(&models.CatalogPlugin{}).Where("is_active = ?", true)

		if err := active.Session(&gorm.Session{}).Count(&stats.TotalPlugins).Error; err != nil {
			return err
		}

		unique, err := countUnique(tx)
		if err != nil {
			return err
		}
		stats.UniquePlugins = unique

		var perType []struct {
			Type  models.PluginType
			Count int64
		}
		if err := active.Session(&gorm.Session{}).
			Select("type, COUNT(*) AS count").
			Group("type").
			Scan(&perType).Error; err != nil {
			return err
		}
		for _, row := range perType {
			switch row.Type {
			case models.PluginTypeVST3:
				stats.VST3Count = row.Count
			case models.PluginTypeVST2:
				stats.VST2Count = row.Count
			case models.PluginTypeAU:
				stats.AUCount = row.Count
			}
		}

		if err := active.Session(&gorm.Session{}).
			Where("manufacturer IS NOT NULL").
			Distinct("manufacturer").
			Count(&stats.ManufacturerCount).Error; err != nil {
			return err
		}

		var last sql.NullInt64
		if err := tx.Raw("SELECT MAX(scan_date) FROM scan_sessions").Row().Scan(&last); err != nil {
			return err
		}
		if last.Valid {
			stats.LastScanDate = &last.Int64
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ScanHistory returns up to limit sessions, newest first
func (s *Store) ScanHistory(ctx context.Context, limit int) ([]models.ScanSession, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: history limit must be positive, got %d", ErrInvalidArgument, limit)
	}
	var sessions []models.ScanSession
	err := s.db.WithContext(ctx).
		Order("scan_date DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// CleanupInactive deletes inactive rows deactivated more than olderThanDays
// ago and returns how many were removed
func (s *Store) CleanupInactive(ctx context.Context, olderThanDays int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if olderThanDays < 0 {
		return 0, fmt.Errorf("%w: retention days cannot be negative, got %d", ErrInvalidArgument, olderThanDays)
	}

	cutoff := s.now().Unix() - int64(olderThanDays)*secondsPerDay
	result := s.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.CatalogPlugin{})
	if result.Error != nil {
		return 0, result.Error
	}

	s.logger.Info().Int64("deleted", result.RowsAffected).Int("older_than_days", olderThanDays).Msg("Cleaned up inactive plugins")
	return result.RowsAffected, nil
}
