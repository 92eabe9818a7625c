package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gearshelf/internal/catalog"
	"gearshelf/internal/export"
	"gearshelf/internal/grouping"
	"gearshelf/internal/logging"
	"gearshelf/internal/metrics"
	"gearshelf/internal/models"
	"gearshelf/internal/tracing"
)

// DefaultHistoryLimit is used when a caller asks for scan history without a limit
const DefaultHistoryLimit = 10

// Scanner discovers plugin bundles on disk
type Scanner interface {
	ScanAll(ctx context.Context) models.ScanResult
	ScanQuick(ctx context.Context) models.ScanResult
}

// Catalog is the persistence the service depends on
type Catalog interface {
	SavePlugins(ctx context.Context, plugins []models.Plugin, scanTimeMillis int64, scanErrors []string) (*models.ScanSession, error)
	ActivePlugins(ctx context.Context) ([]models.CatalogPlugin, error)
	ActivePluginsPage(ctx context.Context, filter catalog.Filter, offset, limit int) ([]models.CatalogPlugin, int64, error)
	PluginsByType(ctx context.Context, t models.PluginType) ([]models.CatalogPlugin, error)
	PluginsByManufacturer(ctx context.Context, manufacturer string) ([]models.CatalogPlugin, error)
	PluginByPath(ctx context.Context, path string) (*models.CatalogPlugin, error)
	Search(ctx context.Context, q string) ([]models.CatalogPlugin, error)
	Statistics(ctx context.Context) (*models.CatalogStatistics, error)
	ScanHistory(ctx context.Context, limit int) ([]models.ScanSession, error)
	CleanupInactive(ctx context.Context, olderThanDays int) (int64, error)
}

// PluginService runs the scan pipeline and answers catalog queries
type PluginService struct {
	scanner Scanner
	catalog Catalog
	grouper *grouping.Grouper
	cache   *ResultCache
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	logger  *logging.Logger
	now     func() time.Time
}

// ServiceOption configures a PluginService
type ServiceOption func(*PluginService)

// WithGrouper replaces the default grouping engine
func WithGrouper(g *grouping.Grouper) ServiceOption {
	return func(s *PluginService) {
		s.grouper = g
	}
}

// WithMetrics records scan and cleanup outcomes
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *PluginService) {
		s.metrics = m
	}
}

// WithTracer wraps pipeline stages in spans
func WithTracer(t *tracing.Tracer) ServiceOption {
	return func(s *PluginService) {
		s.tracer = t
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger *logging.Logger) ServiceOption {
	return func(s *PluginService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPluginService wires a scanner and catalog into the scan pipeline
func NewPluginService(scanner Scanner, cat Catalog, opts ...ServiceOption) *PluginService {
	s := &PluginService{
		scanner: scanner,
		catalog: cat,
		grouper: grouping.NewGrouper(),
		cache:   NewResultCache(),
		tracer:  tracing.NewNoopTracer(),
		logger:  logging.NewLogger(logging.InfoLevel, io.Discard),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the result cache owned by the service
func (s *PluginService) Cache() *ResultCache {
	return s.cache
}

// Scan walks the scan roots, reconciles the catalog and regroups the active
// set. Directory problems end up in the report's Errors. A catalog failure
// returns an unsuccessful report together with the error. A failed save
// leaves the cache untouched; a failed regroup after a committed save
// invalidates it.
func (s *PluginService) Scan(ctx context.Context, quick bool) (*models.ScanReport, error) {
	ctx, span := s.tracer.StartSpan(ctx, "plugins.scan", tracing.ScanAttrs(quick)...)
	defer span.End()
	start := time.Now()

	scanCtx, scanSpan := s.tracer.StartSpan(ctx, "plugins.scan.walk")
	var result models.ScanResult
	if quick {
		result = s.scanner.ScanQuick(scanCtx)
	} else {
		result = s.scanner.ScanAll(scanCtx)
	}
	scanSpan.End()

	saveCtx, saveSpan := s.tracer.StartSpan(ctx, "plugins.scan.save")
	session, err := s.catalog.SavePlugins(saveCtx, result.Plugins, result.ScanTime, result.Errors)
	if err != nil {
		tracing.SetSpanError(saveCtx, err)
		saveSpan.End()
		return s.scanFailed(ctx, quick, start, result, err)
	}
	saveSpan.End()

	groups, err := s.groupActive(ctx)
	if err != nil {
		s.cache.Invalidate()
		return s.scanFailed(ctx, quick, start, result, err)
	}
	stats := grouping.Statistics(groups)
	s.cache.Replace(groups, stats)

	if s.metrics != nil {
		s.metrics.ObserveScan(quick, time.Since(start), result, session, nil)
	}
	s.logger.LogScan(ctx, session.ScanID.String(), quick, result.TotalScanned, len(groups), len(result.Errors), time.Since(start), nil)

	return &models.ScanReport{
		Success:          true,
		Message:          fmt.Sprintf("Found %d unique plugins (%d files)", len(groups), result.TotalScanned),
		TotalPlugins:     len(groups),
		TotalFiles:       result.TotalScanned,
		MultiFormatCount: stats.MultiFormatCount,
		ScanTime:         result.ScanTime,
		Errors:           result.Errors,
		Statistics:       &stats,
	}, nil
}

func (s *PluginService) scanFailed(ctx context.Context, quick bool, start time.Time, result models.ScanResult, err error) (*models.ScanReport, error) {
	tracing.SetSpanError(ctx, err)
	if s.metrics != nil {
		s.metrics.ObserveScan(quick, time.Since(start), result, nil, err)
	}
	s.logger.LogScan(ctx, "", quick, result.TotalScanned, 0, len(result.Errors), time.Since(start), err)

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return &models.ScanReport{
		Success:  false,
		Message:  fmt.Sprintf("Scan failed: %v", err),
		ScanTime: result.ScanTime,
		Errors:   errs,
	}, err
}

func (s *PluginService) groupActive(ctx context.Context) ([]models.GroupedPlugin, error) {
	ctx, span := s.tracer.StartSpan(ctx, "plugins.group")
	defer span.End()

	rows, err := s.catalog.ActivePlugins(ctx)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	return s.grouper.Group(models.PluginsFromCatalog(rows)), nil
}

// Plugins returns the grouped catalog, from the cache once a scan has
// completed in this process
func (s *PluginService) Plugins(ctx context.Context) ([]models.GroupedPlugin, error) {
	if groups, ok := s.cache.Get(); ok {
		return groups, nil
	}
	return s.groupActive(ctx)
}

// Search groups the active plugins matching q. An empty query returns the
// whole grouped catalog.
func (s *PluginService) Search(ctx context.Context, q string) ([]models.GroupedPlugin, error) {
	if strings.TrimSpace(q) == "" {
		return s.Plugins(ctx)
	}
	ctx, span := s.tracer.StartSpan(ctx, "plugins.search")
	defer span.End()

	rows, err := s.catalog.Search(ctx, q)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	return s.grouper.Group(models.PluginsFromCatalog(rows)), nil
}

// MultiFormatPlugins returns the groups installed in more than one format
func (s *PluginService) MultiFormatPlugins(ctx context.Context) ([]models.GroupedPlugin, error) {
	groups, err := s.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	return grouping.MultiFormat(groups), nil
}

// PluginsByManufacturer buckets the grouped catalog by manufacturer
func (s *PluginService) PluginsByManufacturer(ctx context.Context) (map[string][]models.GroupedPlugin, error) {
	groups, err := s.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	return grouping.ByManufacturer(groups), nil
}

// PluginsOfType groups the active plugins of one type
func (s *PluginService) PluginsOfType(ctx context.Context, t models.PluginType) ([]models.GroupedPlugin, error) {
	rows, err := s.catalog.PluginsByType(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.grouper.Group(models.PluginsFromCatalog(rows)), nil
}

// PluginsFrom groups the active plugins of one manufacturer (exact match)
func (s *PluginService) PluginsFrom(ctx context.Context, manufacturer string) ([]models.GroupedPlugin, error) {
	rows, err := s.catalog.PluginsByManufacturer(ctx, manufacturer)
	if err != nil {
		return nil, err
	}
	return s.grouper.Group(models.PluginsFromCatalog(rows)), nil
}

// PluginAt returns the catalog row stored for path, active or not
func (s *PluginService) PluginAt(ctx context.Context, path string) (*models.CatalogPlugin, error) {
	return s.catalog.PluginByPath(ctx, path)
}

// CatalogStatistics returns the store-level counters
func (s *PluginService) CatalogStatistics(ctx context.Context) (*models.CatalogStatistics, error) {
	return s.catalog.Statistics(ctx)
}

// GroupStatistics summarizes the grouped catalog
func (s *PluginService) GroupStatistics(ctx context.Context) (models.GroupStatistics, error) {
	if stats, ok := s.cache.Statistics(); ok {
		return stats, nil
	}
	groups, err := s.groupActive(ctx)
	if err != nil {
		return models.GroupStatistics{}, err
	}
	return grouping.Statistics(groups), nil
}

// History returns the newest scan sessions; limit <= 0 means DefaultHistoryLimit
func (s *PluginService) History(ctx context.Context, limit int) ([]models.ScanSession, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.catalog.ScanHistory(ctx, limit)
}

// RawPlugins returns one page of active catalog rows
func (s *PluginService) RawPlugins(ctx context.Context, filter catalog.Filter, offset, limit int) ([]models.CatalogPlugin, int64, error) {
	return s.catalog.ActivePluginsPage(ctx, filter, offset, limit)
}

// Cleanup removes plugins inactive for more than olderThanDays
func (s *PluginService) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "plugins.cleanup")
	defer span.End()

	deleted, err := s.catalog.CleanupInactive(ctx, olderThanDays)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ObserveCleanup(deleted)
	}
	return deleted, nil
}

// Export writes the grouped catalog to w
func (s *PluginService) Export(ctx context.Context, format export.Format, w io.Writer) error {
	groups, err := s.Plugins(ctx)
	if err != nil {
		return err
	}
	doc := export.NewDocument(groups, grouping.Statistics(groups), s.now())
	return export.Write(w, format, doc)
}
