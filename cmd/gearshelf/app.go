package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gearshelf/internal/catalog"
	"gearshelf/internal/config"
	"gearshelf/internal/database"
	"gearshelf/internal/logging"
	"gearshelf/internal/metrics"
	"gearshelf/internal/scanner"
	"gearshelf/internal/services"
	"gearshelf/internal/tracing"
)

// application is the wired object graph shared by every command
type application struct {
	cfg      *config.AppConfig
	logger   *logging.Logger
	db       *database.DatabaseManager
	store    *catalog.Store
	service  *services.PluginService
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
}

func openApplication(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger) (*application, error) {
	db, err := database.NewDatabaseManager(&cfg.Database, cfg.Paths.DataDir, logger.WithModule("database"))
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	store := catalog.NewStore(db.GetGormDB(), catalog.WithLogger(*logger.WithModule("catalog")))
	if err := store.Initialize(ctx); err != nil {
		tracer.Shutdown(ctx)
		db.Close()
		return nil, err
	}

	fileScanner := scanner.NewFileScanner(
		scanner.WithWorkers(cfg.Scanner.Workers),
		scanner.WithLogger(*logger.WithModule("scanner")),
	)
	service := services.NewPluginService(fileScanner, store,
		services.WithMetrics(m),
		services.WithTracer(tracer),
		services.WithServiceLogger(logger.Module("services")),
	)

	return &application{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		service:  service,
		registry: registry,
		metrics:  m,
		tracer:   tracer,
	}, nil
}

// Close flushes spans and closes the database
func (a *application) Close(ctx context.Context) error {
	return errors.Join(a.tracer.Shutdown(ctx), a.db.Close())
}

func (o *rootOptions) open(ctx context.Context) (*application, error) {
	return openApplication(ctx, o.cfg, o.logger)
}
