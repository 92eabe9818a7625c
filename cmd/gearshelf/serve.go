package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"gearshelf/internal/handlers"
	"gearshelf/internal/health"
	"gearshelf/internal/jobs"
	"gearshelf/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP and run the retention sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			return serve(ctx, app)
		},
	}
}

// newAPIServer builds the fiber app with every route mounted
func newAPIServer(a *application) *fiber.App {
	cfg := a.cfg

	server := fiber.New(fiber.Config{
		AppName:               "GearShelf",
		ServerHeader:          "GearShelf",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: true,
	})

	server.Use(recover.New())
	server.Use(a.logger.FiberLoggerMiddleware())
	server.Use(middleware.Metrics(a.metrics))

	health.RegisterHealthRoutes(server, a.db.GetSQLDB(), a.metrics)
	server.Get("/metrics", handlers.MetricsHandler(a.registry))

	pluginHandler := handlers.NewPluginHandler(a.service, cfg.Retention.Days, *a.logger.WithModule("http"))
	handlers.RegisterPluginRoutes(server, pluginHandler, cfg.RateLimit)

	return server
}

func serve(ctx context.Context, a *application) error {
	log := a.logger.WithModule("server")

	retention := jobs.NewRetentionJobManager(a.service, a.cfg.Retention, *a.logger.WithModule("jobs"))
	if err := retention.Start(); err != nil {
		return err
	}

	server := newAPIServer(a)
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- server.Listen(addr)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	retention.Stop(shutdownCtx)

	return serveErr
}
