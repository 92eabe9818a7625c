package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gearshelf/internal/config"
	"gearshelf/internal/middleware"
)

// RegisterPluginRoutes mounts the catalog API under /api
func RegisterPluginRoutes(app *fiber.App, h *PluginHandler, limits config.RateLimitConfig) {
	api := app.Group("/api")

	api.Post("/scan-plugins", middleware.NewScanThrottle(limits), h.ScanPlugins)
	api.Get("/get-plugins", h.GetPlugins)
	api.Get("/get-plugin-statistics", h.GetStatistics)
	api.Get("/search-plugins", middleware.NewSearchRateLimiter(limits), h.SearchPlugins)
	api.Get("/get-scan-history", h.GetScanHistory)
	api.Get("/export-plugins", h.ExportPlugins)
	api.Post("/cleanup-inactive-plugins", h.CleanupInactive)
	api.Get("/catalog/plugins", h.ListCatalog)
}
