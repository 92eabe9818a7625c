package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"gearshelf/internal/catalog"
	"gearshelf/internal/export"
	"gearshelf/internal/models"
	"gearshelf/internal/pagination"
	"gearshelf/internal/services"
	"gearshelf/internal/utils"
)

const defaultCatalogPageSize = 50

// PluginHandler serves the plugin catalog commands and queries
type PluginHandler struct {
	service       *services.PluginService
	retentionDays int
	logger        zerolog.Logger

	// held for the duration of a scan; overlapping requests get 409
	scanning sync.Mutex
}

// NewPluginHandler creates a new plugin handler. retentionDays is the
// cleanup age used when a request does not pass ?days=.
func NewPluginHandler(service *services.PluginService, retentionDays int, logger zerolog.Logger) *PluginHandler {
	return &PluginHandler{
		service:       service,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// ScanPlugins runs a full scan, or a quick one with ?quick=true
func (h *PluginHandler) ScanPlugins(c *fiber.Ctx) error {
	if !h.scanning.TryLock() {
		return utils.SendConflictError(c, "a scan is already in progress")
	}
	defer h.scanning.Unlock()

	quick := c.QueryBool("quick", false)
	report, err := h.service.Scan(c.UserContext(), quick)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(report)
	}
	return c.JSON(report)
}

// GetPlugins returns the grouped catalog. ?view=multi-format keeps only
// groups installed in several formats; ?view=by-manufacturer buckets them.
func (h *PluginHandler) GetPlugins(c *fiber.Ctx) error {
	ctx := c.UserContext()
	switch view := c.Query("view"); view {
	case "":
		groups, err := h.service.Plugins(ctx)
		if err != nil {
			return h.storeError(c, err, "Failed to load plugins")
		}
		return c.JSON(groups)
	case "multi-format":
		groups, err := h.service.MultiFormatPlugins(ctx)
		if err != nil {
			return h.storeError(c, err, "Failed to load plugins")
		}
		return c.JSON(groups)
	case "by-manufacturer":
		buckets, err := h.service.PluginsByManufacturer(ctx)
		if err != nil {
			return h.storeError(c, err, "Failed to load plugins")
		}
		return c.JSON(buckets)
	default:
		return utils.SendValidationError(c, "view", fmt.Sprintf("unknown view %q", view))
	}
}

// GetStatistics returns the catalog counters
func (h *PluginHandler) GetStatistics(c *fiber.Ctx) error {
	stats, err := h.service.CatalogStatistics(c.UserContext())
	if err != nil {
		return h.storeError(c, err, "Failed to load statistics")
	}
	return c.JSON(stats)
}

// SearchPlugins matches ?q= against name and manufacturer
func (h *PluginHandler) SearchPlugins(c *fiber.Ctx) error {
	groups, err := h.service.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return h.storeError(c, err, "Failed to search plugins")
	}
	return c.JSON(groups)
}

// GetScanHistory returns the newest scan sessions
func (h *PluginHandler) GetScanHistory(c *fiber.Ctx) error {
	limit := services.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return utils.SendValidationError(c, "limit", "must be a positive integer")
		}
		limit = n
	}

	sessions, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		return h.storeError(c, err, "Failed to load scan history")
	}
	return c.JSON(sessions)
}

// ExportPlugins downloads the grouped catalog as json, yaml or csv
func (h *PluginHandler) ExportPlugins(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return utils.SendValidationError(c, "format", err.Error())
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.UserContext(), format, &buf); err != nil {
		return h.storeError(c, err, "Failed to export plugins")
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="plugins.%s"`, format.Extension()))
	return c.Send(buf.Bytes())
}

// CleanupInactive deletes plugins inactive for longer than ?days=
func (h *PluginHandler) CleanupInactive(c *fiber.Ctx) error {
	days := h.retentionDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return utils.SendValidationError(c, "days", "must be a non-negative integer")
		}
		days = n
	}

	deleted, err := h.service.Cleanup(c.UserContext(), days)
	if err != nil {
		return h.storeError(c, err, "Failed to clean up inactive plugins")
	}
	return c.JSON(fiber.Map{
		"deleted":       deleted,
		"olderThanDays": days,
	})
}

// ListCatalog returns raw active rows, filtered and paginated
func (h *PluginHandler) ListCatalog(c *fiber.Ctx) error {
	var filter catalog.Filter
	if raw := c.Query("type"); raw != "" {
		t, err := models.ParsePluginType(raw)
		if err != nil {
			return utils.SendValidationError(c, "type", err.Error())
		}
		filter.Type = t
	}
	filter.Manufacturer = c.Query("manufacturer")

	page, pageSize := pagination.GetPaginationParams(c, 1, defaultCatalogPageSize)
	rows, total, err := h.service.RawPlugins(c.UserContext(), filter, pagination.CalculateOffset(page, pageSize), pageSize)
	if err != nil {
		return h.storeError(c, err, "Failed to list plugins")
	}

	return c.JSON(fiber.Map{
		"data":       rows,
		"pagination": pagination.Calculate(total, page, pageSize),
	})
}

func (h *PluginHandler) storeError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, catalog.ErrInvalidArgument):
		return utils.SendError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotInitialized):
		return utils.SendServiceUnavailableError(c, err.Error())
	}
	h.logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return utils.SendInternalServerError(c, message)
}
