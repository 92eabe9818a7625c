package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"gearshelf/internal/metrics"
)

// DegradedLatency is the ping latency above which the catalog is reported degraded
const DegradedLatency = 200 * time.Millisecond

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string           `json:"status"`
	Catalog DependencyStatus `json:"catalog"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterHealthRoutes registers GET /healthz
func RegisterHealthRoutes(app *fiber.App, db Pinger, m *metrics.Metrics) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		catalogStatus := CheckCatalog(c.UserContext(), db)
		if m != nil {
			m.SetHealth("catalog", catalogStatus.Status != "down")
		}

		if catalogStatus.Status == "down" {
			c.Status(fiber.StatusServiceUnavailable)
		} else {
			c.Status(fiber.StatusOK)
		}
		c.Set("Cache-Control", "no-store")

		return c.JSON(HealthResponse{
			Status:  catalogStatus.Status,
			Catalog: catalogStatus,
		})
	})
}

// CheckCatalog pings the catalog database with a short timeout
func CheckCatalog(ctx context.Context, db Pinger) DependencyStatus {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return DependencyStatus{Status: "down", LatencyMs: latency.Milliseconds()}
	}
	if latency > DegradedLatency {
		return DependencyStatus{Status: "degraded", LatencyMs: latency.Milliseconds()}
	}
	return DependencyStatus{Status: "ok", LatencyMs: latency.Milliseconds()}
}
