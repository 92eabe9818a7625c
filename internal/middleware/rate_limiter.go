package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"

	"gearshelf/internal/config"
)

// NewSearchRateLimiter limits search requests per client IP
func NewSearchRateLimiter(cfg config.RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.SearchMax,
		Expiration: cfg.SearchWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     "Too many search requests. Please try again later.",
				"retry_after": cfg.SearchWindow.Seconds(),
			})
		},
	})
}

// NewScanThrottle limits scan commands. The budget is process-wide, not per
// client IP.
func NewScanThrottle(cfg config.RateLimitConfig) fiber.Handler {
	perMinute := cfg.ScansPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	burst := cfg.ScanBurst
	if burst < 1 {
		burst = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	throttle := rate.NewLimiter(rate.Every(interval), burst)

	return func(c *fiber.Ctx) error {
		if !throttle.Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     "Too many scan requests. Please try again later.",
				"retry_after": interval.Seconds(),
			})
		}
		return c.Next()
	}
}
