package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthPingTimeout = 2 * time.Second

// RegisterHealthRoutes adds liveness/readiness style endpoints. A nil pool or
// cache is a deliberate dev-mode fallback (in-memory store, limiter off), so
// it is reported as such rather than failing readiness; only a configured
// backend that stops answering pings flips the endpoint to 503.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ledgerStatus := "in-memory"
		limiterStatus := "disabled"
		healthy := true

		ctx, cancel := context.WithTimeout(c.UserContext(), healthPingTimeout)
		defer cancel()
		if d.DB != nil {
			ledgerStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				ledgerStatus = err.Error()
				healthy = false
			}
		}
		if d.Cache != nil {
			limiterStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				limiterStatus = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"ledger": ledgerStatus, "rate_limiter": limiterStatus},
			"env":       d.Cfg.Env,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
