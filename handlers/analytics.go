// handlers/analytics.go
package handlers

import (
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAnalyticsRoutes mounts the visitor beacon. Only POST is accepted.
func SetupAnalyticsRoutes(app *fiber.App) {
	app.All("/analytics", func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "method_not_allowed"})
		}
		var in services.VisitInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		if in.VisitorID == "" {
			in.VisitorID = c.Get("X-Visitor-Id")
		}
		ip := services.ClientIP(c.Get("X-Forwarded-For"), c.Get("X-Real-IP"))
		return c.JSON(services.TrackVisit(in, c.Get(fiber.HeaderUserAgent), ip, time.Now().UTC()))
	})
}
