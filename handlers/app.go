// handlers/app.go
package handlers

import (
	"github.com/dima260208d-dot/kinetik-energy-project/middleware"
	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AppDeps is everything NewApp needs to mount the HTTP surfaces.
type AppDeps struct {
	Log           *zap.Logger
	Origins       string
	GatewayToken  string
	Kinetic       *KineticHandler
	Diary         *services.DiaryService
	Characters    *services.CharacterService
	Notifications *services.NotificationService
}

// NewApp builds the fiber app with CORS, gateway auth, request logging and
// every route. CORS runs first so preflights never reach the gateway check.
func NewApp(d AppDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "kinetik-energy",
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: ErrorHandler(d.Log),
	})

	app.Use(middleware.CORS(d.Origins))
	app.Use(middleware.RequestLogger(d.Log))
	app.Use(middleware.GatewayAuthMiddleware(d.GatewayToken, d.Log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupStreamRoutes(app, d.Characters, d.Notifications, d.Log)
	SetupKineticRoutes(app, d.Kinetic)
	SetupDiaryRoutes(app, d.Diary)
	SetupAnalyticsRoutes(app)
	return app
}
