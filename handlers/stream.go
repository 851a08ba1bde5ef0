// handlers/stream.go
package handlers

import (
	"context"

	"github.com/dima260208d-dot/kinetik-energy-project/middleware"
	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupStreamRoutes mounts the live notification feed.
func SetupStreamRoutes(app *fiber.App, characters *services.CharacterService, notifications *services.NotificationService, log *zap.Logger) {
	owner := func(ctx context.Context, characterID string) (string, error) {
		ch, err := characters.Get(ctx, characterID)
		if err != nil {
			return "", err
		}
		return ch.UserID, nil
	}

	app.Get("/kinetic/notifications/stream",
		middleware.UserContextMiddleware(),
		middleware.SSEAuthMiddleware(owner, log),
		func(c *fiber.Ctx) error {
			return notifications.StreamSSE(c, middleware.StreamCharacterID(c), log)
		})
}
