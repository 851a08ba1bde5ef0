// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const localStreamCharacter = "stream_character_id"

// CharacterOwnerLookup returns the user that owns a character.
type CharacterOwnerLookup func(ctx context.Context, characterID string) (userID string, err error)

// SSEAuthMiddleware guards the notification stream. EventSource cannot send
// custom headers, so identity falls back to the user_id and role query params.
// Callers other than staff may only stream their own character.
func SSEAuthMiddleware(owner CharacterOwnerLookup, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		characterID := strings.TrimSpace(c.Query("character_id"))
		if characterID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing_character_id",
			})
		}

		userID := UserID(c)
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
			c.Locals(localUserID, userID)
		}
		if Role(c) == "" {
			c.Locals(localRole, strings.ToLower(strings.TrimSpace(c.Query("role"))))
		}
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing_user_id",
			})
		}

		if !IsStaff(c) {
			ownerID, err := owner(c.UserContext(), characterID)
			if err != nil {
				log.Warn("[SSEAuth] character lookup failed",
					zap.String("character_id", characterID), zap.Error(err))
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "character_not_found",
				})
			}
			if ownerID != userID {
				log.Warn("[SSEAuth] stream for foreign character rejected",
					zap.String("user_id", userID), zap.String("character_id", characterID))
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "forbidden",
				})
			}
		}

		c.Locals(localStreamCharacter, characterID)
		return c.Next()
	}
}

// StreamCharacterID returns the character validated by SSEAuthMiddleware.
func StreamCharacterID(c *fiber.Ctx) string {
	id, _ := c.Locals(localStreamCharacter).(string)
	return id
}
