// middleware/user_context.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "user_id"
	localRole   = "role"
	localAction = "action"
)

// UserContextMiddleware copies the identity the gateway forwards in X-User-Id
// and X-Role into Locals. Both headers are trusted as-is and may be empty.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localUserID, strings.TrimSpace(c.Get("X-User-Id")))
		c.Locals(localRole, strings.ToLower(strings.TrimSpace(c.Get("X-Role"))))
		return c.Next()
	}
}

// UserID returns the caller id set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// Role returns the lower-cased X-Role value, or "" when absent.
func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(localRole).(string)
	return role
}

// IsStaff reports whether the caller is a trainer or director.
func IsStaff(c *fiber.Ctx) bool {
	switch Role(c) {
	case "trainer", "director":
		return true
	}
	return false
}

// SetAction records the dispatched action so the request log can label it.
func SetAction(c *fiber.Ctx, action string) {
	c.Locals(localAction, action)
}

func actionOf(c *fiber.Ctx) string {
	action, _ := c.Locals(localAction).(string)
	return action
}
