// middleware/cors.go
package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	corsMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsHeaders = "Content-Type, X-User-Id, X-Role, X-Visitor-Id, Authorization"
	corsMaxAge  = 86400
)

// CORS answers every OPTIONS request with 204 and no body. With the wildcard
// origin it also sets Access-Control-Allow-Origin on responses to requests
// that carry no Origin header, which fiber's cors leaves untouched.
func CORS(origins string) fiber.Handler {
	handler := cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: corsMethods,
		AllowHeaders: corsHeaders,
		MaxAge:       corsMaxAge,
	})
	wildcard := origins == "*"

	return func(c *fiber.Ctx) error {
		if wildcard {
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		}
		if c.Method() == fiber.MethodOptions && c.Get(fiber.HeaderOrigin) == "" {
			c.Set(fiber.HeaderAccessControlAllowMethods, corsMethods)
			c.Set(fiber.HeaderAccessControlAllowHeaders, corsHeaders)
			c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(corsMaxAge))
			return c.SendStatus(fiber.StatusNoContent)
		}
		return handler(c)
	}
}
