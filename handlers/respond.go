// handlers/respond.go
package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindConflict, services.KindInsufficientFunds:
		return fiber.StatusBadRequest
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler is the app-wide fiber error handler. Domain errors become
// {"error": code, "message": ...} plus their details; anything else is logged
// and answered with a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr, ok := services.AsAppError(err); ok {
			body := fiber.Map{"error": appErr.Code}
			if appErr.Message != "" {
				body["message"] = appErr.Message
			}
			for k, v := range appErr.Details {
				body[k] = v
			}
			return c.Status(statusFor(appErr.Kind)).JSON(body)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := strings.ReplaceAll(strings.ToLower(utils.StatusMessage(fe.Code)), " ", "_")
			return c.Status(fe.Code).JSON(fiber.Map{"error": code, "message": fe.Message})
		}

		log.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(c *fiber.Ctx, v interface{}) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := c.App().Config().JSONDecoder(body, v); err != nil {
		return services.ValidationError("invalid_body", "request body is not valid JSON")
	}
	return nil
}

// parseAsOf accepts YYYY-MM-DD or RFC 3339; empty means now.
func parseAsOf(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, services.ValidationError("invalid_as_of", "as_of must be YYYY-MM-DD or RFC 3339")
	}
	return t.Add(12 * time.Hour), nil
}
