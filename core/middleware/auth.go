package middleware

import (
	"crypto/subtle"

	"leobook/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Auth validates the X-API-Key header against the configured key. An empty
// configured key locks the protected routes entirely rather than opening
// them: the status surface exposes sync internals.
func Auth(apiKey string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplied := c.Get("X-API-Key")
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
			logger.WithRayID(log, c).Warn("Unauthorized request",
				zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing API key",
			})
		}
		return c.Next()
	}
}
