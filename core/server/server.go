package server

import (
	"time"

	"leobook/core/logger"
	"leobook/core/middleware"
	syncengine "leobook/core/sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New builds the read-only status application. The surface never mutates
// the engine; it reports what the orchestrator and watermark map already
// know. Everything except the health probe sits behind the API key.
func New(cfg Config, orch *syncengine.Orchestrator, marks *syncengine.Watermarks, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	app.Use(middleware.RayID())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(log, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(middleware.Auth(cfg.ApiKey, log))

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(orch.Status())
	})

	app.Get("/watermarks/:table", func(c *fiber.Ctx) error {
		table := c.Params("table")
		snapshot := marks.Snapshot(table)
		return c.JSON(fiber.Map{
			"table":      table,
			"count":      len(snapshot),
			"watermarks": snapshot,
		})
	})

	return app
}
