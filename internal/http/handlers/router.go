package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"ferremas/internal/config"
	applog "ferremas/internal/log"
)

// NewApp builds the HTTP application with middleware and every API route.
func NewApp(d *Deps, cfg config.Config) *fiber.App {
	bodyLimit := cfg.BodyLimitBytes
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	app := fiber.New(fiber.Config{
		AppName:      "ferremas",
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(helmet.New())
	if cfg.RateLimitPerMin > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMin,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/healthz"
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.global.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	// ---------- API ----------
	api := app.Group("/api/v1")
	adminOnly := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.APIKeyAuth {
		api.Use(RequireAPIKey(d.Auth))
		adminOnly = RequireAdmin()
	}

	availLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/availability", availLimiter, d.InventoryHandler.Check)

	// Inventory records
	api.Get("/inventory", d.InventoryHandler.List)
	api.Get("/inventory/stock", d.InventoryHandler.Find)
	api.Get("/inventory/:id", d.InventoryHandler.Get)
	api.Post("/inventory", d.InventoryHandler.Create)
	api.Patch("/inventory/:id", d.InventoryHandler.Update)
	api.Delete("/inventory/:id", adminOnly, d.InventoryHandler.Delete)

	// Movements
	api.Post("/inventory/:id/movement", d.MovementHandler.Record)
	api.Get("/inventory/:id/movements", d.MovementHandler.ForRecord)
	api.Get("/inventory/:id/audit", d.MovementHandler.Audit)
	api.Get("/movements", d.MovementHandler.Query)
	api.Get("/movements/:id", d.MovementHandler.Get)

	// Orders
	api.Post("/orders", d.OrderHandler.Create)
	api.Get("/orders", d.OrderHandler.List)
	api.Get("/orders/:id", d.OrderHandler.Get)
	api.Get("/orders/:id/history", d.OrderHandler.History)
	api.Post("/orders/:id/cancel", d.OrderHandler.Cancel)
	api.Patch("/orders/:id/status", d.OrderHandler.ChangeStatus)
	api.Get("/orders/:id/movements", d.OrderHandler.Movements)

	// API keys
	api.Post("/admin/keys", adminOnly, d.KeyHandler.Issue)
	api.Delete("/admin/keys/:id", adminOnly, d.KeyHandler.Revoke)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource not found"})
	})
	return app
}
