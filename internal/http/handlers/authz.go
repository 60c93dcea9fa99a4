package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/services"
)

const APIKeyHeader = "X-API-Key"

// RequireAPIKey authenticates the caller and stores the key's user as the
// acting user for the request.
func RequireAPIKey(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(APIKeyHeader)
		if raw == "" {
			applog.Security(c, "auth.apikey.missing", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing API key"})
		}
		k, err := auth.Authenticate(c.UserContext(), raw)
		if err != nil {
			id, _, _ := strings.Cut(raw, ".")
			applog.Security(c, "auth.apikey.invalid", map[string]any{"key_id": id})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API key"})
		}
		c.Locals("user_id", k.UserID)
		c.Locals("api_key", k)
		return c.Next()
	}
}

// RequireAdmin must run after RequireAPIKey.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		k, ok := c.Locals("api_key").(*domain.APIKey)
		if !ok || k.Role != domain.RoleAdmin {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		return c.Next()
	}
}
