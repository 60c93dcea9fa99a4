package handlers

import (
	"github.com/gofiber/fiber/v2"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/services"
)

// KeyHandler lets administrators issue and revoke API keys.
type KeyHandler struct {
	Auth *services.AuthService
}

type issueKeyRequest struct {
	UserID string `json:"ID_Usuario" validate:"required,resid"`
	Name   string `json:"Nombre" validate:"required,max=100"`
	Role   string `json:"Rol" validate:"omitempty,oneof=OPERATOR ADMIN"`
}

// Issue returns the raw key once; only its hash is kept.
func (h *KeyHandler) Issue(c *fiber.Ctx) error {
	var req issueKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, k, err := h.Auth.Issue(c.UserContext(), req.UserID, req.Name, req.Role)
	if err != nil {
		return err
	}
	applog.Audit(c, "auth.apikey.issue", map[string]any{"key_id": k.ID, "key_user": k.UserID, "role": k.Role})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         k.ID,
		"key":        raw,
		"ID_Usuario": k.UserID,
		"Nombre":     k.Name,
		"Rol":        k.Role,
	})
}

func (h *KeyHandler) Revoke(c *fiber.Ctx) error {
	id := c.Params("id")
	if cur, ok := c.Locals("api_key").(*domain.APIKey); ok && cur.ID == id {
		return domain.Validationf("a key cannot revoke itself")
	}
	if err := h.Auth.Revoke(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "auth.apikey.revoke", map[string]any{"key_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
