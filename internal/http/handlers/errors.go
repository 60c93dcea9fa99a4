package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/validate"
)

const internalMessage = "Something went wrong. Please try again."

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindInsufficientStock, domain.KindInsufficientReserved:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict:
		return fiber.StatusConflict
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error as {"error": message}. Internal errors are
// logged with their detail and answered with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	msg := err.Error()
	switch {
	case code >= fiber.StatusInternalServerError:
		applog.Error(c, "server.error", err, nil)
		msg = internalMessage
	case domain.KindOf(err) != domain.KindInternal:
		applog.Info(c, "request.rejected", map[string]any{"kind": domain.KindOf(err).String(), "reason": msg})
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// bind decodes a JSON body into out and validates it.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.Validationf("malformed request body")
	}
	return validate.Struct(out)
}

func userID(c *fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if uid, ok := c.Locals("user_id").(string); ok {
		return uid
	}
	return ""
}
