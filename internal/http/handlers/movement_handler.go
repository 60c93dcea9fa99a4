package handlers

import (
	"github.com/gofiber/fiber/v2"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/services"
	"ferremas/internal/validate"
)

type MovementHandler struct {
	Moves *services.MovementService
}

type movementRequest struct {
	Type                string  `json:"Tipo_Movimiento" validate:"required,movtype"`
	Quantity            int     `json:"Cantidad" validate:"gt=0,lte=2147483647"`
	OrderID             *string `json:"ID_Pedido" validate:"omitempty,resid"`
	ReturnID            *string `json:"ID_Devolucion" validate:"omitempty,resid"`
	KeeperID            *string `json:"ID_Bodeguero" validate:"omitempty,resid"`
	Comment             *string `json:"Comentario" validate:"omitempty,max=500"`
	DestinationBranchID *string `json:"ID_Sucursal_Destino" validate:"omitempty,resid"`
}

// Record applies a movement to the record in the path.
func (h *MovementHandler) Record(c *fiber.Ctx) error {
	var req movementRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	res, err := h.Moves.Record(c.UserContext(), id, services.MovementRequest{
		Type:                domain.MovementType(req.Type),
		Quantity:            req.Quantity,
		OrderID:             req.OrderID,
		ReturnID:            req.ReturnID,
		KeeperID:            req.KeeperID,
		Comment:             req.Comment,
		DestinationBranchID: req.DestinationBranchID,
	})
	if err != nil {
		return err
	}

	fields := map[string]any{
		"inventory_id": id,
		"movement_id":  res.MovementID,
		"type":         req.Type,
		"qty":          req.Quantity,
		"stock":        res.NewStock,
		"reserved":     res.NewReserved,
	}
	if res.Destination != nil {
		fields["destination_inventory_id"] = res.Destination.InventoryID
	}
	applog.Audit(c, "inventory.movement", fields)
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *MovementHandler) ForRecord(c *fiber.Ctx) error {
	rows, err := h.Moves.ForRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *MovementHandler) Audit(c *fiber.Ctx) error {
	a, err := h.Moves.Audit(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !a.Consistent {
		applog.Security(c, "inventory.ledger.mismatch", map[string]any{"inventory_id": a.InventoryID})
	}
	return c.JSON(a)
}

// Query lists movements by type and date range (from/to, inclusive).
func (h *MovementHandler) Query(c *fiber.Ctx) error {
	from, err := validate.Date(c.Query("from"), false)
	if err != nil {
		return err
	}
	to, err := validate.Date(c.Query("to"), true)
	if err != nil {
		return err
	}
	rows, err := h.Moves.Query(c.UserContext(), services.MovementQuery{
		Type:  c.Query("type"),
		From:  from,
		To:    to,
		Limit: validate.PositiveInt(c.Query("limit"), 100),
	})
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *MovementHandler) Get(c *fiber.Ctx) error {
	m, err := h.Moves.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(m)
}
