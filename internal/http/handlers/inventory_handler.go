package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/repos"
	"ferremas/internal/services"
	"ferremas/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type createInventoryRequest struct {
	ProductID         string  `json:"ID_Producto" validate:"required,resid"`
	BranchID          string  `json:"ID_Sucursal" validate:"required,resid"`
	CurrentStock      int     `json:"Stock_Actual" validate:"gte=0,lte=2147483647"`
	ReservedStock     *int    `json:"Stock_Reservado"`
	MinimumStock      int     `json:"Stock_Minimo" validate:"gte=0"`
	MaximumStock      *int    `json:"Stock_Maximo" validate:"omitempty,gte=0"`
	ReorderPoint      *int    `json:"Punto_Reorden" validate:"omitempty,gte=0"`
	WarehouseLocation *string `json:"Ubicacion_Bodega" validate:"omitempty,max=100"`
	KeeperID          *string `json:"ID_Bodeguero" validate:"omitempty,resid"`
}

type updateInventoryRequest struct {
	// Present only to reject them; counters change through movements.
	CurrentStock  *int `json:"Stock_Actual"`
	ReservedStock *int `json:"Stock_Reservado"`

	MinimumStock      *int    `json:"Stock_Minimo" validate:"omitempty,gte=0"`
	MaximumStock      *int    `json:"Stock_Maximo" validate:"omitempty,gte=0"`
	ReorderPoint      *int    `json:"Punto_Reorden" validate:"omitempty,gte=0"`
	WarehouseLocation *string `json:"Ubicacion_Bodega" validate:"omitempty,max=100"`
	KeeperID          *string `json:"ID_Bodeguero" validate:"omitempty,resid"`
}

func (h *InventoryHandler) List(c *fiber.Ctx) error {
	f := repos.InventoryFilter{
		BranchID:  strings.TrimSpace(c.Query("branchId")),
		ProductID: strings.TrimSpace(c.Query("productId")),
		LowStock:  c.QueryBool("lowStock", false),
	}
	rows, err := h.Inv.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *InventoryHandler) Find(c *fiber.Ctx) error {
	rec, err := h.Inv.Find(c.UserContext(), strings.TrimSpace(c.Query("productId")), strings.TrimSpace(c.Query("branchId")))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	rec, err := h.Inv.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var req createInventoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.ReservedStock != nil && *req.ReservedStock != 0 {
		return domain.Validationf("Stock_Reservado is managed by order reservations and must start at 0")
	}
	rec, err := h.Inv.Create(c.UserContext(), services.CreateInventoryInput{
		ProductID:         req.ProductID,
		BranchID:          req.BranchID,
		InitialStock:      req.CurrentStock,
		MinimumStock:      req.MinimumStock,
		MaximumStock:      req.MaximumStock,
		ReorderPoint:      req.ReorderPoint,
		WarehouseLocation: req.WarehouseLocation,
		KeeperID:          req.KeeperID,
	})
	if err != nil {
		return err
	}
	applog.Audit(c, "inventory.create", map[string]any{
		"inventory_id": rec.ID,
		"product":      rec.ProductID,
		"branch":       rec.BranchID,
		"stock":        rec.CurrentStock,
	})
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *InventoryHandler) Update(c *fiber.Ctx) error {
	var req updateInventoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CurrentStock != nil || req.ReservedStock != nil {
		applog.Security(c, "inventory.update.counters.block", map[string]any{"inventory_id": c.Params("id")})
		return domain.Validationf("Stock_Actual and Stock_Reservado can only change through movements")
	}
	rec, err := h.Inv.UpdateMetadata(c.UserContext(), c.Params("id"), repos.InventoryMetadata{
		MinimumStock:      req.MinimumStock,
		MaximumStock:      req.MaximumStock,
		ReorderPoint:      req.ReorderPoint,
		WarehouseLocation: req.WarehouseLocation,
		KeeperID:          req.KeeperID,
	})
	if err != nil {
		return err
	}
	applog.Audit(c, "inventory.update", map[string]any{"inventory_id": rec.ID})
	return c.JSON(rec)
}

func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	confirm := c.QueryBool("confirm", false)
	if err := h.Inv.Delete(c.UserContext(), id, confirm); err != nil {
		return err
	}
	applog.Audit(c, "inventory.delete", map[string]any{"inventory_id": id, "confirm": confirm})
	return c.SendStatus(fiber.StatusNoContent)
}

// Check answers availability of a product at a branch.
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Query("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing or invalid productId",
		})
	}
	branchID, ok := validate.ID(c.Query("branchId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing or invalid branchId",
		})
	}

	avail, err := h.Inv.CheckAvailability(c.UserContext(), productID, branchID)
	if err != nil {
		return err
	}
	return c.JSON(avail)
}
