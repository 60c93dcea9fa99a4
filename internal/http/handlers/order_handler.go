package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ferremas/internal/domain"
	applog "ferremas/internal/log"
	"ferremas/internal/services"
	"ferremas/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

type orderLineRequest struct {
	ProductID string          `json:"ID_Producto" validate:"required,resid"`
	Quantity  int             `json:"Cantidad" validate:"gt=0,lte=2147483647"`
	Discount  decimal.Decimal `json:"Descuento"`
}

type createOrderRequest struct {
	Code            string             `json:"Codigo_Pedido" validate:"omitempty,max=20,resid"`
	CustomerID      string             `json:"ID_Cliente" validate:"required,resid"`
	BranchID        string             `json:"ID_Sucursal" validate:"required,resid"`
	SalespersonID   *string            `json:"ID_Vendedor" validate:"omitempty,resid"`
	Channel         string             `json:"Canal" validate:"omitempty,oneof=Online Fisico"`
	DeliveryMethod  string             `json:"Metodo_Entrega" validate:"omitempty,oneof=Retiro_Tienda Despacho_Domicilio"`
	DeliveryAddress *string            `json:"Direccion_Entrega" validate:"omitempty,max=255"`
	DeliveryCity    *string            `json:"Ciudad_Entrega" validate:"omitempty,max=100"`
	DeliveryRegion  *string            `json:"Region_Entrega" validate:"omitempty,max=100"`
	Comments        *string            `json:"Comentarios" validate:"omitempty,max=500"`
	CurrencyID      string             `json:"ID_Divisa" validate:"omitempty,max=10"`
	Priority        string             `json:"Prioridad" validate:"omitempty,oneof=Baja Normal Alta Urgente"`
	ShippingCost    decimal.Decimal    `json:"Costo_Envio"`
	UserID          string             `json:"ID_Usuario" validate:"omitempty,resid"`
	Lines           []orderLineRequest `json:"detalles" validate:"required,min=1,dive"`
}

type cancelOrderRequest struct {
	UserID  string  `json:"ID_Usuario" validate:"omitempty,resid"`
	Comment *string `json:"Comentario" validate:"omitempty,max=500"`
}

type statusRequest struct {
	Status  string  `json:"Estado" validate:"required,orderstatus"`
	UserID  string  `json:"ID_Usuario" validate:"omitempty,resid"`
	Comment *string `json:"Comentario" validate:"omitempty,max=500"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := services.CreateOrderInput{
		Code:            req.Code,
		CustomerID:      req.CustomerID,
		BranchID:        req.BranchID,
		SalespersonID:   req.SalespersonID,
		Channel:         req.Channel,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCity:    req.DeliveryCity,
		DeliveryRegion:  req.DeliveryRegion,
		Comments:        req.Comments,
		CurrencyID:      req.CurrencyID,
		Priority:        req.Priority,
		ShippingCost:    req.ShippingCost,
		UserID:          userID(c, req.UserID),
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, services.OrderLineInput{ProductID: l.ProductID, Quantity: l.Quantity, Discount: l.Discount})
	}

	o, err := h.Orders.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "order.create", map[string]any{
		"order_id": o.ID,
		"code":     o.Code,
		"branch":   o.BranchID,
		"lines":    len(o.Lines),
		"total":    o.Total.StringFixed(2),
	})
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	from, err := validate.Date(c.Query("from"), false)
	if err != nil {
		return err
	}
	to, err := validate.Date(c.Query("to"), true)
	if err != nil {
		return err
	}
	page, err := h.Orders.List(c.UserContext(), services.OrderQuery{
		Status:     c.Query("status"),
		CustomerID: c.Query("customerId"),
		From:       from,
		To:         to,
		Page:       validate.PositiveInt(c.Query("page"), 1),
		Limit:      validate.PositiveInt(c.Query("limit"), 20),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	o, err := h.Orders.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(o)
}

func (h *OrderHandler) History(c *fiber.Ctx) error {
	rows, err := h.Orders.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *OrderHandler) Movements(c *fiber.Ctx) error {
	rows, err := h.Orders.Movements(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	var req cancelOrderRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	id := c.Params("id")
	o, err := h.Orders.Cancel(c.UserContext(), id, userID(c, req.UserID), req.Comment)
	if err != nil {
		return err
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": id, "code": o.Code})
	return c.JSON(o)
}

func (h *OrderHandler) ChangeStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	o, changed, err := h.Orders.ChangeStatus(c.UserContext(), id, domain.OrderStatus(req.Status), userID(c, req.UserID), req.Comment)
	if err != nil {
		return err
	}
	if changed {
		applog.Audit(c, "order.status", map[string]any{"order_id": id, "status": req.Status})
	}
	return c.JSON(o)
}
