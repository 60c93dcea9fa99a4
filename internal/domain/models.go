package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductActive       = "Activo"
	ProductInactive     = "Inactivo"
	ProductDiscontinued = "Descontinuado"
)

type Product struct {
	ID      string          `db:"id" json:"ID_Producto"`
	Code    string          `db:"code" json:"Codigo"`
	Name    string          `db:"name" json:"Nombre"`
	Price   decimal.Decimal `db:"price" json:"Precio_Venta"`
	TaxRate decimal.Decimal `db:"tax_rate" json:"Tasa_Impuesto"`
	Status  string          `db:"status" json:"Estado"`
}

type Branch struct {
	ID     string `db:"id" json:"ID_Sucursal"`
	Name   string `db:"name" json:"Nombre"`
	City   string `db:"city" json:"Ciudad"`
	Region string `db:"region" json:"Region"`
	Active bool   `db:"active" json:"Activa"`
}

// InventoryRecord is the stock position of one product at one branch.
// CurrentStock and ReservedStock are only written through movements.
type InventoryRecord struct {
	ID                string    `db:"id" json:"ID_Inventario"`
	ProductID         string    `db:"product_id" json:"ID_Producto"`
	BranchID          string    `db:"branch_id" json:"ID_Sucursal"`
	CurrentStock      int       `db:"current_stock" json:"Stock_Actual"`
	ReservedStock     int       `db:"reserved_stock" json:"Stock_Reservado"`
	MinimumStock      int       `db:"minimum_stock" json:"Stock_Minimo"`
	MaximumStock      *int      `db:"maximum_stock" json:"Stock_Maximo,omitempty"`
	ReorderPoint      *int      `db:"reorder_point" json:"Punto_Reorden,omitempty"`
	WarehouseLocation *string   `db:"warehouse_location" json:"Ubicacion_Bodega,omitempty"`
	KeeperID          *string   `db:"keeper_id" json:"ID_Bodeguero,omitempty"`
	LastUpdated       time.Time `db:"last_updated" json:"Ultima_Actualizacion"`
}

func (r InventoryRecord) Counters() Counters {
	return Counters{Current: r.CurrentStock, Reserved: r.ReservedStock}
}

type Movement struct {
	ID                  string       `db:"id" json:"ID_Movimiento"`
	InventoryID         string       `db:"inventory_id" json:"ID_Inventario"`
	Seq                 int          `db:"seq" json:"Secuencia"`
	Type                MovementType `db:"type" json:"Tipo_Movimiento"`
	Quantity            int          `db:"quantity" json:"Cantidad"`
	CreatedAt           time.Time    `db:"created_at" json:"Fecha_Movimiento"`
	OrderID             *string      `db:"order_id" json:"ID_Pedido,omitempty"`
	ReturnID            *string      `db:"return_id" json:"ID_Devolucion,omitempty"`
	KeeperID            *string      `db:"keeper_id" json:"ID_Bodeguero,omitempty"`
	Comment             *string      `db:"comment" json:"Comentario,omitempty"`
	DestinationBranchID *string      `db:"destination_branch_id" json:"ID_Sucursal_Destino,omitempty"`
}

type Order struct {
	ID                string          `db:"id" json:"ID_Pedido"`
	Code              string          `db:"code" json:"Codigo_Pedido"`
	CustomerID        string          `db:"customer_id" json:"ID_Cliente"`
	BranchID          string          `db:"branch_id" json:"ID_Sucursal"`
	SalespersonID     *string         `db:"salesperson_id" json:"ID_Vendedor,omitempty"`
	Channel           string          `db:"channel" json:"Canal"`
	DeliveryMethod    string          `db:"delivery_method" json:"Metodo_Entrega"`
	DeliveryAddress   *string         `db:"delivery_address" json:"Direccion_Entrega,omitempty"`
	DeliveryCity      *string         `db:"delivery_city" json:"Ciudad_Entrega,omitempty"`
	DeliveryRegion    *string         `db:"delivery_region" json:"Region_Entrega,omitempty"`
	Comments          *string         `db:"comments" json:"Comentarios,omitempty"`
	Status            OrderStatus     `db:"status" json:"Estado"`
	Subtotal          decimal.Decimal `db:"subtotal" json:"Subtotal"`
	Discount          decimal.Decimal `db:"discount" json:"Descuento"`
	Taxes             decimal.Decimal `db:"taxes" json:"Impuestos"`
	ShippingCost      decimal.Decimal `db:"shipping_cost" json:"Costo_Envio"`
	Total             decimal.Decimal `db:"total" json:"Total"`
	CurrencyID        string          `db:"currency_id" json:"ID_Divisa"`
	Priority          string          `db:"priority" json:"Prioridad"`
	OrderedAt         time.Time       `db:"ordered_at" json:"Fecha_Pedido"`
	EstimatedDelivery time.Time       `db:"estimated_delivery" json:"Fecha_Estimada_Entrega"`
	Lines             []OrderLine     `db:"-" json:"detalles,omitempty"`
}

type OrderLine struct {
	ID        string          `db:"id" json:"ID_Detalle"`
	OrderID   string          `db:"order_id" json:"ID_Pedido"`
	LineNo    int             `db:"line_no" json:"Linea"`
	ProductID string          `db:"product_id" json:"ID_Producto"`
	Quantity  int             `db:"quantity" json:"Cantidad"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"Precio_Unitario"`
	Discount  decimal.Decimal `db:"discount" json:"Descuento"`
	Tax       decimal.Decimal `db:"tax" json:"Impuesto"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"Subtotal"`
	Status    string          `db:"status" json:"Estado"`
}

// StatusChange is one row of an order's status history. Previous is nil
// for the entry written when the order is created.
type StatusChange struct {
	ID        string       `db:"id" json:"ID_Historico"`
	OrderID   string       `db:"order_id" json:"ID_Pedido"`
	Seq       int          `db:"seq" json:"Secuencia"`
	Previous  *OrderStatus `db:"previous_status" json:"Estado_Anterior"`
	Next      OrderStatus  `db:"new_status" json:"Estado_Nuevo"`
	UserID    string       `db:"user_id" json:"ID_Usuario"`
	Comment   *string      `db:"comment" json:"Comentario,omitempty"`
	ChangedAt time.Time    `db:"changed_at" json:"Fecha_Cambio"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

// LedgerAudit compares a record's live counters with a replay of its movements.
type LedgerAudit struct {
	InventoryID string   `json:"ID_Inventario"`
	Live        Counters `json:"live"`
	Replayed    Counters `json:"replayed"`
	Movements   int      `json:"movements"`
	Consistent  bool     `json:"consistent"`
}
