package domain

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pendiente"
	StatusApproved  OrderStatus = "Aprobado"
	StatusPreparing OrderStatus = "En_Preparacion"
	StatusReady     OrderStatus = "Listo_Para_Entrega"
	StatusInTransit OrderStatus = "En_Ruta"
	StatusDelivered OrderStatus = "Entregado"
	StatusCancelled OrderStatus = "Cancelado"
	StatusReturned  OrderStatus = "Devuelto"
)

// position along the main fulfilment chain; alternates are absent.
var chain = map[OrderStatus]int{
	StatusPending:   1,
	StatusApproved:  2,
	StatusPreparing: 3,
	StatusReady:     4,
	StatusInTransit: 5,
	StatusDelivered: 6,
}

func (s OrderStatus) Valid() bool {
	return chain[s] > 0 || s == StatusCancelled || s == StatusReturned
}

// Cancellable reports whether reservations for an order in this status may
// still be released. Cancelado and Devuelto reached from such a status both
// release them.
func (s OrderStatus) Cancellable() bool {
	return s != StatusCancelled && s != StatusDelivered && s != StatusReturned
}

// CheckStatusChange validates a transition. A change to the same status is
// allowed; callers treat it as a no-op.
func CheckStatusChange(from, to OrderStatus) error {
	if !to.Valid() {
		return Validationf("unknown order status %q", string(to))
	}
	if from == to {
		return nil
	}
	switch to {
	case StatusCancelled:
		if !from.Cancellable() {
			return Validationf("order in status %s cannot be cancelled", from)
		}
		return nil
	case StatusReturned:
		if !from.Cancellable() && from != StatusDelivered {
			return Validationf("order in status %s cannot be returned", from)
		}
		return nil
	}
	if chain[from] == 0 || chain[to] <= chain[from] {
		return Validationf("status change from %s to %s is not allowed", from, to)
	}
	return nil
}

const (
	ChannelOnline   = "Online"
	ChannelInStore  = "Fisico"
	DeliveryPickup  = "Retiro_Tienda"
	DeliveryShipped = "Despacho_Domicilio"

	PriorityLow    = "Baja"
	PriorityNormal = "Normal"
	PriorityHigh   = "Alta"
	PriorityUrgent = "Urgente"

	LinePending = "Pendiente"
)
