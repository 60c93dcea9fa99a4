package domain

import "math"

type MovementType string

const (
	MovementInbound    MovementType = "Entrada"
	MovementOutbound   MovementType = "Salida"
	MovementAdjustment MovementType = "Ajuste"
	MovementReserve    MovementType = "Reserva"
	MovementRelease    MovementType = "LiberacionReserva"
	MovementTransfer   MovementType = "Transferencia"
)

var movementTypes = map[MovementType]bool{
	MovementInbound:    true,
	MovementOutbound:   true,
	MovementAdjustment: true,
	MovementReserve:    true,
	MovementRelease:    true,
	MovementTransfer:   true,
}

func (t MovementType) Valid() bool { return movementTypes[t] }

// MaxUnits bounds every stock counter and movement quantity; the columns
// holding them are 32-bit integers.
const MaxUnits = math.MaxInt32

// ValidateMovement checks the parts of a movement that do not depend on stock.
func ValidateMovement(t MovementType, q int) error {
	if !t.Valid() {
		return Validationf("unknown movement type %q", string(t))
	}
	if q <= 0 {
		return Validationf("movement quantity must be a positive integer, got %d", q)
	}
	if q > MaxUnits {
		return Validationf("movement quantity %d exceeds the limit of %d units", q, MaxUnits)
	}
	return nil
}

// Counters are the two stock figures a movement can change.
type Counters struct {
	Current  int `json:"Stock_Actual"`
	Reserved int `json:"Stock_Reservado"`
}

// ApplyMovement returns the counters after a movement of type t and quantity q.
// For transfers only the origin side is computed; the destination receives an
// Entrada of the same quantity.
func ApplyMovement(c Counters, t MovementType, q int) (Counters, error) {
	if err := ValidateMovement(t, q); err != nil {
		return c, err
	}
	next, err := applyMovement(c, t, q)
	if err != nil {
		return c, err
	}
	if next.Current > MaxUnits || next.Reserved > MaxUnits {
		return c, Validationf("%s of %d would take stock past the limit of %d units", t, q, MaxUnits)
	}
	return next, nil
}

func applyMovement(c Counters, t MovementType, q int) (Counters, error) {
	switch t {
	case MovementInbound:
		return Counters{Current: c.Current + q, Reserved: c.Reserved}, nil
	case MovementOutbound:
		if c.Current < q {
			return c, InsufficientStockf("insufficient stock to complete outbound movement: requested %d, available %d", q, c.Current)
		}
		return Counters{Current: c.Current - q, Reserved: c.Reserved}, nil
	case MovementAdjustment:
		return Counters{Current: q, Reserved: c.Reserved}, nil
	case MovementReserve:
		if c.Current < q {
			return c, InsufficientStockf("insufficient stock to reserve: requested %d, available %d", q, c.Current)
		}
		return Counters{Current: c.Current - q, Reserved: c.Reserved + q}, nil
	case MovementRelease:
		if c.Reserved < q {
			return c, InsufficientReservedf("insufficient reserved stock to release: requested %d, reserved %d", q, c.Reserved)
		}
		return Counters{Current: c.Current + q, Reserved: c.Reserved - q}, nil
	default: // MovementTransfer
		if c.Current < q {
			return c, InsufficientStockf("insufficient stock to transfer: requested %d, available %d", q, c.Current)
		}
		return Counters{Current: c.Current - q, Reserved: c.Reserved}, nil
	}
}

// Replay folds a ledger, in sequence order, starting from zero counters.
// Transfer entries on the receiving side are stored as Entrada, so every
// entry here applies to the same record.
func Replay(movements []Movement) (Counters, error) {
	var c Counters
	for _, m := range movements {
		next, err := ApplyMovement(c, m.Type, m.Quantity)
		if err != nil {
			return c, err
		}
		c = next
	}
	return c, nil
}
