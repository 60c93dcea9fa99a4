package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
)

const (
	deliveryLeadTime = 7 * 24 * time.Hour
	maxCodeAttempts  = 3
)

var reOrderCode = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)

type OrderLineInput struct {
	ProductID string
	Quantity  int
	Discount  decimal.Decimal
}

type CreateOrderInput struct {
	Code            string // generated when empty
	CustomerID      string
	BranchID        string
	SalespersonID   *string
	Channel         string
	DeliveryMethod  string
	DeliveryAddress *string
	DeliveryCity    *string
	DeliveryRegion  *string
	Comments        *string
	CurrencyID      string
	Priority        string
	ShippingCost    decimal.Decimal
	UserID          string // acting user for the history entry; defaults to the customer
	Lines           []OrderLineInput
}

type OrderPage struct {
	Data  []domain.Order `json:"data"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// OrderService owns the order lifecycle and reserves or releases stock
// through the MovementService inside its own transactions.
type OrderService struct {
	db     *sqlx.DB
	Orders *repos.OrderRepo
	Inv    *repos.InventoryRepo
	Moves  *MovementService
	Refs   References
	log    *zap.Logger

	DefaultCurrencyID string
	DefaultTaxRate    decimal.Decimal
}

func NewOrderService(db *sqlx.DB, orders *repos.OrderRepo, inv *repos.InventoryRepo, moves *MovementService, refs References, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:                db,
		Orders:            orders,
		Inv:               inv,
		Moves:             moves,
		Refs:              refs,
		log:               logger,
		DefaultCurrencyID: "CLP",
		DefaultTaxRate:    decimal.NewFromInt(19),
	}
}

// Create validates the order, checks every line against stock and then, in one
// transaction, stores the order and reserves stock for each line. Either all
// lines are reserved or nothing is written.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := s.normalize(&in); err != nil {
		return domain.Order{}, err
	}
	if err := requireExists(ctx, s.Refs.CustomerExists, "customer", in.CustomerID); err != nil {
		return domain.Order{}, err
	}
	branch, err := requireBranch(ctx, s.Refs, in.BranchID)
	if err != nil {
		return domain.Order{}, err
	}
	if !branch.Active {
		return domain.Order{}, domain.Validationf("branch %s is not active", in.BranchID)
	}
	if err := requireExists(ctx, s.Refs.CurrencyExists, "currency", in.CurrencyID); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		Code:            in.Code,
		CustomerID:      in.CustomerID,
		BranchID:        in.BranchID,
		SalespersonID:   nonEmpty(in.SalespersonID),
		Channel:         in.Channel,
		DeliveryMethod:  in.DeliveryMethod,
		DeliveryAddress: nonEmpty(in.DeliveryAddress),
		DeliveryCity:    nonEmpty(in.DeliveryCity),
		DeliveryRegion:  nonEmpty(in.DeliveryRegion),
		Comments:        nonEmpty(in.Comments),
		Status:          domain.StatusPending,
		Discount:        decimal.Zero,
		ShippingCost:    in.ShippingCost,
		CurrencyID:      in.CurrencyID,
		Priority:        in.Priority,
	}

	requested := map[string]int{}
	var productIDs []string
	for i, l := range in.Lines {
		p, err := requireProduct(ctx, s.Refs, l.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if p.Status != domain.ProductActive {
			return domain.Order{}, domain.Validationf("product %s is not available for sale (status %s)", p.ID, p.Status)
		}
		line, err := s.priceLine(p, l)
		if err != nil {
			return domain.Order{}, err
		}
		line.LineNo = i + 1
		order.Lines = append(order.Lines, line)

		if _, ok := requested[p.ID]; !ok {
			productIDs = append(productIDs, p.ID)
		}
		requested[p.ID] += l.Quantity
	}
	order.Subtotal, order.Taxes = decimal.Zero, decimal.Zero
	for _, l := range order.Lines {
		order.Subtotal = order.Subtotal.Add(l.Subtotal.Sub(l.Tax))
		order.Discount = order.Discount.Add(l.Discount)
		order.Taxes = order.Taxes.Add(l.Tax)
	}
	order.Total = order.Subtotal.Add(order.Taxes).Add(order.ShippingCost)

	userID := in.UserID
	if userID == "" {
		userID = in.CustomerID
	}

	for attempt := 1; ; attempt++ {
		err = repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			return s.createTx(ctx, tx, &order, requested, productIDs, userID, in.Code == "")
		})
		// A generated code can collide with a concurrent order; try the next one.
		if in.Code == "" && errors.Is(err, repos.ErrDuplicate) && attempt < maxCodeAttempts {
			order.ID = ""
			continue
		}
		break
	}
	if errors.Is(err, repos.ErrDuplicate) {
		return domain.Order{}, domain.Conflictf("order code %s is already in use", order.Code)
	}
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Debug("order.created",
		zap.String("order_id", order.ID),
		zap.String("code", order.Code),
		zap.String("branch_id", order.BranchID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return s.Get(ctx, order.ID)
}

func (s *OrderService) createTx(ctx context.Context, tx *sqlx.Tx, order *domain.Order, requested map[string]int, productIDs []string, userID string, generateCode bool) error {
	ids, err := s.Inv.IDsByPairs(ctx, tx, productIDs, order.BranchID)
	if err != nil {
		return fmt.Errorf("failed to resolve inventory records: %w", err)
	}
	recordIDs := make([]string, 0, len(productIDs))
	for _, pid := range productIDs {
		id, ok := ids[pid]
		if !ok {
			return domain.InsufficientStockf("insufficient stock for product %s: requested %d, available 0 at branch %s", pid, requested[pid], order.BranchID)
		}
		recordIDs = append(recordIDs, id)
	}

	locked, err := s.Moves.lockInOrder(ctx, tx, recordIDs)
	if err != nil {
		return err
	}
	byProduct := make(map[string]domain.InventoryRecord, len(productIDs))
	for _, pid := range productIDs {
		rec := locked[ids[pid]]
		if rec.CurrentStock < requested[pid] {
			return domain.InsufficientStockf("insufficient stock for product %s: requested %d, available %d", pid, requested[pid], rec.CurrentStock)
		}
		byProduct[pid] = rec
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if generateCode {
		if order.Code, err = s.nextCode(ctx, tx, at); err != nil {
			return err
		}
	}
	order.OrderedAt = at
	order.EstimatedDelivery = order.OrderedAt.Add(deliveryLeadTime)
	if err := s.Orders.Insert(ctx, tx, order); err != nil {
		return err
	}

	reserveNote := "reservation for order " + order.Code
	for i := range order.Lines {
		line := &order.Lines[i]
		line.ID, line.OrderID = "", order.ID
		if err := s.Orders.InsertLine(ctx, tx, line); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
		rec := byProduct[line.ProductID]
		_, next, err := s.Moves.apply(ctx, tx, rec, MovementRequest{
			Type:     domain.MovementReserve,
			Quantity: line.Quantity,
			OrderID:  &order.ID,
			Comment:  &reserveNote,
		})
		if err != nil {
			return err
		}
		rec.CurrentStock, rec.ReservedStock = next.Current, next.Reserved
		byProduct[line.ProductID] = rec
	}

	created := "order created"
	return s.Orders.AppendHistory(ctx, tx, &domain.StatusChange{
		OrderID: order.ID,
		Next:    domain.StatusPending,
		UserID:  userID,
		Comment: &created,
	})
}

// Cancel releases every reservation of the order and marks it Cancelado.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID string, comment *string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, domain.Validationf("acting user is required")
	}
	var prev domain.OrderStatus
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.Cancellable() {
			return domain.Validationf("order %s cannot be cancelled in status %s", o.Code, o.Status)
		}
		prev = o.Status
		return s.releaseTx(ctx, tx, o, domain.StatusCancelled, userID, comment)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Debug("order.cancelled",
		zap.String("order_id", orderID),
		zap.String("previous_status", string(prev)),
		zap.String("user_id", userID),
	)
	return s.Get(ctx, orderID)
}

// releaseTx returns every line's reservation to stock and moves the order to
// target, which is Cancelado or Devuelto.
func (s *OrderService) releaseTx(ctx context.Context, tx *sqlx.Tx, o domain.Order, target domain.OrderStatus, userID string, comment *string) error {
	lines, err := s.Orders.Lines(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	var productIDs []string
	seen := map[string]bool{}
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}
	ids, err := s.Inv.IDsByPairs(ctx, tx, productIDs, o.BranchID)
	if err != nil {
		return err
	}
	recordIDs := make([]string, 0, len(ids))
	for _, pid := range productIDs {
		id, ok := ids[pid]
		if !ok {
			return domain.Conflictf("inventory record for product %s at branch %s no longer exists", pid, o.BranchID)
		}
		recordIDs = append(recordIDs, id)
	}
	locked, err := s.Moves.lockInOrder(ctx, tx, recordIDs)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("reservation released, order %s moved to %s", o.Code, target)
	for _, l := range lines {
		rec := locked[ids[l.ProductID]]
		_, next, err := s.Moves.apply(ctx, tx, rec, MovementRequest{
			Type:     domain.MovementRelease,
			Quantity: l.Quantity,
			OrderID:  &o.ID,
			Comment:  &note,
		})
		if err != nil {
			return err
		}
		rec.CurrentStock, rec.ReservedStock = next.Current, next.Reserved
		locked[rec.ID] = rec
	}

	if err := s.Orders.SetStatus(ctx, tx, o.ID, target); err != nil {
		return err
	}
	if comment == nil || *comment == "" {
		c := fmt.Sprintf("status changed from %s to %s", o.Status, target)
		comment = &c
	}
	prev := o.Status
	return s.Orders.AppendHistory(ctx, tx, &domain.StatusChange{
		OrderID:  o.ID,
		Previous: &prev,
		Next:     target,
		UserID:   userID,
		Comment:  comment,
	})
}

// ChangeStatus moves an order to target. Setting the current status again
// succeeds without writing history; changed reports whether anything happened.
// Cancelado, and Devuelto before delivery, release the order's reservations
// in the same transaction.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, target domain.OrderStatus, userID string, comment *string) (order domain.Order, changed bool, err error) {
	if !target.Valid() {
		return domain.Order{}, false, domain.Validationf("unknown order status %q", string(target))
	}
	if userID == "" {
		return domain.Order{}, false, domain.Validationf("acting user is required")
	}

	var prev domain.OrderStatus
	err = repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		prev = o.Status
		if o.Status == target {
			return nil
		}
		if err := domain.CheckStatusChange(o.Status, target); err != nil {
			return err
		}
		changed = true
		// Orders leaving before delivery give their reservations back.
		if target == domain.StatusCancelled || (target == domain.StatusReturned && o.Status.Cancellable()) {
			return s.releaseTx(ctx, tx, o, target, userID, comment)
		}
		if err := s.Orders.SetStatus(ctx, tx, o.ID, target); err != nil {
			return err
		}
		if comment == nil || *comment == "" {
			c := fmt.Sprintf("status changed from %s to %s", o.Status, target)
			comment = &c
		}
		return s.Orders.AppendHistory(ctx, tx, &domain.StatusChange{
			OrderID:  o.ID,
			Previous: &prev,
			Next:     target,
			UserID:   userID,
			Comment:  comment,
		})
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	if changed {
		s.log.Debug("order.status.changed",
			zap.String("order_id", orderID),
			zap.String("from", string(prev)),
			zap.String("to", string(target)),
			zap.String("user_id", userID),
		)
	}
	order, err = s.Get(ctx, orderID)
	return order, changed, err
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, domain.NotFoundf("order %s not found", id)
	}
	if err != nil {
		return o, err
	}
	if o.Lines, err = s.Orders.Lines(ctx, s.db, id); err != nil {
		return o, err
	}
	return o, nil
}

type OrderQuery struct {
	Status     string
	CustomerID string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

func (s *OrderService) List(ctx context.Context, q OrderQuery) (OrderPage, error) {
	st := domain.OrderStatus(q.Status)
	if st != "" && !st.Valid() {
		return OrderPage{}, domain.Validationf("unknown order status %q", q.Status)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return OrderPage{}, domain.Validationf("date range end precedes its start")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
	rows, total, err := s.Orders.List(ctx, s.db, repos.OrderFilter{
		Status:     st,
		CustomerID: q.CustomerID,
		From:       q.From,
		To:         q.To,
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Data: rows, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *OrderService) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	ok, err := s.Orders.Exists(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("order %s not found", orderID)
	}
	return s.Orders.History(ctx, s.db, orderID)
}

// Movements lists the stock movements written for an order, oldest first.
func (s *OrderService) Movements(ctx context.Context, orderID string) ([]domain.Movement, error) {
	ok, err := s.Orders.Exists(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("order %s not found", orderID)
	}
	return s.Moves.Moves.ByOrder(ctx, s.db, orderID)
}

func (s *OrderService) lockOrder(ctx context.Context, tx *sqlx.Tx, id string) (domain.Order, error) {
	o, err := s.Orders.Lock(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, domain.NotFoundf("order %s not found", id)
	}
	if err != nil {
		return o, fmt.Errorf("failed to lock order %s: %w", id, err)
	}
	return o, nil
}

// normalize applies defaults and rejects malformed input before any lookup.
func (s *OrderService) normalize(in *CreateOrderInput) error {
	if in.CustomerID == "" || in.BranchID == "" {
		return domain.Validationf("customer and branch are required")
	}
	if len(in.Lines) == 0 {
		return domain.Validationf("an order needs at least one line")
	}
	if in.Code != "" && !reOrderCode.MatchString(in.Code) {
		return domain.Validationf("invalid order code %q", in.Code)
	}
	for i, l := range in.Lines {
		if l.ProductID == "" {
			return domain.Validationf("line %d: product is required", i+1)
		}
		if l.Quantity <= 0 {
			return domain.Validationf("line %d: quantity must be a positive integer, got %d", i+1, l.Quantity)
		}
		if l.Quantity > domain.MaxUnits {
			return domain.Validationf("line %d: quantity %d exceeds the limit of %d units", i+1, l.Quantity, domain.MaxUnits)
		}
		if l.Discount.IsNegative() {
			return domain.Validationf("line %d: discount cannot be negative", i+1)
		}
	}
	if in.ShippingCost.IsNegative() {
		return domain.Validationf("shipping cost cannot be negative")
	}

	if in.Channel == "" {
		in.Channel = domain.ChannelOnline
	}
	if in.Channel != domain.ChannelOnline && in.Channel != domain.ChannelInStore {
		return domain.Validationf("unknown channel %q", in.Channel)
	}
	if in.DeliveryMethod == "" {
		in.DeliveryMethod = domain.DeliveryShipped
	}
	if in.DeliveryMethod != domain.DeliveryShipped && in.DeliveryMethod != domain.DeliveryPickup {
		return domain.Validationf("unknown delivery method %q", in.DeliveryMethod)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	switch in.Priority {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent:
	default:
		return domain.Validationf("unknown priority %q", in.Priority)
	}
	if in.CurrencyID == "" {
		in.CurrencyID = s.DefaultCurrencyID
	}
	return nil
}

// priceLine computes net = price*qty - discount, tax = net*rate/100 and
// subtotal = net + tax, rounded to cents.
func (s *OrderService) priceLine(p domain.Product, l OrderLineInput) (domain.OrderLine, error) {
	rate := p.TaxRate
	if rate.IsZero() {
		rate = s.DefaultTaxRate
	}
	net := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.Discount).Round(2)
	if net.IsNegative() {
		return domain.OrderLine{}, domain.Validationf("discount on product %s exceeds the line amount", p.ID)
	}
	tax := net.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	return domain.OrderLine{
		ProductID: p.ID,
		Quantity:  l.Quantity,
		UnitPrice: p.Price,
		Discount:  l.Discount.Round(2),
		Tax:       tax,
		Subtotal:  net.Add(tax),
		Status:    domain.LinePending,
	}, nil
}

// nextCode returns PED + yymmdd (UTC) + a daily sequence of at least three
// digits. Codes with the prefix but a non-numeric suffix are ignored.
func (s *OrderService) nextCode(ctx context.Context, tx *sqlx.Tx, at time.Time) (string, error) {
	prefix := "PED" + at.UTC().Format("060102")
	codes, err := s.Orders.CodesWithPrefix(ctx, tx, prefix)
	if err != nil {
		return "", err
	}
	last := 0
	for _, c := range codes {
		if n, err := strconv.Atoi(c[len(prefix):]); err == nil && n > last {
			last = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, last+1), nil
}
