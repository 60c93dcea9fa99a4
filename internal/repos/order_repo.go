package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ferremas/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, code, customer_id, branch_id, salesperson_id, channel, delivery_method,
	delivery_address, delivery_city, delivery_region, comments, status, subtotal, discount,
	taxes, shipping_cost, total, currency_id, priority, ordered_at, estimated_delivery`

const orderLineColumns = `id, order_id, line_no, product_id, quantity, unit_price, discount, tax, subtotal, status`

type OrderFilter struct {
	Status     domain.OrderStatus
	CustomerID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ---------- Writes (always inside a transaction) ----------

func (r *OrderRepo) Insert(ctx context.Context, q Querier, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES (:id, :code, :customer_id, :branch_id, :salesperson_id, :channel, :delivery_method,
		        :delivery_address, :delivery_city, :delivery_region, :comments, :status, :subtotal, :discount,
		        :taxes, :shipping_cost, :total, :currency_id, :priority, :ordered_at, :estimated_delivery)`, o)
	return translate(err)
}

func (r *OrderRepo) InsertLine(ctx context.Context, q Querier, l *domain.OrderLine) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO order_lines(`+orderLineColumns+`)
		VALUES (:id, :order_id, :line_no, :product_id, :quantity, :unit_price, :discount, :tax, :subtotal, :status)`, l)
	return err
}

func (r *OrderRepo) SetStatus(ctx context.Context, q Querier, id string, status domain.OrderStatus) error {
	_, err := q.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *OrderRepo) AppendHistory(ctx context.Context, q Querier, h *domain.StatusChange) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if err := sqlx.GetContext(ctx, q, &h.Seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM order_status_history WHERE order_id = ?`, h.OrderID); err != nil {
		return err
	}
	h.ChangedAt = now()
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO order_status_history(id, order_id, seq, previous_status, new_status, user_id, comment, changed_at)
		VALUES (:id, :order_id, :seq, :previous_status, :new_status, :user_id, :comment, :changed_at)`, h)
	return err
}

// ---------- Reads ----------

// Get returns sql.ErrNoRows when the order does not exist.
func (r *OrderRepo) Get(ctx context.Context, q Querier, id string) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return o, err
}

// Lock reads the order header holding its row lock (MySQL).
func (r *OrderRepo) Lock(ctx context.Context, q Querier, id string) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, `SELECT `+orderColumns+` FROM orders WHERE id = ?`+forUpdate(q), id)
	return o, err
}

func (r *OrderRepo) Lines(ctx context.Context, q Querier, orderID string) ([]domain.OrderLine, error) {
	rows := []domain.OrderLine{}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+orderLineColumns+` FROM order_lines WHERE order_id = ? ORDER BY line_no`, orderID)
	return rows, err
}

func (r *OrderRepo) Exists(ctx context.Context, q Querier, id string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM orders WHERE id = ?`, id)
	return n > 0, err
}

// List returns one page of orders, newest first, and the unpaged total.
func (r *OrderRepo) List(ctx context.Context, q Querier, f OrderFilter) ([]domain.Order, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.From != nil {
		where = append(where, "ordered_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "ordered_at <= ?")
		args = append(args, f.To.UTC())
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM orders`+cond, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	rows := []domain.Order{}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+orderColumns+` FROM orders`+cond+` ORDER BY ordered_at DESC, code DESC LIMIT ? OFFSET ?`,
		append(args, limit, f.Offset)...)
	return rows, total, err
}

func (r *OrderRepo) History(ctx context.Context, q Querier, orderID string) ([]domain.StatusChange, error) {
	rows := []domain.StatusChange{}
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, order_id, seq, previous_status, new_status, user_id, comment, changed_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY seq`, orderID)
	return rows, err
}

// CodesWithPrefix returns every order code starting with prefix.
func (r *OrderRepo) CodesWithPrefix(ctx context.Context, q Querier, prefix string) ([]string, error) {
	codes := []string{}
	err := sqlx.SelectContext(ctx, q, &codes, `SELECT code FROM orders WHERE code LIKE ?`, prefix+"%")
	return codes, err
}
