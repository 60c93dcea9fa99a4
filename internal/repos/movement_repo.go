package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ferremas/internal/domain"
)

const InitialStockComment = "initial stock registration"

type MovementRepo struct{ db *sqlx.DB }

func NewMovementRepo(db *sqlx.DB) *MovementRepo { return &MovementRepo{db: db} }

const movementColumns = `id, inventory_id, seq, type, quantity, created_at,
	order_id, return_id, keeper_id, comment, destination_branch_id`

type MovementFilter struct {
	InventoryID string
	Type        domain.MovementType
	From        *time.Time
	To          *time.Time
	Limit       int
}

// Append assigns the next per-record sequence number and stores the movement.
// It must run in the transaction that holds the record's lock.
func (r *MovementRepo) Append(ctx context.Context, q Querier, m *domain.Movement) error {
	var seq int
	if err := sqlx.GetContext(ctx, q, &seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM movements WHERE inventory_id = ?`, m.InventoryID); err != nil {
		return err
	}
	m.Seq = seq
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now()
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO movements(`+movementColumns+`)
		VALUES (:id, :inventory_id, :seq, :type, :quantity, :created_at,
		        :order_id, :return_id, :keeper_id, :comment, :destination_branch_id)`, m)
	return translate(err)
}

func (r *MovementRepo) Get(ctx context.Context, q Querier, id string) (domain.Movement, error) {
	var m domain.Movement
	err := sqlx.GetContext(ctx, q, &m, `SELECT `+movementColumns+` FROM movements WHERE id = ?`, id)
	return m, err
}

// Ledger returns a record's movements in sequence order.
func (r *MovementRepo) Ledger(ctx context.Context, q Querier, inventoryID string) ([]domain.Movement, error) {
	rows := []domain.Movement{}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+movementColumns+` FROM movements WHERE inventory_id = ? ORDER BY seq`, inventoryID)
	return rows, err
}

// Query lists movements newest first.
func (r *MovementRepo) Query(ctx context.Context, q Querier, f MovementFilter) ([]domain.Movement, error) {
	var (
		where []string
		args  []any
	)
	if f.InventoryID != "" {
		where = append(where, "inventory_id = ?")
		args = append(args, f.InventoryID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	query := `SELECT ` + movementColumns + ` FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows := []domain.Movement{}
	err := sqlx.SelectContext(ctx, q, &rows, query, args...)
	return rows, err
}

func (r *MovementRepo) Count(ctx context.Context, q Querier, inventoryID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM movements WHERE inventory_id = ?`, inventoryID)
	return n, err
}

// ByOrder returns the movements tagged with an order, in write order.
func (r *MovementRepo) ByOrder(ctx context.Context, q Querier, orderID string) ([]domain.Movement, error) {
	rows := []domain.Movement{}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+movementColumns+` FROM movements WHERE order_id = ? ORDER BY created_at, seq`, orderID)
	return rows, err
}

func (r *MovementRepo) DeleteByInventory(ctx context.Context, q Querier, inventoryID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM movements WHERE inventory_id = ?`, inventoryID)
	return err
}
