package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ferremas/internal/domain"
)

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const inventoryColumns = `id, product_id, branch_id, current_stock, reserved_stock, minimum_stock,
	maximum_stock, reorder_point, warehouse_location, keeper_id, last_updated`

type InventoryFilter struct {
	BranchID  string
	ProductID string
	LowStock  bool // current stock at or below the minimum
}

// InventoryMetadata lists the only fields a caller may edit directly.
// Nil means unchanged.
type InventoryMetadata struct {
	MinimumStock      *int
	MaximumStock      *int
	ReorderPoint      *int
	WarehouseLocation *string
	KeeperID          *string
}

func (m InventoryMetadata) Empty() bool {
	return m.MinimumStock == nil && m.MaximumStock == nil && m.ReorderPoint == nil &&
		m.WarehouseLocation == nil && m.KeeperID == nil
}

// Get returns sql.ErrNoRows when the record does not exist.
func (r *InventoryRepo) Get(ctx context.Context, q Querier, id string) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := sqlx.GetContext(ctx, q, &rec, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, id)
	return rec, err
}

// Lock reads the record and, on MySQL, holds its row lock until the
// transaction ends.
func (r *InventoryRepo) Lock(ctx context.Context, q Querier, id string) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := sqlx.GetContext(ctx, q, &rec, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`+forUpdate(q), id)
	return rec, err
}

func (r *InventoryRepo) FindByPair(ctx context.Context, q Querier, productID, branchID string) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := sqlx.GetContext(ctx, q, &rec, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE product_id = ? AND branch_id = ?`, productID, branchID)
	return rec, err
}

// IDsByPairs maps "product|branch" to record id for the pairs that exist.
func (r *InventoryRepo) IDsByPairs(ctx context.Context, q Querier, productIDs []string, branchID string) (map[string]string, error) {
	out := map[string]string{}
	if len(productIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, product_id FROM inventory WHERE branch_id = ? AND product_id IN (?)`, branchID, productIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID        string `db:"id"`
		ProductID string `db:"product_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.ID
	}
	return out, nil
}

func (r *InventoryRepo) List(ctx context.Context, q Querier, f InventoryFilter) ([]domain.InventoryRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, f.BranchID)
	}
	if f.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.LowStock {
		where = append(where, "current_stock <= minimum_stock")
	}
	query := `SELECT ` + inventoryColumns + ` FROM inventory`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY branch_id, product_id"

	rows := []domain.InventoryRecord{}
	err := sqlx.SelectContext(ctx, q, &rows, query, args...)
	return rows, err
}

// Insert stores a new record with zero reserved stock. The caller records
// any initial stock as a movement.
func (r *InventoryRepo) Insert(ctx context.Context, q Querier, rec *domain.InventoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.ReservedStock = 0
	rec.LastUpdated = now()
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO inventory(`+inventoryColumns+`)
		VALUES (:id, :product_id, :branch_id, :current_stock, :reserved_stock, :minimum_stock,
		        :maximum_stock, :reorder_point, :warehouse_location, :keeper_id, :last_updated)`, rec)
	return translate(err)
}

// ApplyCounters is the only statement that writes stock figures.
func (r *InventoryRepo) ApplyCounters(ctx context.Context, q Querier, id string, c domain.Counters) error {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory SET current_stock = ?, reserved_stock = ?, last_updated = ?
		WHERE id = ?`, c.Current, c.Reserved, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update stock counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory record %s vanished during update", id)
	}
	return nil
}

func (r *InventoryRepo) UpdateMetadata(ctx context.Context, q Querier, id string, m InventoryMetadata) error {
	var (
		set  []string
		args []any
	)
	if m.MinimumStock != nil {
		set = append(set, "minimum_stock = ?")
		args = append(args, *m.MinimumStock)
	}
	if m.MaximumStock != nil {
		set = append(set, "maximum_stock = ?")
		args = append(args, *m.MaximumStock)
	}
	if m.ReorderPoint != nil {
		set = append(set, "reorder_point = ?")
		args = append(args, *m.ReorderPoint)
	}
	if m.WarehouseLocation != nil {
		set = append(set, "warehouse_location = ?")
		args = append(args, *m.WarehouseLocation)
	}
	if m.KeeperID != nil {
		set = append(set, "keeper_id = ?")
		args = append(args, *m.KeeperID)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "last_updated = ?")
	args = append(args, now(), id)
	_, err := q.ExecContext(ctx, `UPDATE inventory SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	return err
}

func (r *InventoryRepo) Delete(ctx context.Context, q Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id)
	return err
}
