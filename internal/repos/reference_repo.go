package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"ferremas/internal/domain"
)

// ReferenceRepo reads the catalogue tables owned by other services:
// products, branches, customers, currencies and warehouse keepers.
type ReferenceRepo struct{ db *sqlx.DB }

func NewReferenceRepo(db *sqlx.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

func (r *ReferenceRepo) Product(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT id, code, name, price, tax_rate, status FROM products WHERE id = ?`, id)
	return p, err
}

func (r *ReferenceRepo) Branch(ctx context.Context, id string) (domain.Branch, error) {
	var b domain.Branch
	err := r.db.GetContext(ctx, &b, `SELECT id, name, city, region, active FROM branches WHERE id = ?`, id)
	return b, err
}

func (r *ReferenceRepo) CustomerExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, id)
}

func (r *ReferenceRepo) CurrencyExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM currencies WHERE id = ?`, id)
}

func (r *ReferenceRepo) KeeperExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM warehouse_keepers WHERE id = ?`, id)
}

func (r *ReferenceRepo) exists(ctx context.Context, query, id string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return false, err
	}
	return n > 0, nil
}
