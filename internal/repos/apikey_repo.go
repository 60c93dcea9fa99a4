package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ferremas/internal/domain"
)

type APIKeyRepo struct{ DB *sqlx.DB }

func NewAPIKeyRepo(db *sqlx.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

func (r *APIKeyRepo) ByID(ctx context.Context, id string) (*domain.APIKey, error) {
	var k domain.APIKey
	err := r.DB.GetContext(ctx, &k, `
		SELECT id, user_id, name, secret_hash, role, active, created_at, last_used
		FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *APIKeyRepo) Insert(ctx context.Context, k *domain.APIKey) error {
	k.CreatedAt = now()
	_, err := sqlx.NamedExecContext(ctx, r.DB, `
		INSERT INTO api_keys(id, user_id, name, secret_hash, role, active, created_at)
		VALUES (:id, :user_id, :name, :secret_hash, :role, :active, :created_at)`, k)
	return translate(err)
}

func (r *APIKeyRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE id = ?`, at.UTC(), id)
	return err
}

// Deactivate reports whether a key with that id existed.
func (r *APIKeyRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE api_keys SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
