package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ferremas/internal/domain"
)

// Reference data is owned elsewhere; the core only needs these reads,
// and runs them before opening a transaction.

type ProductLookup interface {
	Product(ctx context.Context, id string) (domain.Product, error)
}

type BranchLookup interface {
	Branch(ctx context.Context, id string) (domain.Branch, error)
}

type CustomerLookup interface {
	CustomerExists(ctx context.Context, id string) (bool, error)
}

type CurrencyLookup interface {
	CurrencyExists(ctx context.Context, id string) (bool, error)
}

type KeeperLookup interface {
	KeeperExists(ctx context.Context, id string) (bool, error)
}

type References interface {
	ProductLookup
	BranchLookup
	CustomerLookup
	CurrencyLookup
	KeeperLookup
}

func requireProduct(ctx context.Context, refs ProductLookup, id string) (domain.Product, error) {
	p, err := refs.Product(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFoundf("product %s not found", id)
	}
	if err != nil {
		return p, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return p, nil
}

func requireBranch(ctx context.Context, refs BranchLookup, id string) (domain.Branch, error) {
	b, err := refs.Branch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.NotFoundf("branch %s not found", id)
	}
	if err != nil {
		return b, fmt.Errorf("failed to load branch %s: %w", id, err)
	}
	return b, nil
}

func requireExists(ctx context.Context, check func(context.Context, string) (bool, error), what, id string) error {
	ok, err := check(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up %s %s: %w", what, id, err)
	}
	if !ok {
		return domain.NotFoundf("%s %s not found", what, id)
	}
	return nil
}
