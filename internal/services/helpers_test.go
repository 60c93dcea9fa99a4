package services_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
	"ferremas/internal/services"
)

type fixture struct {
	db     *sqlx.DB
	inv    *services.InventoryService
	moves  *services.MovementService
	orders *services.OrderService
}

// newFixture opens a seeded in-memory database. Seed records used below:
// inv-martillo-centro 40, inv-martillo-valpo 6 (min 5), inv-taladro-centro 12,
// inv-tornillos-centro 200, inv-cemento-maipu 80.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	invRepo := repos.NewInventoryRepo(db)
	refs := repos.NewReferenceRepo(db)
	moves := services.NewMovementService(db, invRepo, repos.NewMovementRepo(db), refs, nil)
	return &fixture{
		db:     db,
		inv:    services.NewInventoryService(db, invRepo, moves, refs, nil),
		moves:  moves,
		orders: services.NewOrderService(db, repos.NewOrderRepo(db), invRepo, moves, refs, nil),
	}
}

func (f *fixture) counters(t *testing.T, id string) domain.Counters {
	t.Helper()
	rec, err := f.inv.Get(context.Background(), id)
	require.NoError(t, err)
	return rec.Counters()
}

func (f *fixture) record(t *testing.T, id string, typ domain.MovementType, qty int) services.MovementResult {
	t.Helper()
	res, err := f.moves.Record(context.Background(), id, services.MovementRequest{Type: typ, Quantity: qty})
	require.NoError(t, err)
	return res
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, query, args...))
	return n
}

func ptr[T any](v T) *T { return &v }
