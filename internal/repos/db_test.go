package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferremas/internal/domain"
)

func TestDSNOptions(t *testing.T) {
	assert.Equal(t,
		"ferremas.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate",
		sqliteDSN(""))
	assert.Contains(t, sqliteDSN("file:x.db?cache=shared"), "cache=shared&_pragma=")

	assert.Equal(t, "u:p@tcp(db:3306)/ferremas?parseTime=true&loc=UTC", mysqlDSN("u:p@tcp(db:3306)/ferremas"))
	assert.Equal(t, "u:p@tcp(db)/f?charset=utf8mb4&parseTime=true&loc=UTC", mysqlDSN("u:p@tcp(db)/f?charset=utf8mb4"))
	assert.Equal(t, "u:p@/f?parseTime=false", mysqlDSN("u:p@/f?parseTime=false"))

	_, err := OpenDB("postgres", "x")
	assert.Error(t, err)
}

func TestOpenDBSeedsOnce(t *testing.T) {
	db, err := OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, seedIfEmpty(db))
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM inventory`))
	assert.Equal(t, 5, n)

	// Every seeded record replays from its ledger.
	moves := NewMovementRepo(db)
	inv := NewInventoryRepo(db)
	ctx := context.Background()
	rows, err := inv.List(ctx, db, InventoryFilter{})
	require.NoError(t, err)
	for _, rec := range rows {
		ledger, err := moves.Ledger(ctx, db, rec.ID)
		require.NoError(t, err)
		got, err := domain.Replay(ledger)
		require.NoError(t, err)
		assert.Equal(t, rec.Counters(), got, rec.ID)
	}
}

func TestInsertDuplicatePair(t *testing.T) {
	db, err := OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	inv := NewInventoryRepo(db)
	err = inv.Insert(context.Background(), db, &domain.InventoryRecord{ProductID: "prod-martillo", BranchID: "suc-centro"})
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	ids, err := inv.IDsByPairs(context.Background(), db, []string{"prod-martillo", "prod-taladro", "prod-cemento"}, "suc-centro")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"prod-martillo": "inv-martillo-centro",
		"prod-taladro":  "inv-taladro-centro",
	}, ids)
}
