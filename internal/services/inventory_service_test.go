package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
	"ferremas/internal/services"
)

func TestInventoryService_CheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// in stock: 6 units over a minimum of 5
	a, err := f.inv.CheckAvailability(ctx, "prod-martillo", "suc-valpo")
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{Status: "IN_STOCK", Qty: 6}, a)

	f.record(t, "inv-martillo-valpo", domain.MovementOutbound, 1)
	a, err = f.inv.CheckAvailability(ctx, "prod-martillo", "suc-valpo")
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{Status: "LOW_STOCK", Qty: 5}, a)

	f.record(t, "inv-martillo-valpo", domain.MovementReserve, 5)
	a, err = f.inv.CheckAvailability(ctx, "prod-martillo", "suc-valpo")
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, a)

	// no record at the branch
	a, err = f.inv.CheckAvailability(ctx, "prod-martillo", "suc-maipu")
	require.NoError(t, err)
	assert.Equal(t, "OUT_OF_STOCK", a.Status)

	// a reorder point takes over from the minimum
	_, err = f.inv.UpdateMetadata(ctx, "inv-taladro-centro", repos.InventoryMetadata{ReorderPoint: ptr(12)})
	require.NoError(t, err)
	a, err = f.inv.CheckAvailability(ctx, "prod-taladro", "suc-centro")
	require.NoError(t, err)
	assert.Equal(t, "LOW_STOCK", a.Status)
}

func TestInventoryService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.inv.Create(ctx, services.CreateInventoryInput{
		ProductID:         "prod-cemento",
		BranchID:          "suc-centro",
		InitialStock:      25,
		MinimumStock:      5,
		MaximumStock:      ptr(100),
		WarehouseLocation: ptr("B-12"),
		KeeperID:          ptr("bod-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, 25, rec.CurrentStock)
	assert.Zero(t, rec.ReservedStock)
	require.NotNil(t, rec.WarehouseLocation)
	assert.Equal(t, "B-12", *rec.WarehouseLocation)

	ledger, err := f.moves.ForRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, domain.MovementInbound, ledger[0].Type)
	assert.Equal(t, 25, ledger[0].Quantity)
	require.NotNil(t, ledger[0].Comment)
	assert.Equal(t, repos.InitialStockComment, *ledger[0].Comment)

	_, err = f.inv.Create(ctx, services.CreateInventoryInput{ProductID: "prod-cemento", BranchID: "suc-centro"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	empty, err := f.inv.Create(ctx, services.CreateInventoryInput{ProductID: "prod-tornillos", BranchID: "suc-valpo"})
	require.NoError(t, err)
	ledger, err = f.moves.ForRecord(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestInventoryService_CreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   services.CreateInventoryInput
		want error
	}{
		{"unknown product", services.CreateInventoryInput{ProductID: "prod-nope", BranchID: "suc-maipu"}, domain.ErrNotFound},
		{"unknown branch", services.CreateInventoryInput{ProductID: "prod-taladro", BranchID: "suc-nope"}, domain.ErrNotFound},
		{"unknown keeper", services.CreateInventoryInput{ProductID: "prod-taladro", BranchID: "suc-maipu", KeeperID: ptr("bod-999")}, domain.ErrNotFound},
		{"negative stock", services.CreateInventoryInput{ProductID: "prod-taladro", BranchID: "suc-maipu", InitialStock: -1}, domain.ErrValidation},
		{"maximum below minimum", services.CreateInventoryInput{ProductID: "prod-taladro", BranchID: "suc-maipu", MinimumStock: 10, MaximumStock: ptr(5)}, domain.ErrValidation},
		{"missing branch", services.CreateInventoryInput{ProductID: "prod-taladro"}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.inv.Create(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInventoryService_UpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.inv.UpdateMetadata(ctx, "inv-cemento-maipu", repos.InventoryMetadata{
		MinimumStock:      ptr(30),
		WarehouseLocation: ptr("Patio 2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, rec.MinimumStock)
	assert.Equal(t, 80, rec.CurrentStock)

	_, err = f.inv.UpdateMetadata(ctx, "inv-cemento-maipu", repos.InventoryMetadata{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.inv.UpdateMetadata(ctx, "inv-cemento-maipu", repos.InventoryMetadata{MaximumStock: ptr(10)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.inv.UpdateMetadata(ctx, "inv-nope", repos.InventoryMetadata{MinimumStock: ptr(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.inv.Delete(ctx, "inv-cemento-maipu", false)
	assert.ErrorIs(t, err, domain.ErrConflict, "history requires confirmation")

	f.record(t, "inv-cemento-maipu", domain.MovementReserve, 2)
	err = f.inv.Delete(ctx, "inv-cemento-maipu", true)
	assert.ErrorIs(t, err, domain.ErrConflict, "reservations block deletion")

	f.record(t, "inv-cemento-maipu", domain.MovementRelease, 2)
	require.NoError(t, f.inv.Delete(ctx, "inv-cemento-maipu", true))

	_, err = f.inv.Get(ctx, "inv-cemento-maipu")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM movements WHERE inventory_id = ?`, "inv-cemento-maipu"))
	assert.Zero(t, n)

	empty, err := f.inv.Create(ctx, services.CreateInventoryInput{ProductID: "prod-taladro", BranchID: "suc-valpo"})
	require.NoError(t, err)
	assert.NoError(t, f.inv.Delete(ctx, empty.ID, false))

	assert.ErrorIs(t, f.inv.Delete(ctx, "inv-nope", true), domain.ErrNotFound)
}

func TestInventoryService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.inv.List(ctx, repos.InventoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	centro, err := f.inv.List(ctx, repos.InventoryFilter{BranchID: "suc-centro"})
	require.NoError(t, err)
	assert.Len(t, centro, 3)

	f.record(t, "inv-martillo-valpo", domain.MovementOutbound, 2)
	low, err := f.inv.List(ctx, repos.InventoryFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "inv-martillo-valpo", low[0].ID)

	_, err = f.inv.Find(ctx, "", "suc-centro")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
