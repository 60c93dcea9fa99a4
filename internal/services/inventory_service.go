package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
)

type InventoryService struct {
	db    *sqlx.DB
	Inv   *repos.InventoryRepo
	Moves *MovementService
	Refs  References
	log   *zap.Logger
}

func NewInventoryService(db *sqlx.DB, inv *repos.InventoryRepo, moves *MovementService, refs References, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{db: db, Inv: inv, Moves: moves, Refs: refs, log: logger}
}

type CreateInventoryInput struct {
	ProductID         string
	BranchID          string
	InitialStock      int
	MinimumStock      int
	MaximumStock      *int
	ReorderPoint      *int
	WarehouseLocation *string
	KeeperID          *string
}

// Create registers a product at a branch. Initial stock is written as an
// Entrada so the ledger replays to the live figure.
func (s *InventoryService) Create(ctx context.Context, in CreateInventoryInput) (domain.InventoryRecord, error) {
	if in.ProductID == "" || in.BranchID == "" {
		return domain.InventoryRecord{}, domain.Validationf("product and branch are required")
	}
	if in.InitialStock < 0 {
		return domain.InventoryRecord{}, domain.Validationf("initial stock cannot be negative, got %d", in.InitialStock)
	}
	if err := validateLimits(in.MinimumStock, in.MaximumStock, in.ReorderPoint); err != nil {
		return domain.InventoryRecord{}, err
	}
	if _, err := requireProduct(ctx, s.Refs, in.ProductID); err != nil {
		return domain.InventoryRecord{}, err
	}
	if _, err := requireBranch(ctx, s.Refs, in.BranchID); err != nil {
		return domain.InventoryRecord{}, err
	}
	if in.KeeperID != nil && *in.KeeperID != "" {
		if err := requireExists(ctx, s.Refs.KeeperExists, "warehouse keeper", *in.KeeperID); err != nil {
			return domain.InventoryRecord{}, err
		}
	}

	rec := domain.InventoryRecord{
		ProductID:         in.ProductID,
		BranchID:          in.BranchID,
		MinimumStock:      in.MinimumStock,
		MaximumStock:      in.MaximumStock,
		ReorderPoint:      in.ReorderPoint,
		WarehouseLocation: nonEmpty(in.WarehouseLocation),
		KeeperID:          nonEmpty(in.KeeperID),
	}
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.Inv.Insert(ctx, tx, &rec); err != nil {
			if errors.Is(err, repos.ErrDuplicate) {
				return domain.Conflictf("an inventory record for product %s at branch %s already exists", in.ProductID, in.BranchID)
			}
			return fmt.Errorf("failed to insert inventory record: %w", err)
		}
		if in.InitialStock == 0 {
			return nil
		}
		note := repos.InitialStockComment
		_, next, err := s.Moves.apply(ctx, tx, rec, MovementRequest{
			Type:     domain.MovementInbound,
			Quantity: in.InitialStock,
			KeeperID: in.KeeperID,
			Comment:  &note,
		})
		if err != nil {
			return err
		}
		rec.CurrentStock, rec.ReservedStock = next.Current, next.Reserved
		return nil
	})
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	s.log.Debug("inventory.record.created",
		zap.String("inventory_id", rec.ID),
		zap.String("product_id", rec.ProductID),
		zap.String("branch_id", rec.BranchID),
		zap.Int("initial_stock", in.InitialStock),
	)
	return s.Get(ctx, rec.ID)
}

func (s *InventoryService) Get(ctx context.Context, id string) (domain.InventoryRecord, error) {
	rec, err := s.Inv.Get(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, domain.NotFoundf("inventory record %s not found", id)
	}
	return rec, err
}

func (s *InventoryService) Find(ctx context.Context, productID, branchID string) (domain.InventoryRecord, error) {
	if productID == "" || branchID == "" {
		return domain.InventoryRecord{}, domain.Validationf("productId and branchId are required")
	}
	rec, err := s.Inv.FindByPair(ctx, s.db, productID, branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, domain.NotFoundf("no inventory record for product %s at branch %s", productID, branchID)
	}
	return rec, err
}

func (s *InventoryService) List(ctx context.Context, f repos.InventoryFilter) ([]domain.InventoryRecord, error) {
	return s.Inv.List(ctx, s.db, f)
}

// UpdateMetadata edits the descriptive fields of a record. Stock counters are
// not part of InventoryMetadata and cannot be changed here.
func (s *InventoryService) UpdateMetadata(ctx context.Context, id string, m repos.InventoryMetadata) (domain.InventoryRecord, error) {
	if m.Empty() {
		return domain.InventoryRecord{}, domain.Validationf("no editable fields supplied")
	}
	if m.KeeperID != nil && *m.KeeperID != "" {
		if err := requireExists(ctx, s.Refs.KeeperExists, "warehouse keeper", *m.KeeperID); err != nil {
			return domain.InventoryRecord{}, err
		}
	}
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cur, err := s.Moves.lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		minimum, maximum, reorder := cur.MinimumStock, cur.MaximumStock, cur.ReorderPoint
		if m.MinimumStock != nil {
			minimum = *m.MinimumStock
		}
		if m.MaximumStock != nil {
			maximum = m.MaximumStock
		}
		if m.ReorderPoint != nil {
			reorder = m.ReorderPoint
		}
		if err := validateLimits(minimum, maximum, reorder); err != nil {
			return err
		}
		return s.Inv.UpdateMetadata(ctx, tx, id, m)
	})
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	s.log.Debug("inventory.record.updated", zap.String("inventory_id", id))
	return s.Get(ctx, id)
}

// Delete removes a record. Records holding reservations are never deleted;
// records with ledger history need confirm, which deletes the history too.
func (s *InventoryService) Delete(ctx context.Context, id string, confirm bool) error {
	var removed int
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rec, err := s.Moves.lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.ReservedStock > 0 {
			return domain.Conflictf("inventory record %s has %d reserved units and cannot be deleted", id, rec.ReservedStock)
		}
		n, err := s.Moves.Moves.Count(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 && !confirm {
			return domain.Conflictf("inventory record %s has %d movements; repeat with confirm=true to delete them", id, n)
		}
		if err := s.Moves.Moves.DeleteByInventory(ctx, tx, id); err != nil {
			return err
		}
		removed = n
		return s.Inv.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.log.Debug("inventory.record.deleted", zap.String("inventory_id", id), zap.Int("movements_deleted", removed))
	return nil
}

// CheckAvailability converts stock into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
// LOW_STOCK starts at the reorder point, or the minimum when none is set.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID, branchID string) (domain.Availability, error) {
	rec, err := s.Inv.FindByPair(ctx, s.db, productID, branchID)
	if err != nil {
		// No record means the branch does not carry the product.
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
		}
		return domain.Availability{}, err
	}

	threshold := rec.MinimumStock
	if rec.ReorderPoint != nil {
		threshold = *rec.ReorderPoint
	}
	status := "OUT_OF_STOCK"
	switch {
	case rec.CurrentStock > threshold:
		status = "IN_STOCK"
	case rec.CurrentStock > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: rec.CurrentStock}, nil
}

func validateLimits(minimum int, maximum, reorder *int) error {
	if minimum < 0 {
		return domain.Validationf("minimum stock cannot be negative")
	}
	if maximum != nil && *maximum < minimum {
		return domain.Validationf("maximum stock %d is below minimum stock %d", *maximum, minimum)
	}
	if reorder != nil && *reorder < 0 {
		return domain.Validationf("reorder point cannot be negative")
	}
	return nil
}
