package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
)

// MovementRequest describes one stock movement against an inventory record.
type MovementRequest struct {
	Type                domain.MovementType
	Quantity            int
	OrderID             *string
	ReturnID            *string
	KeeperID            *string
	Comment             *string
	DestinationBranchID *string
}

type MovementResult struct {
	MovementID  string          `json:"id_movimiento"`
	InventoryID string          `json:"ID_Inventario"`
	NewStock    int             `json:"nuevo_stock"`
	NewReserved int             `json:"nuevo_stock_reservado"`
	Destination *TransferResult `json:"destino,omitempty"`
}

// TransferResult is the receiving side of a Transferencia.
type TransferResult struct {
	InventoryID string `json:"ID_Inventario"`
	MovementID  string `json:"id_movimiento"`
	NewStock    int    `json:"nuevo_stock"`
	Created     bool   `json:"creado"`
}

// MovementService is the only writer of stock counters. Every change it makes
// is paired with a ledger entry in the same transaction.
type MovementService struct {
	db    *sqlx.DB
	Inv   *repos.InventoryRepo
	Moves *repos.MovementRepo
	Refs  References
	log   *zap.Logger
}

func NewMovementService(db *sqlx.DB, inv *repos.InventoryRepo, moves *repos.MovementRepo, refs References, logger *zap.Logger) *MovementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementService{db: db, Inv: inv, Moves: moves, Refs: refs, log: logger}
}

// Record applies a movement to the inventory record inventoryID.
func (s *MovementService) Record(ctx context.Context, inventoryID string, req MovementRequest) (MovementResult, error) {
	if err := domain.ValidateMovement(req.Type, req.Quantity); err != nil {
		return MovementResult{}, err
	}
	if req.KeeperID != nil && *req.KeeperID != "" {
		if err := requireExists(ctx, s.Refs.KeeperExists, "warehouse keeper", *req.KeeperID); err != nil {
			return MovementResult{}, err
		}
	}
	if req.Type == domain.MovementTransfer {
		return s.transfer(ctx, inventoryID, req)
	}

	var res MovementResult
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rec, err := s.lockRecord(ctx, tx, inventoryID)
		if err != nil {
			return err
		}
		m, next, err := s.apply(ctx, tx, rec, req)
		if err != nil {
			return err
		}
		res = MovementResult{MovementID: m.ID, InventoryID: rec.ID, NewStock: next.Current, NewReserved: next.Reserved}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}

	s.log.Debug("inventory.movement.recorded",
		zap.String("inventory_id", inventoryID),
		zap.String("movement_id", res.MovementID),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity),
		zap.Int("current_stock", res.NewStock),
		zap.Int("reserved_stock", res.NewReserved),
	)
	return res, nil
}

// apply runs one transition on an already locked record inside tx and
// returns the stored movement and the new counters.
func (s *MovementService) apply(ctx context.Context, tx *sqlx.Tx, rec domain.InventoryRecord, req MovementRequest) (domain.Movement, domain.Counters, error) {
	next, err := domain.ApplyMovement(rec.Counters(), req.Type, req.Quantity)
	if err != nil {
		return domain.Movement{}, rec.Counters(), err
	}
	m := domain.Movement{
		InventoryID:         rec.ID,
		Type:                req.Type,
		Quantity:            req.Quantity,
		OrderID:             nonEmpty(req.OrderID),
		ReturnID:            nonEmpty(req.ReturnID),
		KeeperID:            nonEmpty(req.KeeperID),
		Comment:             nonEmpty(req.Comment),
		DestinationBranchID: nonEmpty(req.DestinationBranchID),
	}
	if err := s.Moves.Append(ctx, tx, &m); err != nil {
		return domain.Movement{}, rec.Counters(), fmt.Errorf("failed to append movement: %w", err)
	}
	if err := s.Inv.ApplyCounters(ctx, tx, rec.ID, next); err != nil {
		return domain.Movement{}, rec.Counters(), err
	}
	return m, next, nil
}

func (s *MovementService) transfer(ctx context.Context, inventoryID string, req MovementRequest) (MovementResult, error) {
	if req.DestinationBranchID == nil || *req.DestinationBranchID == "" {
		return MovementResult{}, domain.Validationf("a transfer requires a destination branch")
	}
	destBranch := *req.DestinationBranchID

	origin, err := s.Inv.Get(ctx, s.db, inventoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return MovementResult{}, domain.NotFoundf("inventory record %s not found", inventoryID)
	}
	if err != nil {
		return MovementResult{}, fmt.Errorf("failed to load inventory record: %w", err)
	}
	if destBranch == origin.BranchID {
		return MovementResult{}, domain.Validationf("destination branch must differ from the origin branch %s", origin.BranchID)
	}
	if _, err := requireBranch(ctx, s.Refs, destBranch); err != nil {
		return MovementResult{}, err
	}

	var res MovementResult
	err = repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		destID := ""
		if dest, err := s.Inv.FindByPair(ctx, tx, origin.ProductID, destBranch); err == nil {
			destID = dest.ID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up destination record: %w", err)
		}

		locked, err := s.lockInOrder(ctx, tx, []string{inventoryID, destID})
		if err != nil {
			return err
		}
		src := locked[inventoryID]

		out, next, err := s.apply(ctx, tx, src, req)
		if err != nil {
			return err
		}
		res = MovementResult{MovementID: out.ID, InventoryID: src.ID, NewStock: next.Current, NewReserved: next.Reserved}

		dest, created := locked[destID], false
		if destID == "" {
			dest = domain.InventoryRecord{ProductID: src.ProductID, BranchID: destBranch}
			if err := s.Inv.Insert(ctx, tx, &dest); err != nil {
				if errors.Is(err, repos.ErrDuplicate) {
					return domain.Conflictf("inventory record for product %s at branch %s was created concurrently, retry the transfer", src.ProductID, destBranch)
				}
				return fmt.Errorf("failed to create destination record: %w", err)
			}
			created = true
		}
		note := fmt.Sprintf("transfer received from branch %s (movement %s)", src.BranchID, out.ID)
		in, destNext, err := s.apply(ctx, tx, dest, MovementRequest{
			Type:     domain.MovementInbound,
			Quantity: req.Quantity,
			KeeperID: req.KeeperID,
			Comment:  &note,
		})
		if err != nil {
			return err
		}
		res.Destination = &TransferResult{InventoryID: dest.ID, MovementID: in.ID, NewStock: destNext.Current, Created: created}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}

	s.log.Debug("inventory.transfer.recorded",
		zap.String("inventory_id", inventoryID),
		zap.String("destination_inventory_id", res.Destination.InventoryID),
		zap.String("destination_branch_id", destBranch),
		zap.Int("quantity", req.Quantity),
		zap.Bool("destination_created", res.Destination.Created),
	)
	return res, nil
}

func (s *MovementService) lockRecord(ctx context.Context, tx *sqlx.Tx, id string) (domain.InventoryRecord, error) {
	rec, err := s.Inv.Lock(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, domain.NotFoundf("inventory record %s not found", id)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to lock inventory record %s: %w", id, err)
	}
	return rec, nil
}

// lockInOrder locks records in ascending id order so that two transactions
// touching the same records cannot deadlock. Empty ids are skipped.
func (s *MovementService) lockInOrder(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]domain.InventoryRecord, error) {
	uniq := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)

	out := make(map[string]domain.InventoryRecord, len(uniq))
	for _, id := range uniq {
		rec, err := s.lockRecord(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

// ---------- Ledger reads ----------

func (s *MovementService) Get(ctx context.Context, id string) (domain.Movement, error) {
	m, err := s.Moves.Get(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return m, domain.NotFoundf("movement %s not found", id)
	}
	return m, err
}

// ForRecord lists a record's movements newest first.
func (s *MovementService) ForRecord(ctx context.Context, inventoryID string) ([]domain.Movement, error) {
	if _, err := s.Inv.Get(ctx, s.db, inventoryID); errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("inventory record %s not found", inventoryID)
	} else if err != nil {
		return nil, err
	}
	return s.Moves.Query(ctx, s.db, repos.MovementFilter{InventoryID: inventoryID})
}

type MovementQuery struct {
	Type  string
	From  *time.Time
	To    *time.Time
	Limit int
}

func (s *MovementService) Query(ctx context.Context, q MovementQuery) ([]domain.Movement, error) {
	t := domain.MovementType(q.Type)
	if t != "" && !t.Valid() {
		return nil, domain.Validationf("unknown movement type %q", q.Type)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, domain.Validationf("date range end precedes its start")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Moves.Query(ctx, s.db, repos.MovementFilter{Type: t, From: q.From, To: q.To, Limit: limit})
}

// Audit replays a record's ledger from zero and compares it with the live
// counters, reading both in one transaction.
func (s *MovementService) Audit(ctx context.Context, inventoryID string) (domain.LedgerAudit, error) {
	var out domain.LedgerAudit
	err := repos.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rec, err := s.lockRecord(ctx, tx, inventoryID)
		if err != nil {
			return err
		}
		ledger, err := s.Moves.Ledger(ctx, tx, inventoryID)
		if err != nil {
			return err
		}
		replayed, rerr := domain.Replay(ledger)
		out = domain.LedgerAudit{
			InventoryID: inventoryID,
			Live:        rec.Counters(),
			Replayed:    replayed,
			Movements:   len(ledger),
			Consistent:  rerr == nil && replayed == rec.Counters(),
		}
		return nil
	})
	if err == nil && !out.Consistent {
		s.log.Warn("inventory.ledger.mismatch",
			zap.String("inventory_id", inventoryID),
			zap.Any("live", out.Live),
			zap.Any("replayed", out.Replayed),
		)
	}
	return out, err
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
