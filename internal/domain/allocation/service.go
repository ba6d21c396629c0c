package allocation

import (
	"context"
	"fmt"

	"larder/internal/core/id"
	"larder/internal/core/tx"
	"larder/internal/core/types"
	"larder/internal/domain/journal"
	"larder/internal/domain/ledger"
	"larder/pkg/logger"
)

// DeductionRequest asks for a quantity to leave the ledger (a distribution,
// spoilage write-off, or any other outbound event).
type DeductionRequest struct {
	ItemID   id.ID
	Quantity types.Quantity

	// PreferredLotID, when set, is consumed before the expiry order kicks in
	// (the operator already has that box in hand).
	PreferredLotID *id.ID

	Reason string

	// DryRun computes the plan without touching the ledger.
	DryRun bool
}

// DeductionResult is the executed (or simulated) plan plus the item total
// after execution.
type DeductionResult struct {
	Plan       Plan           `json:"plan"`
	Applied    bool           `json:"applied"`
	StockAfter types.Quantity `json:"stockAfter"`
}

// Service plans deductions and applies them atomically.
type Service struct {
	lots      ledger.Repository
	items     ledger.ItemStore
	journal   *journal.Service
	txManager tx.Manager
}

// NewService creates a new allocation service.
func NewService(lots ledger.Repository, items ledger.ItemStore, journalSvc *journal.Service, txManager tx.Manager) *Service {
	return &Service{
		lots:      lots,
		items:     items,
		journal:   journalSvc,
		txManager: txManager,
	}
}

// ApplyDeduction plans and executes a deduction in one transaction.
//
// The item lock is taken before the lots are read, so the plan always runs
// against a snapshot no concurrent writer can move under it. The plan is
// computed in full before any lot changes; on insufficient stock the
// transaction ends with zero side effects. Each pick journals one OUT move.
func (s *Service) ApplyDeduction(ctx context.Context, req DeductionRequest) (DeductionResult, error) {
	if req.DryRun {
		return s.simulate(ctx, req)
	}

	var result DeductionResult

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.items.LockItem(ctx, req.ItemID); err != nil {
			return err
		}

		lots, err := s.lots.ListByItem(ctx, req.ItemID)
		if err != nil {
			return err
		}

		plan, err := PlanDeduction(req.ItemID, lots, req.Quantity, req.PreferredLotID)
		if err != nil {
			return err
		}

		byID := make(map[id.ID]*ledger.StockLot, len(lots))
		for i := range lots {
			byID[lots[i].ID] = &lots[i]
		}

		moves := make([]journal.StockMove, 0, len(plan.Picks))
		for _, pick := range plan.Picks {
			lot := byID[pick.LotID]
			lot.RemainingQty = pick.RemainingNew
			lot.Touch()
			if err := s.lots.Update(ctx, lot); err != nil {
				return fmt.Errorf("draw down lot %s: %w", lot.ID, err)
			}
			moves = append(moves, journal.NewStockMove(req.ItemID, pick.LotID, journal.MoveOut, pick.Quantity, req.Reason))
		}

		if err := s.journal.RecordBatch(ctx, moves); err != nil {
			return err
		}

		total, err := s.lots.SumRemaining(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("sum remaining: %w", err)
		}
		if err := s.items.SetStockCurrent(ctx, req.ItemID, total); err != nil {
			return fmt.Errorf("write stock total: %w", err)
		}

		result = DeductionResult{Plan: plan, Applied: true, StockAfter: total}
		return nil
	})
	if err != nil {
		return DeductionResult{}, err
	}

	logger.Info(ctx, "deduction applied",
		"item_id", req.ItemID,
		"quantity", req.Quantity,
		"lots", len(result.Plan.Picks),
		"stock_after", result.StockAfter,
	)
	return result, nil
}

// simulate computes the plan against current lots without mutating anything.
func (s *Service) simulate(ctx context.Context, req DeductionRequest) (DeductionResult, error) {
	lots, err := s.lots.ListByItem(ctx, req.ItemID)
	if err != nil {
		return DeductionResult{}, err
	}

	plan, err := PlanDeduction(req.ItemID, lots, req.Quantity, req.PreferredLotID)
	if err != nil {
		return DeductionResult{}, err
	}

	var total types.Quantity
	for _, lot := range lots {
		total += lot.RemainingQty
	}

	return DeductionResult{Plan: plan, Applied: false, StockAfter: total - req.Quantity}, nil
}
