package ledger

import (
	"context"
	"fmt"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/tx"
	"larder/internal/core/types"
	"larder/internal/domain/journal"
	"larder/pkg/logger"
)

// Service provides business operations for the lot ledger.
//
// Every lot-affecting mutation runs in one transaction that takes the item
// lock first, then mutates lots, journals the move and recomputes the
// denormalized total. The aggregate is therefore never written from a stale
// read.
type Service struct {
	lots      Repository
	items     ItemStore
	journal   *journal.Service
	audit     ChangeAuditor
	txManager tx.Manager
}

// NewService creates a new ledger service.
func NewService(lots Repository, items ItemStore, journalSvc *journal.Service, audit ChangeAuditor, txManager tx.Manager) *Service {
	return &Service{
		lots:      lots,
		items:     items,
		journal:   journalSvc,
		audit:     audit,
		txManager: txManager,
	}
}

// CreateLot registers a new batch (donation intake or manual stock entry).
// Records an IN move for the remaining quantity and recomputes the item total.
func (s *Service) CreateLot(ctx context.Context, lot *StockLot) error {
	if err := lot.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.items.LockItem(ctx, lot.ItemID); err != nil {
			return err
		}

		if lot.LotCode.Untracked() {
			if _, err := s.lots.FindUntracked(ctx, lot.ItemID); err == nil {
				return apperror.NewStateConflict("item already has an untracked lot").
					WithDetail("itemId", lot.ItemID)
			} else if !apperror.IsNotFound(err) {
				return err
			}
		}

		if err := s.lots.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}

		if lot.RemainingQty.IsPositive() {
			move := journal.NewStockMove(lot.ItemID, lot.ID, journal.MoveIn, lot.RemainingQty, "lot created")
			if _, err := s.journal.Record(ctx, move); err != nil {
				return err
			}
		}

		if err := s.recompute(ctx, lot.ItemID); err != nil {
			return err
		}

		return s.logChange(ctx, lot.ItemID, lot.ID, "create", map[string]any{
			"lotCode":      lot.LotCode.String(),
			"quantity":     lot.Quantity,
			"remainingQty": lot.RemainingQty,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "lot created",
		"lot_id", lot.ID,
		"item_id", lot.ItemID,
		"lot_code", lot.LotCode.String(),
		"remaining", lot.RemainingQty,
	)
	return nil
}

// GetByID retrieves a lot.
func (s *Service) GetByID(ctx context.Context, lotID id.ID) (*StockLot, error) {
	return s.lots.GetByID(ctx, lotID)
}

// List retrieves lots with filtering.
func (s *Service) List(ctx context.Context, filter LotFilter) ([]StockLot, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.lots.List(ctx, filter)
}

// ListByItem returns all lots of one item.
func (s *Service) ListByItem(ctx context.Context, itemID id.ID) ([]StockLot, error) {
	return s.lots.ListByItem(ctx, itemID)
}

// UpdateLot merges a patch into a lot and re-validates the full invariant
// set against the merged result. A remaining-quantity change journals an
// ADJUST move; a location change journals a TRANSFER.
func (s *Service) UpdateLot(ctx context.Context, lotID id.ID, patch LotPatch) (*StockLot, error) {
	var updated *StockLot

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.lots.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		merged := patch.Apply(*current)
		if err := merged.Validate(ctx); err != nil {
			return err
		}

		if err := s.items.LockItem(ctx, merged.ItemID); err != nil {
			return err
		}

		if merged.RemainingQty != current.RemainingQty {
			delta := merged.RemainingQty - current.RemainingQty
			move := journal.NewStockMove(merged.ItemID, merged.ID, journal.MoveAdjust, delta, "lot updated")
			if _, err := s.journal.Record(ctx, move); err != nil {
				return err
			}
		}

		if merged.LocationCode != current.LocationCode && merged.RemainingQty.IsPositive() {
			reason := fmt.Sprintf("relocated %s -> %s", current.LocationCode, merged.LocationCode)
			move := journal.NewStockMove(merged.ItemID, merged.ID, journal.MoveTransfer, merged.RemainingQty, reason)
			if _, err := s.journal.Record(ctx, move); err != nil {
				return err
			}
		}

		merged.Touch()
		if err := s.lots.Update(ctx, &merged); err != nil {
			return err
		}

		if err := s.recompute(ctx, merged.ItemID); err != nil {
			return err
		}

		if err := s.logChange(ctx, merged.ItemID, merged.ID, "update", diffLots(*current, merged)); err != nil {
			return err
		}

		updated = &merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteLot removes a lot. Deletion is an explicit administrative action; a
// lot does not have to reach zero first. Remaining stock leaves the ledger
// through an ADJUST move so the journal stays complete.
func (s *Service) DeleteLot(ctx context.Context, lotID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.lots.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		if err := s.items.LockItem(ctx, lot.ItemID); err != nil {
			return err
		}

		// Re-read under the item lock. A writer committing between the first
		// read and the lock would otherwise leave a wrong delta in the
		// journal; there is no version check to catch it on a delete.
		lot, err = s.lots.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		if lot.RemainingQty.IsPositive() {
			move := journal.NewStockMove(lot.ItemID, lot.ID, journal.MoveAdjust, lot.RemainingQty.Neg(), "lot deleted")
			if _, err := s.journal.Record(ctx, move); err != nil {
				return err
			}
		}

		if err := s.lots.Delete(ctx, lotID); err != nil {
			return err
		}

		if err := s.recompute(ctx, lot.ItemID); err != nil {
			return err
		}

		return s.logChange(ctx, lot.ItemID, lot.ID, "delete", map[string]any{
			"remainingQty": lot.RemainingQty,
		})
	})
}

// AdjustRemaining sets a lot's remaining quantity to an explicit value.
// Negative targets are rejected, never clamped. A zero delta succeeds
// without journaling a move.
func (s *Service) AdjustRemaining(ctx context.Context, lotID id.ID, newRemaining types.Quantity, reason string) (AdjustResult, error) {
	if newRemaining.IsNegative() {
		return AdjustResult{}, apperror.NewInvalidQuantity("remaining quantity cannot be negative").
			WithDetail("remainingQty", newRemaining)
	}

	var result AdjustResult

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.lots.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		if newRemaining > lot.Quantity {
			return apperror.NewInvalidQuantity("remaining quantity cannot exceed inbound quantity").
				WithDetail("remainingQty", newRemaining).
				WithDetail("quantity", lot.Quantity)
		}

		result = AdjustResult{
			LotID:        lot.ID,
			Delta:        newRemaining - lot.RemainingQty,
			OldRemaining: lot.RemainingQty,
			NewRemaining: newRemaining,
		}

		if result.Delta.IsZero() {
			return nil
		}

		if err := s.items.LockItem(ctx, lot.ItemID); err != nil {
			return err
		}

		lot.RemainingQty = newRemaining
		lot.Touch()
		if err := s.lots.Update(ctx, lot); err != nil {
			return err
		}

		move := journal.NewStockMove(lot.ItemID, lot.ID, journal.MoveAdjust, result.Delta, reason)
		if _, err := s.journal.Record(ctx, move); err != nil {
			return err
		}

		if err := s.recompute(ctx, lot.ItemID); err != nil {
			return err
		}

		return s.logChange(ctx, lot.ItemID, lot.ID, "adjust", map[string]any{
			"remainingQty": map[string]any{"old": result.OldRemaining, "new": result.NewRemaining},
			"reason":       reason,
		})
	})
	if err != nil {
		return AdjustResult{}, err
	}

	return result, nil
}

// ResolveUntracked returns the item's untracked lot, creating an empty one
// when the item has none yet. Used by stock counts for items without batch
// tracking.
func (s *Service) ResolveUntracked(ctx context.Context, itemID id.ID) (*StockLot, error) {
	existing, err := s.lots.FindUntracked(ctx, itemID)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	lot := NewStockLot(itemID, UntrackedLotCode(), 0, 0, time.Now().UTC())

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.items.LockItem(ctx, itemID); err != nil {
			return err
		}

		// Re-check under the lock: a concurrent resolve may have won.
		if found, err := s.lots.FindUntracked(ctx, itemID); err == nil {
			lot = found
			return nil
		} else if !apperror.IsNotFound(err) {
			return err
		}

		return s.lots.Create(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	return lot, nil
}

// Recompute rewrites the item's denormalized total from its lots. It runs in
// its own transaction holding the item lock; mutation paths inside the
// service use the in-transaction variant instead.
func (s *Service) Recompute(ctx context.Context, itemID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.items.LockItem(ctx, itemID); err != nil {
			return err
		}
		return s.recompute(ctx, itemID)
	})
}

// recompute assumes the caller holds the item lock within the current
// transaction.
func (s *Service) recompute(ctx context.Context, itemID id.ID) error {
	total, err := s.lots.SumRemaining(ctx, itemID)
	if err != nil {
		return fmt.Errorf("sum remaining: %w", err)
	}
	if err := s.items.SetStockCurrent(ctx, itemID, total); err != nil {
		return fmt.Errorf("write stock total: %w", err)
	}
	return nil
}

func (s *Service) logChange(ctx context.Context, itemID, lotID id.ID, action string, changes map[string]any) error {
	if s.audit == nil {
		return nil
	}
	if changes == nil {
		changes = make(map[string]any)
	}
	// The item scope rides along in every entry, so per-item history stays
	// complete after the lot row itself is gone.
	changes["itemId"] = itemID.String()
	if err := s.audit.LogChange(ctx, "StockLot", lotID, action, changes); err != nil {
		return fmt.Errorf("audit lot change: %w", err)
	}
	return nil
}

// diffLots builds an old/new change map for the audit trail.
func diffLots(oldLot, newLot StockLot) map[string]any {
	changes := make(map[string]any)

	if oldLot.LotCode != newLot.LotCode {
		changes["lotCode"] = map[string]any{"old": oldLot.LotCode.String(), "new": newLot.LotCode.String()}
	}
	if oldLot.Quantity != newLot.Quantity {
		changes["quantity"] = map[string]any{"old": oldLot.Quantity, "new": newLot.Quantity}
	}
	if oldLot.RemainingQty != newLot.RemainingQty {
		changes["remainingQty"] = map[string]any{"old": oldLot.RemainingQty, "new": newLot.RemainingQty}
	}
	if !oldLot.EntryDate.Equal(newLot.EntryDate) {
		changes["entryDate"] = map[string]any{"old": oldLot.EntryDate, "new": newLot.EntryDate}
	}
	if !equalTimePtr(oldLot.ExpiryDate, newLot.ExpiryDate) {
		changes["expiryDate"] = map[string]any{"old": oldLot.ExpiryDate, "new": newLot.ExpiryDate}
	}
	if oldLot.LocationCode != newLot.LocationCode {
		changes["locationCode"] = map[string]any{"old": oldLot.LocationCode, "new": newLot.LocationCode}
	}

	return changes
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
