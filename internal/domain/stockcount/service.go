package stockcount

import (
	"context"
	"fmt"
	"time"

	"larder/internal/core/apperror"
	appctx "larder/internal/core/context"
	"larder/internal/core/id"
	"larder/internal/core/tx"
	"larder/internal/core/types"
	"larder/internal/domain/ledger"
	"larder/pkg/logger"
)

// prepare reads lots in pages to keep memory bounded on large ledgers.
const preparePageSize = 500

// Service provides business operations for stock counts.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new stock count service.
func NewService(repo Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// CreateCount opens a counting session. The filter expression, when present,
// is compiled here so a malformed filter fails the request immediately.
func (s *Service) CreateCount(ctx context.Context, name, filter string) (*StockCount, error) {
	if _, err := CompileLotFilter(filter); err != nil {
		return nil, err
	}

	count := NewStockCount(name, filter, appctx.GetActorID(ctx))
	if err := count.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCount(ctx, count); err != nil {
		return nil, fmt.Errorf("create count: %w", err)
	}

	logger.Info(ctx, "count created", "count_id", count.ID, "name", count.Name)
	return count, nil
}

// GetCount retrieves a count.
func (s *Service) GetCount(ctx context.Context, countID id.ID) (*StockCount, error) {
	return s.repo.GetCount(ctx, countID)
}

// ListCounts retrieves counts with filtering.
func (s *Service) ListCounts(ctx context.Context, filter CountFilter) ([]StockCount, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListCounts(ctx, filter)
}

// AddLine snapshots one lot into the count. When lotID is nil the item's
// untracked lot is resolved, creating an empty one for items that have never
// held untracked stock.
func (s *Service) AddLine(ctx context.Context, countID, itemID id.ID, lotID *id.ID) (*CountLine, error) {
	count, err := s.repo.GetCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if !count.Open() {
		return nil, apperror.NewStateConflict("count is closed").
			WithDetail("countId", countID)
	}

	var lot *ledger.StockLot
	if lotID == nil {
		lot, err = s.ledger.ResolveUntracked(ctx, itemID)
	} else {
		lot, err = s.ledger.GetByID(ctx, *lotID)
	}
	if err != nil {
		return nil, err
	}

	if lot.ItemID != itemID {
		return nil, apperror.NewValidation("lot does not belong to the item").
			WithDetail("lotId", lot.ID).
			WithDetail("itemId", itemID)
	}

	exists, err := s.repo.HasLineForLot(ctx, countID, lot.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.NewStateConflict("lot is already part of the count").
			WithDetail("lotId", lot.ID)
	}

	line := NewCountLine(countID, itemID, lot.ID, lot.LotCode.String(), lot.RemainingQty)
	if err := s.repo.CreateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("create count line: %w", err)
	}

	return line, nil
}

// PrepareLines seeds the count from the current lot snapshot, applying the
// count's filter expression when one is set. Lots already lined are skipped,
// so preparing twice is harmless.
func (s *Service) PrepareLines(ctx context.Context, countID id.ID) ([]CountLine, error) {
	count, err := s.repo.GetCount(ctx, countID)
	if err != nil {
		return nil, err
	}
	if !count.Open() {
		return nil, apperror.NewStateConflict("count is closed").
			WithDetail("countId", countID)
	}

	filter, err := CompileLotFilter(count.Filter)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListLines(ctx, countID)
	if err != nil {
		return nil, err
	}
	lined := make(map[id.ID]bool, len(existing))
	for _, line := range existing {
		lined[line.LotID] = true
	}

	now := time.Now().UTC()
	var created []CountLine

	for offset := 0; ; offset += preparePageSize {
		lots, err := s.ledger.List(ctx, ledger.LotFilter{Limit: preparePageSize, Offset: offset})
		if err != nil {
			return nil, err
		}

		for _, lot := range lots {
			if lined[lot.ID] {
				continue
			}
			matched, err := filter.Match(lot, now)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
			line := NewCountLine(countID, lot.ItemID, lot.ID, lot.LotCode.String(), lot.RemainingQty)
			created = append(created, *line)
		}

		if len(lots) < preparePageSize {
			break
		}
	}

	if len(created) > 0 {
		if err := s.repo.CreateLines(ctx, created); err != nil {
			return nil, fmt.Errorf("create count lines: %w", err)
		}
	}

	logger.Info(ctx, "count lines prepared", "count_id", countID, "lines", len(created))
	return created, nil
}

// SetCountedQty records a counted quantity on a line. Fails with a
// StateConflict error when the parent count is closed, including the case
// where the count closes between the read and the write.
func (s *Service) SetCountedQty(ctx context.Context, lineID id.ID, counted types.Quantity, note string) (*CountLine, error) {
	if counted.IsNegative() {
		return nil, apperror.NewInvalidQuantity("counted quantity cannot be negative").
			WithDetail("countedQty", counted)
	}

	line, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.GetCount(ctx, line.CountID)
	if err != nil {
		return nil, err
	}
	if !count.Open() {
		return nil, apperror.NewStateConflict("count is closed").
			WithDetail("countId", count.ID)
	}

	line.CountedQty = &counted
	line.Note = note
	line.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateCounted(ctx, line); err != nil {
		return nil, err
	}

	return line, nil
}

// CloseCount transitions a count to its terminal state. By default closing
// is a pure audit snapshot and leaves the ledger untouched. With
// applyAdjustments the close transaction also writes every counted non-zero
// delta back into the ledger, one ADJUST move per line.
func (s *Service) CloseCount(ctx context.Context, countID id.ID, applyAdjustments bool) (*StockCount, error) {
	var closed *StockCount

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		closedAt := time.Now().UTC()
		if err := s.repo.CloseCount(ctx, countID, closedAt); err != nil {
			return err
		}

		if applyAdjustments {
			lines, err := s.repo.ListLines(ctx, countID)
			if err != nil {
				return err
			}
			for _, line := range lines {
				if !line.Counted() || line.Delta().IsZero() {
					continue
				}
				reason := fmt.Sprintf("count reconciliation %s", countID)
				if _, err := s.ledger.AdjustRemaining(ctx, line.LotID, *line.CountedQty, reason); err != nil {
					// A surplus beyond the lot's inbound quantity cannot be
					// reconciled by adjusting remaining stock. Surface it as a
					// conflict the operator can act on, not a bad request.
					if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeInvalidQuantity {
						return apperror.NewStateConflict("counted quantity exceeds the lot's inbound quantity; correct the lot before closing with adjustments").
							WithDetail("lineId", line.ID).
							WithDetail("lotId", line.LotID).
							WithDetail("countedQty", *line.CountedQty)
					}
					return fmt.Errorf("reconcile line %s: %w", line.ID, err)
				}
			}
		}

		count, err := s.repo.GetCount(ctx, countID)
		if err != nil {
			return err
		}
		closed = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "count closed",
		"count_id", countID,
		"adjustments_applied", applyAdjustments,
	)
	return closed, nil
}

// ListLines returns the lines of a count.
func (s *Service) ListLines(ctx context.Context, countID id.ID) ([]CountLine, error) {
	if _, err := s.repo.GetCount(ctx, countID); err != nil {
		return nil, err
	}
	return s.repo.ListLines(ctx, countID)
}
