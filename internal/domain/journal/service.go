package journal

import (
	"context"
	"fmt"

	appctx "larder/internal/core/context"
	"larder/pkg/logger"
)

// Service provides business operations for the move journal.
// Transactions are managed by the caller: moves are recorded as side effects
// of ledger mutations and must commit or roll back with them.
type Service struct {
	repo Repository
}

// NewService creates a new journal service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record validates and appends a single move. The actor is taken from the
// request context when the move does not carry one.
func (s *Service) Record(ctx context.Context, move StockMove) (StockMove, error) {
	if move.Actor == "" {
		move.Actor = appctx.GetActorID(ctx)
	}

	if err := move.Validate(ctx); err != nil {
		return StockMove{}, err
	}

	if err := s.repo.Insert(ctx, move); err != nil {
		return StockMove{}, fmt.Errorf("insert move: %w", err)
	}

	return move, nil
}

// RecordBatch validates and appends several moves at once (one per FEFO pick).
func (s *Service) RecordBatch(ctx context.Context, moves []StockMove) error {
	if len(moves) == 0 {
		return nil
	}

	actor := appctx.GetActorID(ctx)
	for i := range moves {
		if moves[i].Actor == "" {
			moves[i].Actor = actor
		}
		if err := moves[i].Validate(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.InsertBatch(ctx, moves); err != nil {
		return fmt.Errorf("insert moves: %w", err)
	}

	logger.Info(ctx, "recorded stock moves", "count", len(moves))
	return nil
}

// List retrieves moves ordered by creation time.
func (s *Service) List(ctx context.Context, filter MoveFilter) ([]StockMove, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
