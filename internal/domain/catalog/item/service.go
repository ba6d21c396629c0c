package item

import (
	"context"
	"fmt"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/tx"
	"larder/pkg/logger"
)

// Service provides business operations for the item catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new item catalog service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create inserts a new catalog item.
func (s *Service) Create(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	exists, err := s.repo.ExistsByCode(ctx, it.Code)
	if err != nil {
		return fmt.Errorf("check code: %w", err)
	}
	if exists {
		return apperror.NewStateConflict("item with this code already exists").
			WithDetail("code", it.Code)
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	logger.Info(ctx, "item created", "id", it.ID, "code", it.Code)
	return nil
}

// GetByID retrieves an item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.GetByID(ctx, itemID)
}

// Update modifies item master data. StockCurrent is not writable through this
// path; the stored value always wins.
func (s *Service) Update(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, it.ID)
		if err != nil {
			return err
		}
		it.StockCurrent = current.StockCurrent
		it.Touch()
		return s.repo.Update(ctx, it)
	})
}

// Delete removes an item from the catalog.
func (s *Service) Delete(ctx context.Context, itemID id.ID) error {
	if err := s.repo.Delete(ctx, itemID); err != nil {
		return err
	}
	logger.Info(ctx, "item deleted", "id", itemID)
	return nil
}

// List retrieves items with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListFilter().Limit
	}
	return s.repo.List(ctx, filter)
}
