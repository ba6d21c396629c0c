package ledger

import (
	"context"

	"larder/internal/core/id"
	"larder/internal/core/types"
)

// LotFilter contains filtering options for lot queries.
type LotFilter struct {
	ItemID *id.ID

	// WithStockOnly keeps only lots with remaining_qty > 0.
	WithStockOnly bool

	Limit  int
	Offset int
}

// Repository defines storage operations for stock lots.
type Repository interface {
	Create(ctx context.Context, lot *StockLot) error
	GetByID(ctx context.Context, lotID id.ID) (*StockLot, error)

	// Update modifies a lot with optimistic locking on version.
	Update(ctx context.Context, lot *StockLot) error

	Delete(ctx context.Context, lotID id.ID) error

	// ListByItem returns all lots of an item. Callers mutating lots must hold
	// the item lock (see ItemStore.LockItem) before reading.
	ListByItem(ctx context.Context, itemID id.ID) ([]StockLot, error)

	List(ctx context.Context, filter LotFilter) ([]StockLot, error)

	// SumRemaining computes the aggregate over an item's lots in SQL.
	SumRemaining(ctx context.Context, itemID id.ID) (types.Quantity, error)

	// FindUntracked returns the item's untracked (sentinel) lot, or a
	// NotFound error when the item has none yet.
	FindUntracked(ctx context.Context, itemID id.ID) (*StockLot, error)
}

// ItemStore is the ledger's view of the item catalog: the per-item critical
// section and the denormalized total. Implemented by the item repository.
type ItemStore interface {
	// LockItem takes the per-item critical section (SELECT ... FOR UPDATE on
	// the item row). Every lot-affecting transaction locks the item first so
	// that concurrent mutation and recompute of the same item serialize.
	LockItem(ctx context.Context, itemID id.ID) error

	// SetStockCurrent writes the recomputed denormalized total.
	SetStockCurrent(ctx context.Context, itemID id.ID, total types.Quantity) error
}

// ChangeAuditor records entity-level change history for lots (who changed
// what), separate from the quantity journal.
type ChangeAuditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}
