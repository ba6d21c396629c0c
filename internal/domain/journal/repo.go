package journal

import (
	"context"
	"time"

	"larder/internal/core/id"
)

// MoveFilter contains filtering options for journal queries.
type MoveFilter struct {
	ItemID   *id.ID
	LotID    *id.ID
	Type     *MoveType
	FromDate *time.Time
	ToDate   *time.Time

	// Descending orders by created_at DESC when true (default ascending).
	Descending bool

	Limit  int
	Offset int
}

// Repository defines storage operations for the move journal.
// Insert-only by design: there are no update or delete operations.
type Repository interface {
	Insert(ctx context.Context, move StockMove) error
	InsertBatch(ctx context.Context, moves []StockMove) error
	List(ctx context.Context, filter MoveFilter) ([]StockMove, error)
}
