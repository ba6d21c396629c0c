package stockcount

import (
	"context"
	"time"

	"larder/internal/core/id"
)

// CountFilter contains filtering options for count queries.
type CountFilter struct {
	Status *string

	Limit  int
	Offset int
}

// Repository defines storage operations for counts and their lines.
type Repository interface {
	CreateCount(ctx context.Context, count *StockCount) error
	GetCount(ctx context.Context, countID id.ID) (*StockCount, error)
	ListCounts(ctx context.Context, filter CountFilter) ([]StockCount, error)

	// CloseCount flips an open count to closed. Returns a StateConflict error
	// when the count is already closed and NotFound when it does not exist,
	// so a concurrent double close loses deterministically.
	CloseCount(ctx context.Context, countID id.ID, closedAt time.Time) error

	CreateLine(ctx context.Context, line *CountLine) error
	CreateLines(ctx context.Context, lines []CountLine) error
	GetLine(ctx context.Context, lineID id.ID) (*CountLine, error)
	ListLines(ctx context.Context, countID id.ID) ([]CountLine, error)

	// UpdateCounted writes countedQty and note. The update joins on the
	// parent count being open; a StateConflict error is returned when the
	// count closed between read and write.
	UpdateCounted(ctx context.Context, line *CountLine) error

	// HasLineForLot reports whether the count already carries a line for the
	// lot.
	HasLineForLot(ctx context.Context, countID, lotID id.ID) (bool, error)
}
