package item

import (
	"context"

	"larder/internal/core/id"
)

// ListFilter contains filtering options for item lists.
type ListFilter struct {
	// Search matches against code and name (case-insensitive substring).
	Search string

	// LowStockOnly keeps only items with stock_current < min_stock.
	LowStockOnly bool

	// OrderBy specifies sorting (e.g. "name", "-created_at").
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "name",
	}
}

// ListResult contains paginated results.
type ListResult struct {
	Items      []*Item `json:"items"`
	TotalCount int64   `json:"totalCount"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

// Repository defines storage operations for the item catalog.
type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
	GetByCode(ctx context.Context, code string) (*Item, error)

	// Update modifies an existing item with optimistic locking on version.
	Update(ctx context.Context, it *Item) error

	Delete(ctx context.Context, itemID id.ID) error
	List(ctx context.Context, filter ListFilter) (ListResult, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}
