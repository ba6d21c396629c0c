// Package stockcount provides physical-inventory count sessions: expected
// quantity snapshots, counted entries and their deltas.
package stockcount

import (
	"context"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

// Count status values. CLOSED is terminal.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// StockCount is one physical counting session.
type StockCount struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	Status string `db:"status" json:"status"`

	// Filter optionally narrows which lots PrepareLines seeds, as an
	// expression over lot fields. Stored verbatim for the audit trail.
	Filter string `db:"filter" json:"filter,omitempty"`

	CreatedBy string     `db:"created_by" json:"createdBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	ClosedAt  *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

// NewStockCount creates an open count.
func NewStockCount(name, filter, createdBy string) *StockCount {
	return &StockCount{
		ID:        id.New(),
		Name:      name,
		Status:    StatusOpen,
		Filter:    filter,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks count fields.
func (c *StockCount) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("count name is required").
			WithDetail("field", "name")
	}
	return nil
}

// Open reports whether lines may still be added or edited.
func (c *StockCount) Open() bool { return c.Status == StatusOpen }

// CountLine is one lot inside a counting session.
//
// ExpectedQty is snapshotted from the lot's remaining quantity when the line
// is created and never updated afterwards, regardless of what the ledger
// does to the lot in the meantime.
type CountLine struct {
	ID      id.ID `db:"id" json:"id"`
	CountID id.ID `db:"count_id" json:"countId"`
	ItemID  id.ID `db:"item_id" json:"itemId"`
	LotID   id.ID `db:"lot_id" json:"lotId"`

	LotCode string `db:"lot_code" json:"lotCode"`

	ExpectedQty types.Quantity  `db:"expected_qty" json:"expectedQty"`
	CountedQty  *types.Quantity `db:"counted_qty" json:"countedQty,omitempty"`

	Note string `db:"note" json:"note,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewCountLine snapshots a lot into a count.
func NewCountLine(countID, itemID, lotID id.ID, lotCode string, expected types.Quantity) *CountLine {
	now := time.Now().UTC()
	return &CountLine{
		ID:          id.New(),
		CountID:     countID,
		ItemID:      itemID,
		LotID:       lotID,
		LotCode:     lotCode,
		ExpectedQty: expected,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Counted reports whether a counted quantity has been entered.
func (l *CountLine) Counted() bool { return l.CountedQty != nil }

// Delta returns countedQty - expectedQty. Only meaningful once counted.
func (l *CountLine) Delta() types.Quantity {
	if l.CountedQty == nil {
		return 0
	}
	return *l.CountedQty - l.ExpectedQty
}
