// Package journal provides the stock move journal: an append-only audit trail
// of every ledger mutation. Moves are immutable once written and are never a
// source of truth for the denormalized stock total.
package journal

import (
	"context"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

// MoveType defines the kind of ledger mutation a move records.
type MoveType string

const (
	// MoveIn records stock entering the ledger (donation intake, manual entry).
	MoveIn MoveType = "IN"
	// MoveOut records stock leaving the ledger (delivery confirmation).
	MoveOut MoveType = "OUT"
	// MoveAdjust records a signed correction of a lot's remaining quantity.
	MoveAdjust MoveType = "ADJUST"
	// MoveTransfer records a location-tag change without quantity effect.
	MoveTransfer MoveType = "TRANSFER"
)

// StockMove is one journal entry. Append-only: never updated or deleted.
type StockMove struct {
	ID     id.ID    `db:"id" json:"id"`
	ItemID id.ID    `db:"item_id" json:"itemId"`
	LotID  id.ID    `db:"lot_id" json:"lotId"`
	Type   MoveType `db:"move_type" json:"type"`

	// Quantity is positive for IN/OUT/TRANSFER and signed for ADJUST.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	Reason    string    `db:"reason" json:"reason,omitempty"`
	Actor     string    `db:"actor" json:"actor,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMove creates a move with generated ID and timestamp.
func NewStockMove(itemID, lotID id.ID, moveType MoveType, qty types.Quantity, reason string) StockMove {
	return StockMove{
		ID:        id.New(),
		ItemID:    itemID,
		LotID:     lotID,
		Type:      moveType,
		Quantity:  qty,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks move invariants.
func (m *StockMove) Validate(ctx context.Context) error {
	switch m.Type {
	case MoveIn, MoveOut, MoveTransfer:
		if !m.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity("move quantity must be positive").
				WithDetail("type", string(m.Type))
		}
	case MoveAdjust:
		if m.Quantity.IsZero() {
			return apperror.NewInvalidQuantity("adjustment quantity cannot be zero")
		}
	default:
		return apperror.NewValidation("invalid move type").
			WithDetail("type", string(m.Type))
	}

	if id.IsNil(m.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if id.IsNil(m.LotID) {
		return apperror.NewValidation("lot is required").
			WithDetail("field", "lotId")
	}
	return nil
}
