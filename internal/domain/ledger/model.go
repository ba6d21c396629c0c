// Package ledger provides the stock lot ledger: batches of stock per item,
// their quantity invariants, and the denormalized per-item stock total.
package ledger

import (
	"context"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

// SentinelLotCode is the wire representation of an untracked batch. Items
// without real lot numbers get exactly one untracked lot per item.
const SentinelLotCode = "NOLOT"

// LotCode is a tagged batch identifier. The untracked flag is stored
// separately from the code, so a real lot literally named "NOLOT" never
// collides with the sentinel.
type LotCode struct {
	code      string
	untracked bool
}

// TrackedLotCode creates a code for a real batch.
func TrackedLotCode(code string) LotCode {
	return LotCode{code: code}
}

// UntrackedLotCode creates the marker for an item without batch tracking.
func UntrackedLotCode() LotCode {
	return LotCode{untracked: true}
}

// ParseLotCode maps the wire format onto the tagged variant: the sentinel
// string and the empty string both mean "untracked".
func ParseLotCode(s string) LotCode {
	if s == "" || s == SentinelLotCode {
		return UntrackedLotCode()
	}
	return TrackedLotCode(s)
}

// Untracked reports whether this is the no-batch marker.
func (c LotCode) Untracked() bool { return c.untracked }

// Code returns the raw batch code ("" for untracked lots).
func (c LotCode) Code() string { return c.code }

// String returns the wire format the console expects.
func (c LotCode) String() string {
	if c.untracked {
		return SentinelLotCode
	}
	return c.code
}

// StockLot is a batch of stock sharing entry/expiry/donor metadata.
//
// Invariants: 0 <= RemainingQty <= Quantity; ExpiryDate >= EntryDate when set.
type StockLot struct {
	ID     id.ID `db:"id" json:"id"`
	ItemID id.ID `db:"item_id" json:"itemId"`

	LotCode LotCode `db:"-" json:"lotCode"`

	// Quantity is the immutable inbound amount.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// RemainingQty is what is still on the shelf.
	RemainingQty types.Quantity `db:"remaining_qty" json:"remainingQty"`

	EntryDate  time.Time  `db:"entry_date" json:"entryDate"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	DonorID      *id.ID `db:"donor_id" json:"donorId,omitempty"`
	LocationCode string `db:"location_code" json:"locationCode,omitempty"`

	// Version for optimistic locking.
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewStockLot creates a lot with generated ID and timestamps.
func NewStockLot(itemID id.ID, code LotCode, quantity, remaining types.Quantity, entryDate time.Time) *StockLot {
	now := time.Now().UTC()
	return &StockLot{
		ID:           id.New(),
		ItemID:       itemID,
		LotCode:      code,
		Quantity:     quantity,
		RemainingQty: remaining,
		EntryDate:    entryDate,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks lot invariants.
func (l *StockLot) Validate(ctx context.Context) error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}

	if l.Quantity.IsNegative() {
		return apperror.NewInvalidQuantity("quantity cannot be negative").
			WithDetail("quantity", l.Quantity)
	}
	if l.RemainingQty.IsNegative() {
		return apperror.NewInvalidQuantity("remaining quantity cannot be negative").
			WithDetail("remainingQty", l.RemainingQty)
	}
	if l.RemainingQty > l.Quantity {
		return apperror.NewInvalidQuantity("remaining quantity cannot exceed inbound quantity").
			WithDetail("remainingQty", l.RemainingQty).
			WithDetail("quantity", l.Quantity)
	}

	if l.EntryDate.IsZero() {
		return apperror.NewValidation("entry date is required").
			WithDetail("field", "entryDate")
	}
	if l.ExpiryDate != nil && l.ExpiryDate.Before(l.EntryDate) {
		return apperror.NewInvalidDateRange("expiry date cannot precede entry date").
			WithDetail("entryDate", l.EntryDate).
			WithDetail("expiryDate", *l.ExpiryDate)
	}

	return nil
}

// Expired reports whether the lot is past its expiry date.
// Lots without an expiry date never expire.
func (l *StockLot) Expired(now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// HasStock reports whether the lot still holds quantity.
func (l *StockLot) HasStock() bool {
	return l.RemainingQty.IsPositive()
}

// Touch updates the timestamp and increments the version.
func (l *StockLot) Touch() {
	l.UpdatedAt = time.Now().UTC()
	l.Version++
}

// LotPatch carries the updatable lot fields. Nil means "leave unchanged".
// Quantity and RemainingQty are patchable together or separately; the merged
// result is re-validated against the full invariant set.
type LotPatch struct {
	LotCode      *LotCode
	Quantity     *types.Quantity
	RemainingQty *types.Quantity
	EntryDate    *time.Time
	ExpiryDate   *time.Time
	ClearExpiry  bool
	DonorID      *id.ID
	ClearDonor   bool
	LocationCode *string
}

// Apply merges the patch into a copy of the lot and returns it.
func (p LotPatch) Apply(lot StockLot) StockLot {
	if p.LotCode != nil {
		lot.LotCode = *p.LotCode
	}
	if p.Quantity != nil {
		lot.Quantity = *p.Quantity
	}
	if p.RemainingQty != nil {
		lot.RemainingQty = *p.RemainingQty
	}
	if p.EntryDate != nil {
		lot.EntryDate = *p.EntryDate
	}
	if p.ClearExpiry {
		lot.ExpiryDate = nil
	} else if p.ExpiryDate != nil {
		expiry := *p.ExpiryDate
		lot.ExpiryDate = &expiry
	}
	if p.ClearDonor {
		lot.DonorID = nil
	} else if p.DonorID != nil {
		donor := *p.DonorID
		lot.DonorID = &donor
	}
	if p.LocationCode != nil {
		lot.LocationCode = *p.LocationCode
	}
	return lot
}

// AdjustResult reports the outcome of an explicit remaining-quantity change.
type AdjustResult struct {
	LotID        id.ID          `json:"lotId"`
	Delta        types.Quantity `json:"delta"`
	OldRemaining types.Quantity `json:"oldRemaining"`
	NewRemaining types.Quantity `json:"newRemaining"`
}
