// Package allocation plans and applies stock deductions across lots using
// first-expired-first-out order.
package allocation

import (
	"bytes"
	"sort"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/ledger"
)

// Pick is one planned draw from a single lot.
type Pick struct {
	LotID        id.ID          `json:"lotId"`
	LotCode      string         `json:"lotCode"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
	Quantity     types.Quantity `json:"quantity"`
	RemainingOld types.Quantity `json:"remainingOld"`
	RemainingNew types.Quantity `json:"remainingNew"`
}

// Plan is a complete deduction plan. Plans are all-or-nothing: a plan either
// covers the full requested quantity or does not exist.
type Plan struct {
	ItemID    id.ID          `json:"itemId"`
	Requested types.Quantity `json:"requested"`
	Picks     []Pick         `json:"picks"`
}

// PlanDeduction builds a deduction plan over the given lots.
//
// Order of consumption: the preferred lot first when it holds stock, then
// remaining lots by expiry date ascending with undated lots last, ties broken
// by ascending lot id so the order is stable across runs. When the lots cannot
// cover the requested quantity an InsufficientStock error is returned and no
// plan exists.
func PlanDeduction(itemID id.ID, lots []ledger.StockLot, requested types.Quantity, preferred *id.ID) (Plan, error) {
	if !requested.IsPositive() {
		return Plan{}, apperror.NewInvalidQuantity("deduction quantity must be positive").
			WithDetail("quantity", requested)
	}

	candidates := make([]ledger.StockLot, 0, len(lots))
	var available types.Quantity
	for _, lot := range lots {
		if !lot.HasStock() {
			continue
		}
		available += lot.RemainingQty
		candidates = append(candidates, lot)
	}

	if available < requested {
		return Plan{}, apperror.NewInsufficientStock(itemID.String(), requested.Float64(), available.Float64())
	}

	sortFEFO(candidates, preferred)

	plan := Plan{ItemID: itemID, Requested: requested}
	left := requested
	for _, lot := range candidates {
		if left.IsZero() {
			break
		}
		take := left.Min(lot.RemainingQty)
		plan.Picks = append(plan.Picks, Pick{
			LotID:        lot.ID,
			LotCode:      lot.LotCode.String(),
			ExpiryDate:   lot.ExpiryDate,
			Quantity:     take,
			RemainingOld: lot.RemainingQty,
			RemainingNew: lot.RemainingQty - take,
		})
		left -= take
	}

	return plan, nil
}

// sortFEFO orders lots for consumption: preferred first, then expiry
// ascending with nil expiry last, then lot id ascending.
func sortFEFO(lots []ledger.StockLot, preferred *id.ID) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]

		if preferred != nil {
			ap, bp := a.ID == *preferred, b.ID == *preferred
			if ap != bp {
				return ap
			}
		}

		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			// fall through to id tie-break
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}

		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
