package dto

import (
	"time"

	"larder/internal/core/types"
	"larder/internal/domain/allocation"
)

// DeductionRequest asks for a quantity to leave the ledger.
type DeductionRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required"`

	// PreferredLotID is consumed first when set (the box already in hand).
	PreferredLotID *string `json:"preferredLotId"`

	Reason string `json:"reason"`
}

// PickResponse is one planned draw from a lot.
type PickResponse struct {
	LotID        string         `json:"lotId"`
	LotCode      string         `json:"lotCode"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
	Quantity     types.Quantity `json:"quantity"`
	RemainingOld types.Quantity `json:"remainingOld"`
	RemainingNew types.Quantity `json:"remainingNew"`
}

// DeductionResponse is the executed (or simulated) plan.
type DeductionResponse struct {
	ItemID     string         `json:"itemId"`
	Requested  types.Quantity `json:"requested"`
	Picks      []PickResponse `json:"picks"`
	Applied    bool           `json:"applied"`
	StockAfter types.Quantity `json:"stockAfter"`
}

// FromDeductionResult maps a deduction result onto the API shape.
func FromDeductionResult(r allocation.DeductionResult) DeductionResponse {
	picks := make([]PickResponse, 0, len(r.Plan.Picks))
	for _, p := range r.Plan.Picks {
		picks = append(picks, PickResponse{
			LotID:        p.LotID.String(),
			LotCode:      p.LotCode,
			ExpiryDate:   p.ExpiryDate,
			Quantity:     p.Quantity,
			RemainingOld: p.RemainingOld,
			RemainingNew: p.RemainingNew,
		})
	}
	return DeductionResponse{
		ItemID:     r.Plan.ItemID.String(),
		Requested:  r.Plan.Requested,
		Picks:      picks,
		Applied:    r.Applied,
		StockAfter: r.StockAfter,
	}
}
