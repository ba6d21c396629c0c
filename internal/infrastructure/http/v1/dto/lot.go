package dto

import (
	"time"

	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/ledger"
)

// CreateLotRequest is the payload for registering a batch.
// An empty or sentinel lotCode creates the item's untracked lot.
type CreateLotRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	LotCode  string `json:"lotCode"`

	Quantity types.Quantity `json:"quantity" binding:"required"`

	// RemainingQty defaults to quantity when omitted.
	RemainingQty *types.Quantity `json:"remainingQty"`

	EntryDate  time.Time  `json:"entryDate" binding:"required"`
	ExpiryDate *time.Time `json:"expiryDate"`

	DonorID      *string `json:"donorId"`
	LocationCode string  `json:"locationCode"`
}

// UpdateLotRequest is the payload for patching a lot. Nil fields are left
// unchanged; the clear flags reset nullable fields explicitly.
type UpdateLotRequest struct {
	LotCode      *string         `json:"lotCode"`
	Quantity     *types.Quantity `json:"quantity"`
	RemainingQty *types.Quantity `json:"remainingQty"`
	EntryDate    *time.Time      `json:"entryDate"`
	ExpiryDate   *time.Time      `json:"expiryDate"`
	ClearExpiry  bool            `json:"clearExpiry"`
	DonorID      *string         `json:"donorId"`
	ClearDonor   bool            `json:"clearDonor"`
	LocationCode *string         `json:"locationCode"`
}

// ToPatch converts the request into a domain patch.
func (r UpdateLotRequest) ToPatch() (ledger.LotPatch, error) {
	patch := ledger.LotPatch{
		Quantity:     r.Quantity,
		RemainingQty: r.RemainingQty,
		EntryDate:    r.EntryDate,
		ExpiryDate:   r.ExpiryDate,
		ClearExpiry:  r.ClearExpiry,
		ClearDonor:   r.ClearDonor,
		LocationCode: r.LocationCode,
	}

	if r.LotCode != nil {
		code := ledger.ParseLotCode(*r.LotCode)
		patch.LotCode = &code
	}
	if r.DonorID != nil {
		donor, err := id.Parse(*r.DonorID)
		if err != nil {
			return ledger.LotPatch{}, err
		}
		patch.DonorID = &donor
	}

	return patch, nil
}

// AdjustLotRequest sets a lot's remaining quantity to an explicit value.
type AdjustLotRequest struct {
	RemainingQty types.Quantity `json:"remainingQty"`
	Reason       string         `json:"reason"`
}

// LotResponse is the API shape of a stock lot.
type LotResponse struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"itemId"`
	LotCode      string          `json:"lotCode"`
	Untracked    bool            `json:"untracked"`
	Quantity     types.Quantity  `json:"quantity"`
	RemainingQty types.Quantity  `json:"remainingQty"`
	EntryDate    time.Time       `json:"entryDate"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
	DonorID      *string         `json:"donorId,omitempty"`
	LocationCode string          `json:"locationCode,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// FromLot maps a domain lot onto the API shape.
func FromLot(lot *ledger.StockLot) LotResponse {
	resp := LotResponse{
		ID:           lot.ID.String(),
		ItemID:       lot.ItemID.String(),
		LotCode:      lot.LotCode.String(),
		Untracked:    lot.LotCode.Untracked(),
		Quantity:     lot.Quantity,
		RemainingQty: lot.RemainingQty,
		EntryDate:    lot.EntryDate,
		ExpiryDate:   lot.ExpiryDate,
		LocationCode: lot.LocationCode,
		Version:      lot.Version,
		CreatedAt:    lot.CreatedAt,
		UpdatedAt:    lot.UpdatedAt,
	}
	if lot.DonorID != nil {
		donor := lot.DonorID.String()
		resp.DonorID = &donor
	}
	return resp
}

// LotListResponse is a lot list in consumption order.
type LotListResponse struct {
	Items []LotResponse `json:"items"`
}

// AdjustResultResponse reports an explicit remaining-quantity change.
type AdjustResultResponse struct {
	LotID        string         `json:"lotId"`
	Delta        types.Quantity `json:"delta"`
	OldRemaining types.Quantity `json:"oldRemaining"`
	NewRemaining types.Quantity `json:"newRemaining"`
}

// FromAdjustResult maps an adjust result onto the API shape.
func FromAdjustResult(r ledger.AdjustResult) AdjustResultResponse {
	return AdjustResultResponse{
		LotID:        r.LotID.String(),
		Delta:        r.Delta,
		OldRemaining: r.OldRemaining,
		NewRemaining: r.NewRemaining,
	}
}
