package dto

import (
	"time"

	"larder/internal/core/types"
	"larder/internal/domain/stockcount"
)

// CreateCountRequest opens a counting session.
type CreateCountRequest struct {
	Name string `json:"name" binding:"required"`

	// Filter optionally narrows which lots PrepareLines seeds.
	Filter string `json:"filter"`
}

// AddLineRequest snapshots one lot into a count. Omitting lotId targets the
// item's untracked lot.
type AddLineRequest struct {
	ItemID string  `json:"itemId" binding:"required"`
	LotID  *string `json:"lotId"`
}

// SetCountedQtyRequest records a counted quantity on a line.
type SetCountedQtyRequest struct {
	CountedQty types.Quantity `json:"countedQty"`
	Note       string         `json:"note"`
}

// CloseCountRequest closes a count, optionally writing deltas back into the
// ledger.
type CloseCountRequest struct {
	ApplyAdjustments bool `json:"applyAdjustments"`
}

// CountResponse is the API shape of a counting session.
type CountResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Filter    string     `json:"filter,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// FromCount maps a count onto the API shape.
func FromCount(c *stockcount.StockCount) CountResponse {
	return CountResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Status:    c.Status,
		Filter:    c.Filter,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		ClosedAt:  c.ClosedAt,
	}
}

// CountListResponse is a count list.
type CountListResponse struct {
	Items []CountResponse `json:"items"`
}

// CountLineResponse is the API shape of a count line. Delta is present only
// once a counted quantity has been entered.
type CountLineResponse struct {
	ID          string          `json:"id"`
	CountID     string          `json:"countId"`
	ItemID      string          `json:"itemId"`
	LotID       string          `json:"lotId"`
	LotCode     string          `json:"lotCode"`
	ExpectedQty types.Quantity  `json:"expectedQty"`
	CountedQty  *types.Quantity `json:"countedQty,omitempty"`
	Delta       *types.Quantity `json:"delta,omitempty"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// FromCountLine maps a count line onto the API shape.
func FromCountLine(l *stockcount.CountLine) CountLineResponse {
	resp := CountLineResponse{
		ID:          l.ID.String(),
		CountID:     l.CountID.String(),
		ItemID:      l.ItemID.String(),
		LotID:       l.LotID.String(),
		LotCode:     l.LotCode,
		ExpectedQty: l.ExpectedQty,
		CountedQty:  l.CountedQty,
		Note:        l.Note,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.Counted() {
		delta := l.Delta()
		resp.Delta = &delta
	}
	return resp
}

// CountLineListResponse is a count's lines.
type CountLineListResponse struct {
	Items []CountLineResponse `json:"items"`
}
