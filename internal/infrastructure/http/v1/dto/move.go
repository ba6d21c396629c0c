package dto

import (
	"time"

	"larder/internal/core/types"
	"larder/internal/domain/journal"
)

// MoveResponse is the API shape of a journal entry.
type MoveResponse struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"itemId"`
	LotID     string         `json:"lotId"`
	Type      string         `json:"type"`
	Quantity  types.Quantity `json:"quantity"`
	Reason    string         `json:"reason,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromMove maps a journal entry onto the API shape.
func FromMove(m journal.StockMove) MoveResponse {
	return MoveResponse{
		ID:        m.ID.String(),
		ItemID:    m.ItemID.String(),
		LotID:     m.LotID.String(),
		Type:      string(m.Type),
		Quantity:  m.Quantity,
		Reason:    m.Reason,
		Actor:     m.Actor,
		CreatedAt: m.CreatedAt,
	}
}

// MoveListResponse is a journal page.
type MoveListResponse struct {
	Items []MoveResponse `json:"items"`
}
