package dto

import (
	"time"

	"larder/internal/core/types"
	"larder/internal/domain/catalog/item"
)

// CreateItemRequest is the payload for creating a catalog item.
type CreateItemRequest struct {
	Code     string         `json:"code" binding:"required"`
	Name     string         `json:"name" binding:"required"`
	Unit     string         `json:"unit"`
	MinStock types.Quantity `json:"minStock"`
}

// UpdateItemRequest is the payload for updating a catalog item.
// Nil fields are left unchanged.
type UpdateItemRequest struct {
	Code     *string         `json:"code"`
	Name     *string         `json:"name"`
	Unit     *string         `json:"unit"`
	MinStock *types.Quantity `json:"minStock"`
}

// ItemResponse is the API shape of a catalog item.
type ItemResponse struct {
	ID           string         `json:"id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Unit         string         `json:"unit"`
	MinStock     types.Quantity `json:"minStock"`
	StockCurrent types.Quantity `json:"stockCurrent"`
	LowStock     bool           `json:"lowStock"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromItem maps a domain item onto the API shape.
func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		ID:           it.ID.String(),
		Code:         it.Code,
		Name:         it.Name,
		Unit:         it.Unit,
		MinStock:     it.MinStock,
		StockCurrent: it.StockCurrent,
		LowStock:     it.LowStock(),
		Version:      it.Version,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

// ItemListResponse is a paginated item list.
type ItemListResponse struct {
	Items      []ItemResponse `json:"items"`
	TotalCount int64          `json:"totalCount"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}
