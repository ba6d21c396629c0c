// Package item provides the item catalog: the goods a food bank stocks and
// hands out. Each item carries the denormalized current-stock total that the
// ledger maintains.
package item

import (
	"context"
	"strings"
	"time"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

// Item represents a catalog entry (e.g. "Rice 1kg", "UHT milk").
type Item struct {
	ID id.ID `db:"id" json:"id"`

	// Code is the unique item code within the organization.
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	// Unit is a free-text unit of measure ("kg", "can", "pack").
	// No multi-unit conversion is supported.
	Unit string `db:"unit" json:"unit"`

	// MinStock is the threshold below which the console flags a rupture.
	MinStock types.Quantity `db:"min_stock" json:"minStock"`

	// StockCurrent is the denormalized sum of remaining quantities over the
	// item's lots. It is recomputed by the ledger and never edited directly.
	StockCurrent types.Quantity `db:"stock_current" json:"stockCurrent"`

	// Version for optimistic locking (incremented on each update).
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewItem creates a new Item with generated ID.
func NewItem(code, name, unit string) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		Unit:      unit,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks item invariants.
func (i *Item) Validate(ctx context.Context) error {
	if strings.TrimSpace(i.Code) == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if i.MinStock.IsNegative() {
		return apperror.NewValidation("minimum stock cannot be negative").
			WithDetail("field", "minStock")
	}
	return nil
}

// LowStock reports whether current stock is below the minimum threshold.
func (i *Item) LowStock() bool {
	return i.StockCurrent < i.MinStock
}

// Touch updates the timestamp and increments the version.
func (i *Item) Touch() {
	i.UpdatedAt = time.Now().UTC()
	i.Version++
}
