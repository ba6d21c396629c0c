package item

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/types"
)

func TestItemValidate(t *testing.T) {
	ctx := context.Background()

	it := NewItem("RICE-1KG", "Rice 1kg", "kg")
	require.NoError(t, it.Validate(ctx))

	blankCode := NewItem("  ", "Rice 1kg", "kg")
	err := blankCode.Validate(ctx)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	blankName := NewItem("RICE-1KG", "", "kg")
	assert.Error(t, blankName.Validate(ctx))

	negativeMin := NewItem("RICE-1KG", "Rice 1kg", "kg")
	negativeMin.MinStock = types.MustQuantity("-1")
	assert.Error(t, negativeMin.Validate(ctx))
}

func TestItemLowStock(t *testing.T) {
	it := NewItem("RICE-1KG", "Rice 1kg", "kg")
	it.MinStock = types.MustQuantity("10")

	it.StockCurrent = types.MustQuantity("9")
	assert.True(t, it.LowStock())

	// Exactly at the threshold is not low.
	it.StockCurrent = types.MustQuantity("10")
	assert.False(t, it.LowStock())
}

func TestItemTouch(t *testing.T) {
	it := NewItem("RICE-1KG", "Rice 1kg", "kg")
	before := it.Version

	it.Touch()
	assert.Equal(t, before+1, it.Version)
	assert.False(t, it.UpdatedAt.Before(it.CreatedAt))
}
