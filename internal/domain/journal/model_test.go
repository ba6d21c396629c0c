package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

func TestStockMoveValidate(t *testing.T) {
	ctx := context.Background()
	itemID, lotID := id.New(), id.New()

	move := NewStockMove(itemID, lotID, MoveIn, types.MustQuantity("5"), "intake")
	require.NoError(t, move.Validate(ctx))

	// ADJUST is the only signed type.
	adjust := NewStockMove(itemID, lotID, MoveAdjust, types.MustQuantity("-3"), "spoilage")
	require.NoError(t, adjust.Validate(ctx))

	cases := []struct {
		name string
		move StockMove
	}{
		{"negative IN", NewStockMove(itemID, lotID, MoveIn, types.MustQuantity("-1"), "")},
		{"zero OUT", NewStockMove(itemID, lotID, MoveOut, types.MustQuantity("0"), "")},
		{"zero ADJUST", NewStockMove(itemID, lotID, MoveAdjust, types.MustQuantity("0"), "")},
		{"unknown type", NewStockMove(itemID, lotID, MoveType("WAT"), types.MustQuantity("1"), "")},
		{"nil item", NewStockMove(id.Nil(), lotID, MoveIn, types.MustQuantity("1"), "")},
		{"nil lot", NewStockMove(itemID, id.Nil(), MoveIn, types.MustQuantity("1"), "")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.move.Validate(ctx)
			require.Error(t, err)
			_, ok := apperror.AsAppError(err)
			assert.True(t, ok)
		})
	}
}
