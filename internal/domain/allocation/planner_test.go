package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/ledger"
)

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testLot(lotID, code string, expiry *time.Time, remaining string) ledger.StockLot {
	qty := types.MustQuantity(remaining)
	return ledger.StockLot{
		ID:           id.MustParse(lotID),
		ItemID:       id.MustParse("018f0000-0000-7000-8000-000000000001"),
		LotCode:      ledger.TrackedLotCode(code),
		Quantity:     qty,
		RemainingQty: qty,
		EntryDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:   expiry,
	}
}

func TestPlanDeductionExpiryOrder(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lots := []ledger.StockLot{
		testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-06-01"), "5"),
		testLot("018f0000-0000-7000-8000-00000000000b", "B", datePtr("2024-05-20"), "4"),
		testLot("018f0000-0000-7000-8000-00000000000c", "C", nil, "10"),
	}

	plan, err := PlanDeduction(itemID, lots, types.MustQuantity("8"), nil)
	require.NoError(t, err)

	// B expires first and is drained, A covers the rest, C is untouched.
	require.Len(t, plan.Picks, 2)
	assert.Equal(t, "B", plan.Picks[0].LotCode)
	assert.Equal(t, types.MustQuantity("4"), plan.Picks[0].Quantity)
	assert.Equal(t, types.MustQuantity("0"), plan.Picks[0].RemainingNew)
	assert.Equal(t, "A", plan.Picks[1].LotCode)
	assert.Equal(t, types.MustQuantity("4"), plan.Picks[1].Quantity)
	assert.Equal(t, types.MustQuantity("1"), plan.Picks[1].RemainingNew)
}

func TestPlanDeductionUndatedLast(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lots := []ledger.StockLot{
		testLot("018f0000-0000-7000-8000-00000000000a", "NODATE", nil, "10"),
		testLot("018f0000-0000-7000-8000-00000000000b", "DATED", datePtr("2030-01-01"), "2"),
	}

	plan, err := PlanDeduction(itemID, lots, types.MustQuantity("3"), nil)
	require.NoError(t, err)

	require.Len(t, plan.Picks, 2)
	assert.Equal(t, "DATED", plan.Picks[0].LotCode)
	assert.Equal(t, "NODATE", plan.Picks[1].LotCode)
	assert.Equal(t, types.MustQuantity("1"), plan.Picks[1].Quantity)
}

func TestPlanDeductionPreferredLotFirst(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	preferred := id.MustParse("018f0000-0000-7000-8000-00000000000c")
	lots := []ledger.StockLot{
		testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-05-01"), "5"),
		testLot("018f0000-0000-7000-8000-00000000000c", "C", datePtr("2024-08-01"), "3"),
	}

	plan, err := PlanDeduction(itemID, lots, types.MustQuantity("4"), &preferred)
	require.NoError(t, err)

	// Preferred lot drains first even though it expires later.
	require.Len(t, plan.Picks, 2)
	assert.Equal(t, preferred, plan.Picks[0].LotID)
	assert.Equal(t, types.MustQuantity("3"), plan.Picks[0].Quantity)
	assert.Equal(t, "A", plan.Picks[1].LotCode)
	assert.Equal(t, types.MustQuantity("1"), plan.Picks[1].Quantity)
}

func TestPlanDeductionSameExpiryTieBreak(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	expiry := datePtr("2024-05-01")
	lots := []ledger.StockLot{
		testLot("018f0000-0000-7000-8000-0000000000ff", "HIGH", expiry, "5"),
		testLot("018f0000-0000-7000-8000-000000000001", "LOW", expiry, "5"),
	}

	plan, err := PlanDeduction(itemID, lots, types.MustQuantity("6"), nil)
	require.NoError(t, err)

	// Equal expiry dates fall back to ascending lot id.
	require.Len(t, plan.Picks, 2)
	assert.Equal(t, "LOW", plan.Picks[0].LotCode)
	assert.Equal(t, "HIGH", plan.Picks[1].LotCode)
}

func TestPlanDeductionSkipsEmptyLots(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	empty := testLot("018f0000-0000-7000-8000-00000000000a", "EMPTY", datePtr("2024-01-01"), "0")
	full := testLot("018f0000-0000-7000-8000-00000000000b", "FULL", datePtr("2024-06-01"), "5")

	plan, err := PlanDeduction(itemID, []ledger.StockLot{empty, full}, types.MustQuantity("2"), nil)
	require.NoError(t, err)

	require.Len(t, plan.Picks, 1)
	assert.Equal(t, "FULL", plan.Picks[0].LotCode)
}

func TestPlanDeductionInsufficientStock(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lots := []ledger.StockLot{
		testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-06-01"), "3"),
		testLot("018f0000-0000-7000-8000-00000000000b", "B", nil, "2"),
	}

	_, err := PlanDeduction(itemID, lots, types.MustQuantity("6"), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, itemID.String(), appErr.Details["item_id"])
	assert.Equal(t, 6.0, appErr.Details["requested"])
	assert.Equal(t, 5.0, appErr.Details["available"])
}

func TestPlanDeductionRejectsNonPositiveQuantity(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")

	for _, qty := range []string{"0", "-1"} {
		_, err := PlanDeduction(itemID, nil, types.MustQuantity(qty), nil)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
	}
}
