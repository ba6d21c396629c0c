package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/journal"
	"larder/internal/domain/ledger"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLotRepo struct {
	lots    map[id.ID]ledger.StockLot
	updates int
}

func (r *fakeLotRepo) Create(_ context.Context, lot *ledger.StockLot) error {
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) GetByID(_ context.Context, lotID id.ID) (*ledger.StockLot, error) {
	lot, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("stock lot", lotID)
	}
	copied := lot
	return &copied, nil
}

func (r *fakeLotRepo) Update(_ context.Context, lot *ledger.StockLot) error {
	r.updates++
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) Delete(_ context.Context, lotID id.ID) error {
	delete(r.lots, lotID)
	return nil
}

func (r *fakeLotRepo) ListByItem(_ context.Context, itemID id.ID) ([]ledger.StockLot, error) {
	var out []ledger.StockLot
	for _, lot := range r.lots {
		if lot.ItemID == itemID {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (r *fakeLotRepo) List(_ context.Context, filter ledger.LotFilter) ([]ledger.StockLot, error) {
	if filter.ItemID != nil {
		return r.ListByItem(context.Background(), *filter.ItemID)
	}
	var out []ledger.StockLot
	for _, lot := range r.lots {
		out = append(out, lot)
	}
	return out, nil
}

func (r *fakeLotRepo) SumRemaining(_ context.Context, itemID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, lot := range r.lots {
		if lot.ItemID == itemID {
			total += lot.RemainingQty
		}
	}
	return total, nil
}

func (r *fakeLotRepo) FindUntracked(_ context.Context, itemID id.ID) (*ledger.StockLot, error) {
	return nil, apperror.NewNotFound("stock lot", itemID)
}

type fakeItemStore struct {
	totals map[id.ID]types.Quantity
}

func (s *fakeItemStore) LockItem(_ context.Context, _ id.ID) error { return nil }

func (s *fakeItemStore) SetStockCurrent(_ context.Context, itemID id.ID, total types.Quantity) error {
	s.totals[itemID] = total
	return nil
}

type fakeMoveRepo struct {
	moves []journal.StockMove
}

func (r *fakeMoveRepo) Insert(_ context.Context, move journal.StockMove) error {
	r.moves = append(r.moves, move)
	return nil
}

func (r *fakeMoveRepo) InsertBatch(_ context.Context, moves []journal.StockMove) error {
	r.moves = append(r.moves, moves...)
	return nil
}

func (r *fakeMoveRepo) List(_ context.Context, _ journal.MoveFilter) ([]journal.StockMove, error) {
	return r.moves, nil
}

func newServiceWithLots(lots ...ledger.StockLot) (*Service, *fakeLotRepo, *fakeItemStore, *fakeMoveRepo) {
	lotRepo := &fakeLotRepo{lots: make(map[id.ID]ledger.StockLot)}
	for _, lot := range lots {
		lotRepo.lots[lot.ID] = lot
	}
	itemStore := &fakeItemStore{totals: make(map[id.ID]types.Quantity)}
	moveRepo := &fakeMoveRepo{}

	svc := NewService(lotRepo, itemStore, journal.NewService(moveRepo), fakeTxManager{})
	return svc, lotRepo, itemStore, moveRepo
}

func TestApplyDeductionDrawsDownLots(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lotA := testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-06-01"), "5")
	lotB := testLot("018f0000-0000-7000-8000-00000000000b", "B", datePtr("2024-05-20"), "4")
	svc, lotRepo, itemStore, moveRepo := newServiceWithLots(lotA, lotB)

	result, err := svc.ApplyDeduction(context.Background(), DeductionRequest{
		ItemID:   itemID,
		Quantity: types.MustQuantity("8"),
		Reason:   "delivery #17",
	})
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, types.MustQuantity("1"), result.StockAfter)
	require.Len(t, result.Plan.Picks, 2)

	storedB := lotRepo.lots[lotB.ID]
	assert.True(t, storedB.RemainingQty.IsZero())
	storedA := lotRepo.lots[lotA.ID]
	assert.Equal(t, types.MustQuantity("1"), storedA.RemainingQty)

	assert.Equal(t, types.MustQuantity("1"), itemStore.totals[itemID])

	require.Len(t, moveRepo.moves, 2)
	for _, move := range moveRepo.moves {
		assert.Equal(t, journal.MoveOut, move.Type)
		assert.Equal(t, "delivery #17", move.Reason)
	}
}

func TestApplyDeductionInsufficientLeavesLedgerUntouched(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lot := testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-06-01"), "2")
	svc, lotRepo, itemStore, moveRepo := newServiceWithLots(lot)

	_, err := svc.ApplyDeduction(context.Background(), DeductionRequest{
		ItemID:   itemID,
		Quantity: types.MustQuantity("3"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// All-or-nothing: the short lot keeps its stock and nothing is journaled.
	assert.Equal(t, types.MustQuantity("2"), lotRepo.lots[lot.ID].RemainingQty)
	assert.Zero(t, lotRepo.updates)
	assert.Empty(t, moveRepo.moves)
	assert.Empty(t, itemStore.totals)
}

func TestApplyDeductionDryRun(t *testing.T) {
	itemID := id.MustParse("018f0000-0000-7000-8000-000000000001")
	lot := testLot("018f0000-0000-7000-8000-00000000000a", "A", datePtr("2024-06-01"), "5")
	svc, lotRepo, itemStore, moveRepo := newServiceWithLots(lot)

	result, err := svc.ApplyDeduction(context.Background(), DeductionRequest{
		ItemID:   itemID,
		Quantity: types.MustQuantity("3"),
		DryRun:   true,
	})
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.Equal(t, types.MustQuantity("2"), result.StockAfter)
	require.Len(t, result.Plan.Picks, 1)

	assert.Equal(t, types.MustQuantity("5"), lotRepo.lots[lot.ID].RemainingQty)
	assert.Zero(t, lotRepo.updates)
	assert.Empty(t, moveRepo.moves)
	assert.Empty(t, itemStore.totals)
}
