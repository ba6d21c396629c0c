package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/journal"
)

// --- In-memory fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLotRepo struct {
	lots map[id.ID]StockLot
}

func newFakeLotRepo() *fakeLotRepo {
	return &fakeLotRepo{lots: make(map[id.ID]StockLot)}
}

func (r *fakeLotRepo) Create(_ context.Context, lot *StockLot) error {
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) GetByID(_ context.Context, lotID id.ID) (*StockLot, error) {
	lot, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("stock lot", lotID)
	}
	copied := lot
	return &copied, nil
}

func (r *fakeLotRepo) Update(_ context.Context, lot *StockLot) error {
	if _, ok := r.lots[lot.ID]; !ok {
		return apperror.NewNotFound("stock lot", lot.ID)
	}
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) Delete(_ context.Context, lotID id.ID) error {
	if _, ok := r.lots[lotID]; !ok {
		return apperror.NewNotFound("stock lot", lotID)
	}
	delete(r.lots, lotID)
	return nil
}

func (r *fakeLotRepo) ListByItem(_ context.Context, itemID id.ID) ([]StockLot, error) {
	var out []StockLot
	for _, lot := range r.lots {
		if lot.ItemID == itemID {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (r *fakeLotRepo) List(_ context.Context, filter LotFilter) ([]StockLot, error) {
	var out []StockLot
	for _, lot := range r.lots {
		if filter.ItemID != nil && lot.ItemID != *filter.ItemID {
			continue
		}
		if filter.WithStockOnly && !lot.HasStock() {
			continue
		}
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

func (r *fakeLotRepo) FindUntracked(_ context.Context, itemID id.ID) (*StockLot, error) {
	for _, lot := range r.lots {
		if lot.ItemID == itemID && lot.LotCode.Untracked() {
			copied := lot
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("stock lot", itemID)
}

type fakeItemStore struct {
	locks  int
	totals map[id.ID]types.Quantity

	// onLock, when set, runs while the lock is being granted. Lets tests
	// model a concurrent writer committing just before the critical section.
	onLock func()
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{totals: make(map[id.ID]types.Quantity)}
}

func (s *fakeItemStore) LockItem(_ context.Context, _ id.ID) error {
	s.locks++
	if s.onLock != nil {
		s.onLock()
	}
	return nil
}

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

type testEnv struct {
	service *Service
	lots    *fakeLotRepo
	items   *fakeItemStore
	moves   *fakeMoveRepo
}

func newTestEnv() testEnv {
	lots := newFakeLotRepo()
	items := newFakeItemStore()
	moves := &fakeMoveRepo{}
	return testEnv{
		service: NewService(lots, items, journal.NewService(moves), nil, fakeTxManager{}),
		lots:    lots,
		items:   items,
		moves:   moves,
	}
}

// --- Tests ---

func TestCreateLotRecordsInMove(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	lot := NewStockLot(itemID, TrackedLotCode("L-001"), types.MustQuantity("5"), types.MustQuantity("5"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveIn, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("5"), env.moves.moves[0].Quantity)
	assert.Equal(t, lot.ID, env.moves.moves[0].LotID)

	assert.Equal(t, types.MustQuantity("5"), env.items.totals[itemID])
	assert.Positive(t, env.items.locks)
}

func TestCreateLotRejectsInvalid(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	lot := NewStockLot(id.New(), TrackedLotCode("L-001"), types.MustQuantity("5"), types.MustQuantity("6"), time.Now().UTC())
	err := env.service.CreateLot(ctx, lot)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
	assert.Empty(t, env.lots.lots)
	assert.Empty(t, env.moves.moves)
}

func TestCreateLotSecondUntrackedConflicts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	first := NewStockLot(itemID, UntrackedLotCode(), types.MustQuantity("3"), types.MustQuantity("3"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, first))

	second := NewStockLot(itemID, UntrackedLotCode(), types.MustQuantity("1"), types.MustQuantity("1"), time.Now().UTC())
	err := env.service.CreateLot(ctx, second)
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	assert.Len(t, env.lots.lots, 1)
}

func TestAdjustRemainingRejectsNegativeTarget(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.service.AdjustRemaining(ctx, id.New(), types.MustQuantity("-1"), "oops")
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
	assert.Empty(t, env.moves.moves)
}

func TestAdjustRemainingRejectsAboveInbound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	lot := NewStockLot(itemID, TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	_, err := env.service.AdjustRemaining(ctx, lot.ID, types.MustQuantity("12"), "overshoot")
	require.Error(t, err)

	stored, getErr := env.lots.GetByID(ctx, lot.ID)
	require.NoError(t, getErr)
	assert.Equal(t, types.MustQuantity("8"), stored.RemainingQty)
	assert.Empty(t, env.moves.moves)
}

func TestAdjustRemainingZeroDeltaSkipsJournal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	lot := NewStockLot(id.New(), TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	result, err := env.service.AdjustRemaining(ctx, lot.ID, types.MustQuantity("8"), "no change")
	require.NoError(t, err)
	assert.True(t, result.Delta.IsZero())
	assert.Empty(t, env.moves.moves)
}

func TestAdjustRemainingJournalsDelta(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	lot := NewStockLot(itemID, TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	result, err := env.service.AdjustRemaining(ctx, lot.ID, types.MustQuantity("5"), "spoilage")
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("-3"), result.Delta)
	assert.Equal(t, types.MustQuantity("8"), result.OldRemaining)
	assert.Equal(t, types.MustQuantity("5"), result.NewRemaining)

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveAdjust, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("-3"), env.moves.moves[0].Quantity)
	assert.Equal(t, "spoilage", env.moves.moves[0].Reason)

	assert.Equal(t, types.MustQuantity("5"), env.items.totals[itemID])
}

func TestUpdateLotValidatesMergedResult(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	lot := NewStockLot(id.New(), TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))

	// Shrinking inbound below remaining violates the invariant on the merge.
	smaller := types.MustQuantity("4")
	_, err := env.service.UpdateLot(ctx, lot.ID, LotPatch{Quantity: &smaller})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
}

func TestUpdateLotRelocationJournalsTransfer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	lot := NewStockLot(id.New(), TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	lot.LocationCode = "A1"
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	loc := "B2"
	updated, err := env.service.UpdateLot(ctx, lot.ID, LotPatch{LocationCode: &loc})
	require.NoError(t, err)
	assert.Equal(t, "B2", updated.LocationCode)

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveTransfer, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("8"), env.moves.moves[0].Quantity)
}

func TestDeleteLotJournalsRemainingStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	lot := NewStockLot(itemID, TrackedLotCode("L-001"), types.MustQuantity("4"), types.MustQuantity("4"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	require.NoError(t, env.service.DeleteLot(ctx, lot.ID))

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveAdjust, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("-4"), env.moves.moves[0].Quantity)

	assert.Empty(t, env.lots.lots)
	assert.Equal(t, types.Quantity(0), env.items.totals[itemID])
}

func TestDeleteLotJournalsRemainingReadUnderLock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	lot := NewStockLot(itemID, TrackedLotCode("L-001"), types.MustQuantity("10"), types.MustQuantity("8"), time.Now().UTC())
	require.NoError(t, env.service.CreateLot(ctx, lot))
	env.moves.moves = nil

	// A concurrent draw-down commits between the first read and the lock.
	// The journal must record the quantity that actually left the ledger.
	env.items.onLock = func() {
		stored := env.lots.lots[lot.ID]
		stored.RemainingQty = types.MustQuantity("2")
		env.lots.lots[lot.ID] = stored
	}

	require.NoError(t, env.service.DeleteLot(ctx, lot.ID))

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveAdjust, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("-2"), env.moves.moves[0].Quantity)
}

func TestResolveUntrackedCreatesOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	itemID := id.New()

	first, err := env.service.ResolveUntracked(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, first.LotCode.Untracked())
	assert.True(t, first.RemainingQty.IsZero())

	second, err := env.service.ResolveUntracked(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.lots.lots, 1)
}
