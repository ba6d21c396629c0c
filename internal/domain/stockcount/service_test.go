package stockcount

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
	"larder/internal/domain/ledger"
)

// --- In-memory fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCountRepo struct {
	counts map[id.ID]StockCount
	lines  map[id.ID]CountLine
}

func newFakeCountRepo() *fakeCountRepo {
	return &fakeCountRepo{
		counts: make(map[id.ID]StockCount),
		lines:  make(map[id.ID]CountLine),
	}
}

func (r *fakeCountRepo) CreateCount(_ context.Context, count *StockCount) error {
	r.counts[count.ID] = *count
	return nil
}

func (r *fakeCountRepo) GetCount(_ context.Context, countID id.ID) (*StockCount, error) {
	count, ok := r.counts[countID]
	if !ok {
		return nil, apperror.NewNotFound("stock count", countID)
	}
	copied := count
	return &copied, nil
}

func (r *fakeCountRepo) ListCounts(_ context.Context, filter CountFilter) ([]StockCount, error) {
	var out []StockCount
	for _, count := range r.counts {
		if filter.Status != nil && count.Status != *filter.Status {
			continue
		}
		out = append(out, count)
	}
	return out, nil
}

func (r *fakeCountRepo) CloseCount(_ context.Context, countID id.ID, closedAt time.Time) error {
	count, ok := r.counts[countID]
	if !ok {
		return apperror.NewNotFound("stock count", countID)
	}
	if count.Status != StatusOpen {
		return apperror.NewStateConflict("count is already closed").
			WithDetail("countId", countID)
	}
	count.Status = StatusClosed
	count.ClosedAt = &closedAt
	r.counts[countID] = count
	return nil
}

func (r *fakeCountRepo) CreateLine(_ context.Context, line *CountLine) error {
	r.lines[line.ID] = *line
	return nil
}

func (r *fakeCountRepo) CreateLines(_ context.Context, lines []CountLine) error {
	for _, line := range lines {
		r.lines[line.ID] = line
	}
	return nil
}

func (r *fakeCountRepo) GetLine(_ context.Context, lineID id.ID) (*CountLine, error) {
	line, ok := r.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("count line", lineID)
	}
	copied := line
	return &copied, nil
}

func (r *fakeCountRepo) ListLines(_ context.Context, countID id.ID) ([]CountLine, error) {
	var out []CountLine
	for _, line := range r.lines {
		if line.CountID == countID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *fakeCountRepo) UpdateCounted(_ context.Context, line *CountLine) error {
	stored, ok := r.lines[line.ID]
	if !ok {
		return apperror.NewNotFound("count line", line.ID)
	}
	count, ok := r.counts[stored.CountID]
	if !ok || count.Status != StatusOpen {
		return apperror.NewStateConflict("count is closed").
			WithDetail("countId", stored.CountID)
	}
	r.lines[line.ID] = *line
	return nil
}

func (r *fakeCountRepo) HasLineForLot(_ context.Context, countID, lotID id.ID) (bool, error) {
	for _, line := range r.lines {
		if line.CountID == countID && line.LotID == lotID {
			return true, nil
		}
	}
	return false, nil
}

type fakeLotRepo struct {
	lots map[id.ID]ledger.StockLot
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
	if filter.Offset > 0 {
		return nil, nil
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
	for _, lot := range r.lots {
		if lot.ItemID == itemID && lot.LotCode.Untracked() {
			copied := lot
			return &copied, nil
		}
	}
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

type countEnv struct {
	service *Service
	repo    *fakeCountRepo
	lots    *fakeLotRepo
	items   *fakeItemStore
	moves   *fakeMoveRepo
}

func newCountEnv() countEnv {
	repo := newFakeCountRepo()
	lots := &fakeLotRepo{lots: make(map[id.ID]ledger.StockLot)}
	items := &fakeItemStore{totals: make(map[id.ID]types.Quantity)}
	moves := &fakeMoveRepo{}

	ledgerSvc := ledger.NewService(lots, items, journal.NewService(moves), nil, fakeTxManager{})
	return countEnv{
		service: NewService(repo, ledgerSvc, fakeTxManager{}),
		repo:    repo,
		lots:    lots,
		items:   items,
		moves:   moves,
	}
}

func (e countEnv) addLot(itemID id.ID, code ledger.LotCode, remaining string) ledger.StockLot {
	qty := types.MustQuantity(remaining)
	lot := ledger.NewStockLot(itemID, code, qty, qty, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	e.lots.lots[lot.ID] = *lot
	return *lot
}

// --- Tests ---

func TestCreateCountRejectsBadFilter(t *testing.T) {
	env := newCountEnv()

	_, err := env.service.CreateCount(context.Background(), "bad", "remaining >")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Empty(t, env.repo.counts)
}

func TestCountLineDelta(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "20")

	count, err := env.service.CreateCount(ctx, "march shelf check", "")
	require.NoError(t, err)

	line, err := env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("20"), line.ExpectedQty)
	assert.False(t, line.Counted())

	line, err = env.service.SetCountedQty(ctx, line.ID, types.MustQuantity("17"), "shelf damage")
	require.NoError(t, err)
	assert.True(t, line.Counted())
	assert.Equal(t, types.MustQuantity("-3"), line.Delta())
}

func TestSetCountedQtyAfterCloseConflicts(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "20")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)
	line, err := env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)

	closed, err := env.service.CloseCount(ctx, count.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = env.service.SetCountedQty(ctx, line.ID, types.MustQuantity("18"), "")
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestCloseCountTwiceConflicts(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)

	_, err = env.service.CloseCount(ctx, count.ID, false)
	require.NoError(t, err)

	_, err = env.service.CloseCount(ctx, count.ID, false)
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestCloseCountDefaultLeavesLedgerUntouched(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "20")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)
	line, err := env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)
	_, err = env.service.SetCountedQty(ctx, line.ID, types.MustQuantity("17"), "")
	require.NoError(t, err)

	_, err = env.service.CloseCount(ctx, count.ID, false)
	require.NoError(t, err)

	assert.Equal(t, types.MustQuantity("20"), env.lots.lots[lot.ID].RemainingQty)
	assert.Empty(t, env.moves.moves)
}

func TestCloseCountAppliesAdjustments(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "20")
	matching := env.addLot(itemID, ledger.TrackedLotCode("L-2"), "5")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)

	line, err := env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)
	_, err = env.service.SetCountedQty(ctx, line.ID, types.MustQuantity("17"), "")
	require.NoError(t, err)

	// A second line counted at its expected value produces no adjustment.
	even, err := env.service.AddLine(ctx, count.ID, itemID, &matching.ID)
	require.NoError(t, err)
	_, err = env.service.SetCountedQty(ctx, even.ID, types.MustQuantity("5"), "")
	require.NoError(t, err)

	_, err = env.service.CloseCount(ctx, count.ID, true)
	require.NoError(t, err)

	assert.Equal(t, types.MustQuantity("17"), env.lots.lots[lot.ID].RemainingQty)
	assert.Equal(t, types.MustQuantity("5"), env.lots.lots[matching.ID].RemainingQty)

	require.Len(t, env.moves.moves, 1)
	assert.Equal(t, journal.MoveAdjust, env.moves.moves[0].Type)
	assert.Equal(t, types.MustQuantity("-3"), env.moves.moves[0].Quantity)
	assert.Equal(t, lot.ID, env.moves.moves[0].LotID)

	assert.Equal(t, types.MustQuantity("22"), env.items.totals[itemID])
}

func TestCloseCountSurplusBeyondInboundConflicts(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "20")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)
	line, err := env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)

	// More on the shelf than the lot ever received.
	_, err = env.service.SetCountedQty(ctx, line.ID, types.MustQuantity("25"), "")
	require.NoError(t, err)

	_, err = env.service.CloseCount(ctx, count.ID, true)
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, line.ID, appErr.Details["lineId"])
	assert.Equal(t, lot.ID, appErr.Details["lotId"])

	assert.Equal(t, types.MustQuantity("20"), env.lots.lots[lot.ID].RemainingQty)
	assert.Empty(t, env.moves.moves)
}

func TestAddLineDuplicateLotConflicts(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	lot := env.addLot(itemID, ledger.TrackedLotCode("L-1"), "10")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)

	_, err = env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.NoError(t, err)

	_, err = env.service.AddLine(ctx, count.ID, itemID, &lot.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestAddLineRejectsForeignLot(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	lot := env.addLot(id.New(), ledger.TrackedLotCode("L-1"), "10")

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)

	otherItem := id.New()
	_, err = env.service.AddLine(ctx, count.ID, otherItem, &lot.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestAddLineResolvesUntrackedLot(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()

	count, err := env.service.CreateCount(ctx, "check", "")
	require.NoError(t, err)

	line, err := env.service.AddLine(ctx, count.ID, itemID, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.SentinelLotCode, line.LotCode)
	assert.True(t, line.ExpectedQty.IsZero())

	// The resolved lot now exists in the ledger.
	assert.Len(t, env.lots.lots, 1)
}

func TestPrepareLinesAppliesFilterAndSkipsLined(t *testing.T) {
	env := newCountEnv()
	ctx := context.Background()
	itemID := id.New()
	big := env.addLot(itemID, ledger.TrackedLotCode("BIG"), "12")
	env.addLot(itemID, ledger.TrackedLotCode("SMALL"), "2")

	count, err := env.service.CreateCount(ctx, "bulk check", "remaining >= 10.0")
	require.NoError(t, err)

	created, err := env.service.PrepareLines(ctx, count.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, big.ID, created[0].LotID)
	assert.Equal(t, types.MustQuantity("12"), created[0].ExpectedQty)

	// Preparing again adds nothing: the matching lot is already lined.
	again, err := env.service.PrepareLines(ctx, count.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}
