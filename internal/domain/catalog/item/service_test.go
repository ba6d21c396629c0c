package item

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeItemRepo struct {
	items map[id.ID]Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[id.ID]Item)}
}

func (r *fakeItemRepo) Create(_ context.Context, it *Item) error {
	r.items[it.ID] = *it
	return nil
}

func (r *fakeItemRepo) GetByID(_ context.Context, itemID id.ID) (*Item, error) {
	it, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID)
	}
	copied := it
	return &copied, nil
}

func (r *fakeItemRepo) GetByCode(_ context.Context, code string) (*Item, error) {
	for _, it := range r.items {
		if it.Code == code {
			copied := it
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("item", code)
}

func (r *fakeItemRepo) Update(_ context.Context, it *Item) error {
	if _, ok := r.items[it.ID]; !ok {
		return apperror.NewNotFound("item", it.ID)
	}
	r.items[it.ID] = *it
	return nil
}

func (r *fakeItemRepo) Delete(_ context.Context, itemID id.ID) error {
	if _, ok := r.items[itemID]; !ok {
		return apperror.NewNotFound("item", itemID)
	}
	delete(r.items, itemID)
	return nil
}

func (r *fakeItemRepo) List(_ context.Context, filter ListFilter) (ListResult, error) {
	result := ListResult{Limit: filter.Limit, Offset: filter.Offset}
	for _, it := range r.items {
		copied := it
		result.Items = append(result.Items, &copied)
		result.TotalCount++
	}
	return result, nil
}

func (r *fakeItemRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, it := range r.items {
		if it.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func TestServiceCreateDuplicateCode(t *testing.T) {
	repo := newFakeItemRepo()
	svc := NewService(repo, fakeTxManager{})
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, NewItem("RICE-1KG", "Rice 1kg", "kg")))

	err := svc.Create(ctx, NewItem("RICE-1KG", "Rice, different label", "kg"))
	require.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	assert.Len(t, repo.items, 1)
}

func TestServiceUpdatePreservesStockCurrent(t *testing.T) {
	repo := newFakeItemRepo()
	svc := NewService(repo, fakeTxManager{})
	ctx := context.Background()

	it := NewItem("RICE-1KG", "Rice 1kg", "kg")
	require.NoError(t, svc.Create(ctx, it))

	// Simulate the ledger having recomputed the total since creation.
	stored := repo.items[it.ID]
	stored.StockCurrent = types.MustQuantity("42")
	repo.items[it.ID] = stored

	// A client sending a stale total must not overwrite the derived value.
	it.Name = "Rice 1kg (white)"
	it.StockCurrent = types.MustQuantity("0")
	require.NoError(t, svc.Update(ctx, it))

	assert.Equal(t, types.MustQuantity("42"), repo.items[it.ID].StockCurrent)
	assert.Equal(t, "Rice 1kg (white)", repo.items[it.ID].Name)
	assert.Equal(t, 2, repo.items[it.ID].Version)
}
