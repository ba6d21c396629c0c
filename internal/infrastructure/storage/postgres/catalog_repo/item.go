// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/catalog/item"
	"larder/internal/domain/ledger"
	"larder/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = []string{
	"id", "code", "name", "unit",
	"min_stock", "stock_current", "version",
	"created_at", "updated_at",
}

// ItemRepo implements item.Repository and, through LockItem and
// SetStockCurrent, the ledger's view of the catalog.
type ItemRepo struct {
	builder   squirrel.StatementBuilderType
	txManager *postgres.TxManager
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		txManager: txManager,
	}
}

// Create inserts a new item.
func (r *ItemRepo) Create(ctx context.Context, it *item.Item) error {
	q := r.builder.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			it.ID, it.Code, it.Name, it.Unit,
			it.MinStock, it.StockCurrent, it.Version,
			it.CreatedAt, it.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	return nil
}

// GetByID retrieves an item by id.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID}).
		Limit(1)

	return r.getOne(ctx, q, itemID)
}

// GetByCode retrieves an item by its unique code.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	return r.getOne(ctx, q, code)
}

func (r *ItemRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*item.Item, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", key)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return &it, nil
}

// Update modifies an item with optimistic locking on version. The stored
// version must match Version-1 (the version read before Touch).
func (r *ItemRepo) Update(ctx context.Context, it *item.Item) error {
	q := r.builder.Update(itemsTable).
		Set("code", it.Code).
		Set("name", it.Name).
		Set("unit", it.Unit).
		Set("min_stock", it.MinStock).
		Set("version", it.Version).
		Set("updated_at", it.UpdatedAt).
		Where(squirrel.Eq{"id": it.ID}).
		Where(squirrel.Eq{"version": it.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("item", it.ID)
	}

	return nil
}

// Delete removes an item.
func (r *ItemRepo) Delete(ctx context.Context, itemID id.ID) error {
	q := r.builder.Delete(itemsTable).
		Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("item", itemID)
	}

	return nil
}

// List retrieves items with filtering and a total count for pagination.
func (r *ItemRepo) List(ctx context.Context, filter item.ListFilter) (item.ListResult, error) {
	result := item.ListResult{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	base := r.builder.Select().From(itemsTable)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where(squirrel.Or{
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"name": pattern},
		})
	}
	if filter.LowStockOnly {
		base = base.Where("stock_current < min_stock")
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count items: %w", err)
	}

	q := base.Columns(itemColumns...).OrderBy(orderClause(filter.OrderBy))
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var items []*item.Item
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return result, fmt.Errorf("select items: %w", err)
	}
	result.Items = items

	return result, nil
}

// orderClause maps the API sort field onto a safe ORDER BY expression.
// Unknown fields fall back to name so user input never reaches SQL.
func orderClause(orderBy string) string {
	desc := false
	if len(orderBy) > 0 && orderBy[0] == '-' {
		desc = true
		orderBy = orderBy[1:]
	}

	switch orderBy {
	case "code", "name", "created_at", "stock_current":
	default:
		orderBy = "name"
	}

	if desc {
		return orderBy + " DESC"
	}
	return orderBy + " ASC"
}

// ExistsByCode reports whether an item with the code exists.
func (r *ItemRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	sql := `SELECT EXISTS(SELECT 1 FROM cat_items WHERE code = $1)`

	var exists bool
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check item code: %w", err)
	}

	return exists, nil
}

// LockItem takes the per-item critical section. Requires an active
// transaction; the lock is held until commit or rollback.
func (r *ItemRepo) LockItem(ctx context.Context, itemID id.ID) error {
	sql := `SELECT id FROM cat_items WHERE id = $1 FOR UPDATE`

	var locked id.ID
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, itemID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewNotFound("item", itemID)
		}
		return fmt.Errorf("lock item: %w", err)
	}

	return nil
}

// SetStockCurrent writes the recomputed denormalized total. Bypasses the
// version check on purpose: the caller holds the item lock and the total is
// derived, not user-edited.
func (r *ItemRepo) SetStockCurrent(ctx context.Context, itemID id.ID, total types.Quantity) error {
	sql := `UPDATE cat_items SET stock_current = $2, updated_at = now() WHERE id = $1`

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, itemID, total)
	if err != nil {
		return fmt.Errorf("set stock current: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("item", itemID)
	}

	return nil
}

// Ensure interface compliance.
var (
	_ item.Repository  = (*ItemRepo)(nil)
	_ ledger.ItemStore = (*ItemRepo)(nil)
)
