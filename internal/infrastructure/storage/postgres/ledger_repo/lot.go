// Package ledger_repo provides the PostgreSQL implementation of the lot
// ledger repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/core/types"
	"larder/internal/domain/ledger"
	"larder/internal/infrastructure/storage/postgres"
)

const lotsTable = "stock_lots"

var lotColumns = []string{
	"id", "item_id", "lot_code", "untracked",
	"quantity", "remaining_qty",
	"entry_date", "expiry_date", "donor_id", "location_code",
	"version", "created_at", "updated_at",
}

// fefoOrder is the canonical consumption order: soonest expiry first,
// undated lots last, id as the stable tie-break.
const fefoOrder = "expiry_date ASC NULLS LAST, id ASC"

// lotRow is the storage shape of a lot. The tagged lot code maps onto two
// columns so a real batch literally named like the sentinel stays distinct
// from an untracked lot.
type lotRow struct {
	ID           id.ID          `db:"id"`
	ItemID       id.ID          `db:"item_id"`
	LotCode      string         `db:"lot_code"`
	Untracked    bool           `db:"untracked"`
	Quantity     types.Quantity `db:"quantity"`
	RemainingQty types.Quantity `db:"remaining_qty"`
	EntryDate    time.Time      `db:"entry_date"`
	ExpiryDate   *time.Time     `db:"expiry_date"`
	DonorID      *id.ID         `db:"donor_id"`
	LocationCode string         `db:"location_code"`
	Version      int            `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func rowFromLot(lot *ledger.StockLot) lotRow {
	return lotRow{
		ID:           lot.ID,
		ItemID:       lot.ItemID,
		LotCode:      lot.LotCode.Code(),
		Untracked:    lot.LotCode.Untracked(),
		Quantity:     lot.Quantity,
		RemainingQty: lot.RemainingQty,
		EntryDate:    lot.EntryDate,
		ExpiryDate:   lot.ExpiryDate,
		DonorID:      lot.DonorID,
		LocationCode: lot.LocationCode,
		Version:      lot.Version,
		CreatedAt:    lot.CreatedAt,
		UpdatedAt:    lot.UpdatedAt,
	}
}

func (r lotRow) toLot() ledger.StockLot {
	code := ledger.TrackedLotCode(r.LotCode)
	if r.Untracked {
		code = ledger.UntrackedLotCode()
	}
	return ledger.StockLot{
		ID:           r.ID,
		ItemID:       r.ItemID,
		LotCode:      code,
		Quantity:     r.Quantity,
		RemainingQty: r.RemainingQty,
		EntryDate:    r.EntryDate,
		ExpiryDate:   r.ExpiryDate,
		DonorID:      r.DonorID,
		LocationCode: r.LocationCode,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// LotRepo implements ledger.Repository.
type LotRepo struct {
	builder   squirrel.StatementBuilderType
	txManager *postgres.TxManager
}

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		txManager: txManager,
	}
}

// Create inserts a new lot.
func (r *LotRepo) Create(ctx context.Context, lot *ledger.StockLot) error {
	row := rowFromLot(lot)

	q := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(
			row.ID, row.ItemID, row.LotCode, row.Untracked,
			row.Quantity, row.RemainingQty,
			row.EntryDate, row.ExpiryDate, row.DonorID, row.LocationCode,
			row.Version, row.CreatedAt, row.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}

	return nil
}

// GetByID retrieves a lot by id.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*ledger.StockLot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"id": lotID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row lotRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID)
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}

	lot := row.toLot()
	return &lot, nil
}

// Update modifies a lot with optimistic locking on version.
func (r *LotRepo) Update(ctx context.Context, lot *ledger.StockLot) error {
	row := rowFromLot(lot)

	q := r.builder.Update(lotsTable).
		Set("lot_code", row.LotCode).
		Set("untracked", row.Untracked).
		Set("quantity", row.Quantity).
		Set("remaining_qty", row.RemainingQty).
		Set("entry_date", row.EntryDate).
		Set("expiry_date", row.ExpiryDate).
		Set("donor_id", row.DonorID).
		Set("location_code", row.LocationCode).
		Set("version", row.Version).
		Set("updated_at", row.UpdatedAt).
		Where(squirrel.Eq{"id": row.ID}).
		Where(squirrel.Eq{"version": row.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lot.ID)
	}

	return nil
}

// Delete removes a lot.
func (r *LotRepo) Delete(ctx context.Context, lotID id.ID) error {
	q := r.builder.Delete(lotsTable).
		Where(squirrel.Eq{"id": lotID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lotID)
	}

	return nil
}

// ListByItem returns all lots of an item in consumption order.
func (r *LotRepo) ListByItem(ctx context.Context, itemID id.ID) ([]ledger.StockLot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy(fefoOrder)

	return r.selectLots(ctx, q)
}

// List retrieves lots with filtering, in consumption order.
func (r *LotRepo) List(ctx context.Context, filter ledger.LotFilter) ([]ledger.StockLot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		OrderBy(fefoOrder)

	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.WithStockOnly {
		q = q.Where(squirrel.Gt{"remaining_qty": int64(0)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return r.selectLots(ctx, q)
}

func (r *LotRepo) selectLots(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.StockLot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lotRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}

	lots := make([]ledger.StockLot, 0, len(rows))
	for _, row := range rows {
		lots = append(lots, row.toLot())
	}

	return lots, nil
}

// SumRemaining computes the item's aggregate in SQL.
func (r *LotRepo) SumRemaining(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	sql := `SELECT COALESCE(SUM(remaining_qty), 0) FROM stock_lots WHERE item_id = $1`

	var totalScaled int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, itemID).Scan(&totalScaled); err != nil {
		return 0, fmt.Errorf("sum remaining: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(totalScaled), nil
}

// FindUntracked returns the item's untracked lot. A partial unique index on
// (item_id) WHERE untracked guarantees at most one exists.
func (r *LotRepo) FindUntracked(ctx context.Context, itemID id.ID) (*ledger.StockLot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"item_id": itemID, "untracked": true}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row lotRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("untracked lot", itemID)
		}
		return nil, fmt.Errorf("get untracked lot: %w", err)
	}

	lot := row.toLot()
	return &lot, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LotRepo)(nil)
