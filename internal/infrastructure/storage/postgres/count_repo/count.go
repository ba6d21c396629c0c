// Package count_repo provides the PostgreSQL implementation of the stock
// count repository.
package count_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/stockcount"
	"larder/internal/infrastructure/storage/postgres"
)

const (
	countsTable = "stock_counts"
	linesTable  = "stock_count_lines"
)

var countColumns = []string{
	"id", "name", "status", "filter",
	"created_by", "created_at", "closed_at",
}

var lineColumns = []string{
	"id", "count_id", "item_id", "lot_id", "lot_code",
	"expected_qty", "counted_qty", "note",
	"created_at", "updated_at",
}

// CountRepo implements stockcount.Repository.
type CountRepo struct {
	builder   squirrel.StatementBuilderType
	txManager *postgres.TxManager
}

// NewCountRepo creates a new count repository.
func NewCountRepo(txManager *postgres.TxManager) *CountRepo {
	return &CountRepo{
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		txManager: txManager,
	}
}

// CreateCount inserts a new count.
func (r *CountRepo) CreateCount(ctx context.Context, count *stockcount.StockCount) error {
	q := r.builder.Insert(countsTable).
		Columns(countColumns...).
		Values(
			count.ID, count.Name, count.Status, count.Filter,
			count.CreatedBy, count.CreatedAt, count.ClosedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert count: %w", err)
	}

	return nil
}

// GetCount retrieves a count by id.
func (r *CountRepo) GetCount(ctx context.Context, countID id.ID) (*stockcount.StockCount, error) {
	q := r.builder.Select(countColumns...).
		From(countsTable).
		Where(squirrel.Eq{"id": countID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var count stockcount.StockCount
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &count, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("count", countID)
		}
		return nil, fmt.Errorf("get count: %w", err)
	}

	return &count, nil
}

// ListCounts retrieves counts with filtering, newest first.
func (r *CountRepo) ListCounts(ctx context.Context, filter stockcount.CountFilter) ([]stockcount.StockCount, error) {
	q := r.builder.Select(countColumns...).
		From(countsTable).
		OrderBy("created_at DESC")

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var counts []stockcount.StockCount
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &counts, sql, args...); err != nil {
		return nil, fmt.Errorf("select counts: %w", err)
	}

	return counts, nil
}

// CloseCount flips an open count to closed. The conditional update is what
// makes a concurrent double close lose deterministically.
func (r *CountRepo) CloseCount(ctx context.Context, countID id.ID, closedAt time.Time) error {
	sql := `
		UPDATE stock_counts
		SET status = $1, closed_at = $2
		WHERE id = $3 AND status = $4
	`

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, stockcount.StatusClosed, closedAt, countID, stockcount.StatusOpen)
	if err != nil {
		return fmt.Errorf("close count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already closed.
		if _, err := r.GetCount(ctx, countID); err != nil {
			return err
		}
		return apperror.NewStateConflict("count is closed").
			WithDetail("countId", countID)
	}

	return nil
}

// CreateLine inserts a single count line.
func (r *CountRepo) CreateLine(ctx context.Context, line *stockcount.CountLine) error {
	q := r.builder.Insert(linesTable).
		Columns(lineColumns...).
		Values(
			line.ID, line.CountID, line.ItemID, line.LotID, line.LotCode,
			line.ExpectedQty, line.CountedQty, line.Note,
			line.CreatedAt, line.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert line: %w", err)
	}

	return nil
}

// CreateLines inserts several lines at once.
// Uses COPY when inside a transaction.
func (r *CountRepo) CreateLines(ctx context.Context, lines []stockcount.CountLine) error {
	if len(lines) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, []any{
				l.ID, l.CountID, l.ItemID, l.LotID, l.LotCode,
				l.ExpectedQty, l.CountedQty, l.Note,
				l.CreatedAt, l.UpdatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy lines: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(linesTable).Columns(lineColumns...)
	for _, l := range lines {
		q = q.Values(
			l.ID, l.CountID, l.ItemID, l.LotID, l.LotCode,
			l.ExpectedQty, l.CountedQty, l.Note,
			l.CreatedAt, l.UpdatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// GetLine retrieves a line by id.
func (r *CountRepo) GetLine(ctx context.Context, lineID id.ID) (*stockcount.CountLine, error) {
	q := r.builder.Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"id": lineID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line stockcount.CountLine
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("count line", lineID)
		}
		return nil, fmt.Errorf("get line: %w", err)
	}

	return &line, nil
}

// ListLines returns all lines of a count in creation order.
func (r *CountRepo) ListLines(ctx context.Context, countID id.ID) ([]stockcount.CountLine, error) {
	q := r.builder.Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"count_id": countID}).
		OrderBy("created_at ASC, id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []stockcount.CountLine
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	return lines, nil
}

// UpdateCounted writes countedQty and note. The update joins on the parent
// count still being open, closing the race between a line edit and a close.
func (r *CountRepo) UpdateCounted(ctx context.Context, line *stockcount.CountLine) error {
	sql := `
		UPDATE stock_count_lines l
		SET counted_qty = $1, note = $2, updated_at = $3
		FROM stock_counts c
		WHERE l.id = $4 AND c.id = l.count_id AND c.status = $5
	`

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql,
		line.CountedQty, line.Note, line.UpdatedAt,
		line.ID, stockcount.StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("update counted qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetLine(ctx, line.ID); err != nil {
			return err
		}
		return apperror.NewStateConflict("count is closed").
			WithDetail("lineId", line.ID)
	}

	return nil
}

// HasLineForLot reports whether the count already carries a line for the lot.
func (r *CountRepo) HasLineForLot(ctx context.Context, countID, lotID id.ID) (bool, error) {
	sql := `SELECT EXISTS(SELECT 1 FROM stock_count_lines WHERE count_id = $1 AND lot_id = $2)`

	var exists bool
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, countID, lotID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check line: %w", err)
	}

	return exists, nil
}

// Ensure interface compliance.
var _ stockcount.Repository = (*CountRepo)(nil)
