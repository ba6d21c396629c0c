// Package journal_repo provides the PostgreSQL implementation of the move
// journal repository.
package journal_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"larder/internal/domain/journal"
	"larder/internal/infrastructure/storage/postgres"
)

const movesTable = "stock_moves"

var moveColumns = []string{
	"id", "item_id", "lot_id", "move_type",
	"quantity", "reason", "actor", "created_at",
}

// MoveRepo implements journal.Repository. Insert-only: the journal is an
// append-only audit trail.
type MoveRepo struct {
	builder   squirrel.StatementBuilderType
	txManager *postgres.TxManager
}

// NewMoveRepo creates a new move repository.
func NewMoveRepo(txManager *postgres.TxManager) *MoveRepo {
	return &MoveRepo{
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		txManager: txManager,
	}
}

// Insert appends a single move.
func (r *MoveRepo) Insert(ctx context.Context, move journal.StockMove) error {
	q := r.builder.Insert(movesTable).
		Columns(moveColumns...).
		Values(
			move.ID, move.ItemID, move.LotID, move.Type,
			move.Quantity, move.Reason, move.Actor, move.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert move: %w", err)
	}

	return nil
}

// InsertBatch appends several moves at once.
// Uses COPY when inside a transaction, which every ledger mutation is.
func (r *MoveRepo) InsertBatch(ctx context.Context, moves []journal.StockMove) error {
	if len(moves) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(moves))
		for _, m := range moves {
			rows = append(rows, []any{
				m.ID, m.ItemID, m.LotID, m.Type,
				m.Quantity, m.Reason, m.Actor, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movesTable, moveColumns, rows); err != nil {
			return fmt.Errorf("copy moves: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert outside a transaction.
	q := r.builder.Insert(movesTable).Columns(moveColumns...)
	for _, m := range moves {
		q = q.Values(
			m.ID, m.ItemID, m.LotID, m.Type,
			m.Quantity, m.Reason, m.Actor, m.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert moves: %w", err)
	}

	return nil
}

// List retrieves moves with filtering.
func (r *MoveRepo) List(ctx context.Context, filter journal.MoveFilter) ([]journal.StockMove, error) {
	q := r.builder.Select(moveColumns...).From(movesTable)

	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.LotID != nil {
		q = q.Where(squirrel.Eq{"lot_id": *filter.LotID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"move_type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	order := "created_at ASC, id ASC"
	if filter.Descending {
		order = "created_at DESC, id DESC"
	}
	q = q.OrderBy(order)

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

	var moves []journal.StockMove
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &moves, sql, args...); err != nil {
		return nil, fmt.Errorf("select moves: %w", err)
	}

	return moves, nil
}

// Ensure interface compliance.
var _ journal.Repository = (*MoveRepo)(nil)
