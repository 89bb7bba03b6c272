package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// ListTransactionsPage returns a paginated, filtered, and sorted view of the
// committed log.
func (s *Store) ListTransactionsPage(ctx context.Context, req storage.ListTransactionsPageRequest) (storage.ListTransactionsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListTransactionsPageResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(req.InstanceID) == "" {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("instance id is required")
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	plan := buildListTransactionsPageSQLPlan(req)

	query := fmt.Sprintf(
		"SELECT %s FROM transactions WHERE %s %s %s",
		txColumns,
		plan.whereClause,
		plan.orderClause,
		plan.limitClause,
	)

	rows, err := s.sqlDB.QueryContext(ctx, query, plan.params...)
	if err != nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]transaction.Transaction, 0, req.PageSize)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return storage.ListTransactionsPageResult{}, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("iterate transactions: %w", err)
	}

	hasMore := len(txs) > req.PageSize
	if hasMore {
		txs = txs[:req.PageSize]
	}

	// For "previous page" navigation, reverse the results to maintain consistent order
	if req.Cursor.Reverse {
		for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
			txs[i], txs[j] = txs[j], txs[i]
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions WHERE %s", plan.countWhereClause)
	var totalCount int
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, plan.countParams...).Scan(&totalCount); err != nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("count transactions: %w", err)
	}

	result := storage.ListTransactionsPageResult{
		Transactions: txs,
		TotalCount:   totalCount,
	}

	if req.Cursor.Reverse {
		result.HasNextPage = true // We came from next, so there is a next
		result.HasPrevPage = hasMore
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = !req.Cursor.Zero()
	}

	return result, nil
}
