package sqlite

import (
	"fmt"

	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

type listTransactionsPageSQLPlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	countWhereClause string
	countParams      []any
}

func buildListTransactionsPageSQLPlan(req storage.ListTransactionsPageRequest) listTransactionsPageSQLPlan {
	whereClause := "instance_id = ? AND status = ?"
	params := []any{req.InstanceID, string(transaction.StatusCommitted)}
	if req.AfterSeq > 0 {
		whereClause += " AND seq > ?"
		params = append(params, req.AfterSeq)
	}

	// The cursor direction determines comparison operators; sort order is applied separately.
	if !req.Cursor.Zero() {
		if req.Cursor.Dir == cursor.Backward {
			whereClause += " AND seq < ?"
		} else {
			whereClause += " AND seq > ?"
		}
		params = append(params, req.Cursor.Seq)
	}

	if req.FilterClause != "" {
		whereClause += " AND " + req.FilterClause
		params = append(params, req.FilterParams...)
	}

	orderClause := "ORDER BY seq ASC"
	if req.Descending {
		orderClause = "ORDER BY seq DESC"
	}
	// Reverse sort temporarily for previous-page queries so near-edge rows are fetched first.
	if req.Cursor.Reverse {
		if req.Descending {
			orderClause = "ORDER BY seq ASC"
		} else {
			orderClause = "ORDER BY seq DESC"
		}
	}

	countWhereClause := "instance_id = ? AND status = ?"
	countParams := []any{req.InstanceID, string(transaction.StatusCommitted)}
	if req.AfterSeq > 0 {
		countWhereClause += " AND seq > ?"
		countParams = append(countParams, req.AfterSeq)
	}
	if req.FilterClause != "" {
		countWhereClause += " AND " + req.FilterClause
		countParams = append(countParams, req.FilterParams...)
	}

	return listTransactionsPageSQLPlan{
		whereClause:      whereClause,
		params:           params,
		orderClause:      orderClause,
		limitClause:      fmt.Sprintf("LIMIT %d", req.PageSize+1),
		countWhereClause: countWhereClause,
		countParams:      countParams,
	}
}
