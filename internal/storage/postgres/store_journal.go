package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// txColumns is the scan order shared by every transaction query.
const txColumns = "instance_id, id, kind, status, hero_id, seq, baseline_seq, occurred_at, canonical_at, committed_at, discarded_at, attrs_json, content_hash, prev_hash, chain_hash, signature, signature_key_id, request_id"

func scanTransaction(row rowScanner) (transaction.Transaction, error) {
	var (
		tx          transaction.Transaction
		status      string
		seq         sql.NullInt64
		occurredAt  int64
		canonicalAt sql.NullInt64
		committedAt sql.NullInt64
		discardedAt sql.NullInt64
		attrsJSON   []byte
	)
	err := row.Scan(
		&tx.InstanceID,
		&tx.ID,
		&tx.Kind,
		&status,
		&tx.HeroID,
		&seq,
		&tx.BaselineSeq,
		&occurredAt,
		&canonicalAt,
		&committedAt,
		&discardedAt,
		&attrsJSON,
		&tx.Hash,
		&tx.PrevHash,
		&tx.ChainHash,
		&tx.Signature,
		&tx.SignatureKeyID,
		&tx.RequestID,
	)
	if err == sql.ErrNoRows {
		return transaction.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Status = transaction.Status(status)
	if seq.Valid {
		tx.Seq = uint64(seq.Int64)
	}
	tx.OccurredAt = fromMillis(occurredAt)
	tx.CanonicalAt = fromNullMillis(canonicalAt)
	tx.CommittedAt = fromNullMillis(committedAt)
	tx.DiscardedAt = fromNullMillis(discardedAt)
	attrs, err := unmarshalAttrs(attrsJSON)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("decode transaction %s attrs: %w", tx.ID, err)
	}
	tx.Attrs = attrs
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// AppendPending stores a pending transaction.
func (s *Store) AppendPending(ctx context.Context, tx transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if tx.ID == "" || tx.InstanceID == "" {
		return fmt.Errorf("transaction id and instance id are required")
	}
	if tx.Status != transaction.StatusPending {
		return apperrors.New(apperrors.CodeTransactionNotPending, "append requires a pending transaction")
	}
	attrsJSON, err := marshalAttrs(tx.Attrs)
	if err != nil {
		return fmt.Errorf("encode transaction %s attrs: %w", tx.ID, err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO transactions (
			instance_id, id, kind, status, hero_id, seq, baseline_seq,
			occurred_at, canonical_at, committed_at, discarded_at,
			attrs_json, content_hash, prev_hash, chain_hash,
			signature, signature_key_id, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NULL, $10, $11, '', '', '', '', $12)`,
		tx.InstanceID,
		tx.ID,
		string(tx.Kind),
		string(transaction.StatusPending),
		tx.HeroID,
		toNullSeq(tx.Seq),
		tx.BaselineSeq,
		toMillis(tx.OccurredAt),
		toNullMillis(tx.CanonicalAt),
		attrsJSON,
		tx.Hash,
		tx.RequestID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s already appended", tx.ID)
		}
		return fmt.Errorf("append transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetTransaction retrieves a transaction in any status.
func (s *Store) GetTransaction(ctx context.Context, instanceID, txID string) (transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}
	if s == nil || s.sqlDB == nil {
		return transaction.Transaction{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE instance_id = $1 AND id = $2",
		instanceID, txID)
	return scanTransaction(row)
}

// GetTransactionByHash retrieves the latest transaction carrying the content
// hash. Hashes are not unique across re-appends, so the newest row wins.
func (s *Store) GetTransactionByHash(ctx context.Context, hash string) (transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}
	if s == nil || s.sqlDB == nil {
		return transaction.Transaction{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE content_hash = $1 ORDER BY append_id DESC LIMIT 1",
		hash)
	return scanTransaction(row)
}

// ListPending returns pending transactions in append order.
func (s *Store) ListPending(ctx context.Context, instanceID string) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE instance_id = $1 AND status = $2 ORDER BY append_id",
		instanceID, string(transaction.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// CommitBatch promotes pending transactions to the committed log. Commits
// for the same instance are serialized with an advisory lock; the unique
// (instance_id, seq) index backstops any writer that slips past the tail
// check.
func (s *Store) CommitBatch(ctx context.Context, instanceID string, txIDs []string, at time.Time) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(txIDs) == 0 {
		return nil, apperrors.New(apperrors.CodeTransactionBatchEmpty, "commit batch is empty")
	}

	dbTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit batch: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", instanceID); err != nil {
		return nil, fmt.Errorf("lock instance %s: %w", instanceID, err)
	}

	var tail uint64
	err = dbTx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE instance_id = $1 AND status = $2",
		instanceID, string(transaction.StatusCommitted)).Scan(&tail)
	if err != nil {
		return nil, fmt.Errorf("read committed tail: %w", err)
	}

	batch := make([]transaction.Transaction, 0, len(txIDs))
	for _, id := range txIDs {
		row := dbTx.QueryRowContext(ctx,
			"SELECT "+txColumns+" FROM transactions WHERE instance_id = $1 AND id = $2",
			instanceID, id)
		tx, err := scanTransaction(row)
		if err != nil {
			return nil, err
		}
		if tx.Status != transaction.StatusPending {
			return nil, apperrors.WithMetadata(apperrors.CodeTransactionNotPending,
				fmt.Sprintf("transaction %s is %s", id, tx.Status),
				map[string]string{"transaction_id": id, "status": string(tx.Status)})
		}
		if tx.BaselineSeq != tail {
			return nil, storage.ErrCommitConflict
		}
		batch = append(batch, tx)
	}

	prevChain := ""
	prevHash := ""
	if tail > 0 {
		err = dbTx.QueryRowContext(ctx,
			"SELECT chain_hash, content_hash FROM transactions WHERE instance_id = $1 AND seq = $2",
			instanceID, tail).Scan(&prevChain, &prevHash)
		if err != nil {
			return nil, fmt.Errorf("read chain tail: %w", err)
		}
	}

	committedAt := toMillis(at)
	out := make([]transaction.Transaction, 0, len(batch))
	for i, tx := range batch {
		tx.Seq = tail + uint64(i) + 1
		tx.Status = transaction.StatusCommitted
		tx.CommittedAt = at
		tx.PrevHash = prevHash
		chain, err := transaction.ChainHash(tx, prevChain)
		if err != nil {
			return nil, fmt.Errorf("chain transaction %s: %w", tx.ID, err)
		}
		tx.ChainHash = chain
		if s.signer != nil {
			sig, keyID, err := s.signer.SignChainHash(instanceID, chain)
			if err != nil {
				return nil, fmt.Errorf("sign transaction %s: %w", tx.ID, err)
			}
			tx.Signature = sig
			tx.SignatureKeyID = keyID
		}
		_, err = dbTx.ExecContext(ctx, `
			UPDATE transactions
			SET seq = $1, status = $2, committed_at = $3, prev_hash = $4, chain_hash = $5, signature = $6, signature_key_id = $7
			WHERE instance_id = $8 AND id = $9`,
			tx.Seq,
			string(transaction.StatusCommitted),
			committedAt,
			tx.PrevHash,
			tx.ChainHash,
			tx.Signature,
			tx.SignatureKeyID,
			instanceID,
			tx.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, storage.ErrCommitConflict
			}
			return nil, fmt.Errorf("commit transaction %s: %w", tx.ID, err)
		}
		prevChain = chain
		prevHash = tx.Hash
		out = append(out, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return out, nil
}

// DiscardPending flips pending transactions to discarded. The batch is
// validated before any row changes.
func (s *Store) DiscardPending(ctx context.Context, instanceID string, txIDs []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	dbTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin discard: %w", err)
	}
	defer dbTx.Rollback()

	for _, id := range txIDs {
		var status string
		err := dbTx.QueryRowContext(ctx,
			"SELECT status FROM transactions WHERE instance_id = $1 AND id = $2",
			instanceID, id).Scan(&status)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read transaction %s: %w", id, err)
		}
		if transaction.Status(status) != transaction.StatusPending {
			return apperrors.WithMetadata(apperrors.CodeTransactionNotPending,
				fmt.Sprintf("transaction %s is %s", id, status),
				map[string]string{"transaction_id": id, "status": status})
		}
	}

	discardedAt := toMillis(at)
	for _, id := range txIDs {
		_, err := dbTx.ExecContext(ctx,
			"UPDATE transactions SET status = $1, discarded_at = $2 WHERE instance_id = $3 AND id = $4",
			string(transaction.StatusDiscarded), discardedAt, instanceID, id)
		if err != nil {
			return fmt.Errorf("discard transaction %s: %w", id, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("discard batch: %w", err)
	}
	return nil
}

// ListCommitted returns committed transactions after afterSeq, ascending.
// A non-positive limit returns the full remainder of the log.
func (s *Store) ListCommitted(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	query := "SELECT " + txColumns + " FROM transactions WHERE instance_id = $1 AND status = $2 AND seq > $3 ORDER BY seq"
	args := []any{instanceID, string(transaction.StatusCommitted), afterSeq}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list committed: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// LastCommittedSeq returns the committed tail sequence, zero when empty.
func (s *Store) LastCommittedSeq(ctx context.Context, instanceID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var tail uint64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE instance_id = $1 AND status = $2",
		instanceID, string(transaction.StatusCommitted)).Scan(&tail)
	if err != nil {
		return 0, fmt.Errorf("read committed tail: %w", err)
	}
	return tail, nil
}

// ImportCommitted restores an archived committed log verbatim, preserving
// sequence numbers, timestamps, and the hash chain as recorded.
func (s *Store) ImportCommitted(ctx context.Context, instanceID string, txs []transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return fmt.Errorf("instance id is required")
	}
	if len(txs) == 0 {
		return nil
	}
	for i, tx := range txs {
		if tx.Status != transaction.StatusCommitted {
			return apperrors.WithMetadata(apperrors.CodeTransactionNotCommitted,
				fmt.Sprintf("transaction %s is %s", tx.ID, tx.Status),
				map[string]string{"transaction_id": tx.ID, "status": string(tx.Status)})
		}
		if want := uint64(i) + 1; tx.Seq != want {
			return fmt.Errorf("transaction %s has seq %d, want %d", tx.ID, tx.Seq, want)
		}
	}

	dbTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := dbTx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", instanceID); err != nil {
		return fmt.Errorf("lock instance %s: %w", instanceID, err)
	}
	var existing int
	err = dbTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE instance_id = $1", instanceID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("check journal: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("instance %s journal is not empty", instanceID)
	}

	for _, tx := range txs {
		attrsJSON, err := marshalAttrs(tx.Attrs)
		if err != nil {
			return fmt.Errorf("encode transaction %s attrs: %w", tx.ID, err)
		}
		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO transactions (
				instance_id, id, kind, status, hero_id, seq, baseline_seq,
				occurred_at, canonical_at, committed_at, discarded_at,
				attrs_json, content_hash, prev_hash, chain_hash,
				signature, signature_key_id, request_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, $11, $12, $13, $14, $15, $16, $17)`,
			instanceID,
			tx.ID,
			string(tx.Kind),
			string(transaction.StatusCommitted),
			tx.HeroID,
			tx.Seq,
			tx.BaselineSeq,
			toMillis(tx.OccurredAt),
			toNullMillis(tx.CanonicalAt),
			toMillis(tx.CommittedAt),
			attrsJSON,
			tx.Hash,
			tx.PrevHash,
			tx.ChainHash,
			tx.Signature,
			tx.SignatureKeyID,
			tx.RequestID,
		)
		if err != nil {
			return fmt.Errorf("import transaction %s: %w", tx.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// ListTransactionsPage returns a paginated, filtered, and sorted view of the
// committed log. The shared ?-placeholder plan is rebound to $n form before
// execution.
func (s *Store) ListTransactionsPage(ctx context.Context, req storage.ListTransactionsPageRequest) (storage.ListTransactionsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListTransactionsPageResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("storage is not configured")
	}
	if req.InstanceID == "" {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("instance id is required")
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	plan := buildListTransactionsPagePlan(req)

	query := rebind(fmt.Sprintf(
		"SELECT %s FROM transactions WHERE %s %s %s",
		txColumns,
		plan.whereClause,
		plan.orderClause,
		plan.limitClause,
	))

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
	if req.Cursor.Reverse {
		for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
			txs[i], txs[j] = txs[j], txs[i]
		}
	}

	countQuery := rebind(fmt.Sprintf("SELECT COUNT(*) FROM transactions WHERE %s", plan.countWhereClause))
	var totalCount int
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, plan.countParams...).Scan(&totalCount); err != nil {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("count transactions: %w", err)
	}

	result := storage.ListTransactionsPageResult{
		Transactions: txs,
		TotalCount:   totalCount,
	}
	if req.Cursor.Reverse {
		result.HasNextPage = true
		result.HasPrevPage = hasMore
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = !req.Cursor.Zero()
	}
	return result, nil
}

type listTransactionsPagePlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	countWhereClause string
	countParams      []any
}

func buildListTransactionsPagePlan(req storage.ListTransactionsPageRequest) listTransactionsPagePlan {
	whereClause := "instance_id = ? AND status = ?"
	params := []any{req.InstanceID, string(transaction.StatusCommitted)}
	if req.AfterSeq > 0 {
		whereClause += " AND seq > ?"
		params = append(params, req.AfterSeq)
	}
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

	return listTransactionsPagePlan{
		whereClause:      whereClause,
		params:           params,
		orderClause:      orderClause,
		limitClause:      fmt.Sprintf("LIMIT %d", req.PageSize+1),
		countWhereClause: countWhereClause,
		countParams:      countParams,
	}
}
