// Copyright 2025 Blockscout
//
// UserOp Repository - chunked upserts and paginated reads for indexed
// ERC-4337 user operations.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

const userOpColumns = 11

// UserOpRepository persists user_operations rows.
type UserOpRepository struct {
	client *Client
}

func NewUserOpRepository(client *Client) *UserOpRepository {
	return &UserOpRepository{client: client}
}

// UpsertBatch writes decoded operations with ON CONFLICT on the op
// hash updating the mutable columns, so a re-fetched range is
// idempotent.
func (r *UserOpRepository) UpsertBatch(ctx context.Context, tx *sql.Tx, ops []model.UserOperation) error {
	chunkSize := maxParamsPerStatement / userOpColumns
	for start := 0; start < len(ops); start += chunkSize {
		end := start + chunkSize
		if end > len(ops) {
			end = len(ops)
		}
		if err := r.upsertChunk(ctx, tx, ops[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserOpRepository) upsertChunk(ctx context.Context, tx *sql.Tx, chunk []model.UserOperation) error {
	if len(chunk) == 0 {
		return nil
	}
	values := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*userOpColumns)
	for i, op := range chunk {
		base := i*userOpColumns + 1
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args,
			op.Hash, op.Sender, op.Paymaster, op.Nonce, op.Success,
			op.ActualGasCost, op.ActualGasUsed, op.ChainID, op.BlockNumber, op.LogIndex, op.TxHash,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO user_operations
			(hash, sender, paymaster, nonce, success, actual_gas_cost, actual_gas_used,
			 chain_id, block_number, log_index, tx_hash)
		VALUES %s
		ON CONFLICT (hash) DO UPDATE SET
			success = EXCLUDED.success,
			actual_gas_cost = EXCLUDED.actual_gas_cost,
			actual_gas_used = EXCLUDED.actual_gas_used,
			block_number = EXCLUDED.block_number,
			log_index = EXCLUDED.log_index,
			tx_hash = EXCLUDED.tx_hash`, joinValues(values))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert user operation chunk: %w", err)
	}
	return nil
}

// Get returns one operation by its hash.
func (r *UserOpRepository) Get(ctx context.Context, hash string) (model.UserOperation, bool, error) {
	var op model.UserOperation
	err := r.client.db.QueryRowContext(ctx, `
		SELECT hash, sender, paymaster, nonce, success, actual_gas_cost, actual_gas_used,
		       chain_id, block_number, log_index, tx_hash
		FROM user_operations WHERE hash = $1`, hash,
	).Scan(&op.Hash, &op.Sender, &op.Paymaster, &op.Nonce, &op.Success,
		&op.ActualGasCost, &op.ActualGasUsed, &op.ChainID, &op.BlockNumber, &op.LogIndex, &op.TxHash)
	if err == sql.ErrNoRows {
		return model.UserOperation{}, false, nil
	}
	if err != nil {
		return model.UserOperation{}, false, fmt.Errorf("failed to get user operation %s: %w", hash, err)
	}
	return op, true, nil
}

// ListBySender returns a page of operations for a sender, newest
// first, keyed by (block_number, log_index) descending from the
// cursor.
func (r *UserOpRepository) ListBySender(ctx context.Context, sender string, beforeBlock uint64, beforeIndex uint32, limit int) ([]model.UserOperation, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT hash, sender, paymaster, nonce, success, actual_gas_cost, actual_gas_used,
		       chain_id, block_number, log_index, tx_hash
		FROM user_operations
		WHERE sender = $1 AND (block_number, log_index) < ($2, $3)
		ORDER BY block_number DESC, log_index DESC
		LIMIT $4`, sender, beforeBlock, beforeIndex, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user operations for %s: %w", sender, err)
	}
	defer rows.Close()

	var ops []model.UserOperation
	for rows.Next() {
		var op model.UserOperation
		if err := rows.Scan(&op.Hash, &op.Sender, &op.Paymaster, &op.Nonce, &op.Success,
			&op.ActualGasCost, &op.ActualGasUsed, &op.ChainID, &op.BlockNumber, &op.LogIndex, &op.TxHash); err != nil {
			return nil, fmt.Errorf("failed to scan user operation row: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
