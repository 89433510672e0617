// Copyright 2025 Blockscout
//
// Checkpoint Repository - monotone cursor persistence for the
// checkpoint store. A single upsert query drives an idempotent merge.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

// Column mapping: BackwardCursor (the descending backfill frontier)
// persists into catchup_max_cursor, catchup_min_cursor tracks the
// lowest floor a backfill pass has ever reached, and ForwardCursor
// maps onto realtime_cursor.

// CheckpointRepository persists indexer_checkpoints rows.
type CheckpointRepository struct {
	client *Client
}

func NewCheckpointRepository(client *Client) *CheckpointRepository {
	return &CheckpointRepository{client: client}
}

// Load returns the checkpoints for the given keys. Missing rows
// materialize as all-zero checkpoints.
func (r *CheckpointRepository) Load(ctx context.Context, keys []model.StreamKey) (map[model.StreamKey]model.Checkpoint, error) {
	out := make(map[model.StreamKey]model.Checkpoint, len(keys))
	for _, k := range keys {
		out[k] = model.Checkpoint{Key: k}
	}
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := r.client.db.QueryContext(ctx, `
		SELECT bridge_id, chain_id, catchup_min_cursor, catchup_max_cursor, finality_cursor, realtime_cursor, updated_at
		FROM indexer_checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cp model.Checkpoint
		var bridgeID int32
		var chainID int64
		if err := rows.Scan(&bridgeID, &chainID, &cp.CatchupMinCursor, &cp.BackwardCursor, &cp.FinalityCursor, &cp.ForwardCursor, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		// rows are keyed by (bridge_id, chain_id); the stream name is not stored
		for _, k := range keys {
			if k.BridgeID == bridgeID && k.ChainID == chainID {
				cp.Key = k
				out[k] = cp
			}
		}
	}
	return out, rows.Err()
}

// UpsertBatch applies the LEAST/GREATEST monotone merge for every key,
// inside the caller's transaction, so a checkpoint update commits
// atomically alongside the consolidated rows it accompanies.
func (r *CheckpointRepository) UpsertBatch(ctx context.Context, tx *sql.Tx, checkpoints map[model.StreamKey]model.Checkpoint) error {
	for key, cp := range checkpoints {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO indexer_checkpoints (bridge_id, chain_id, catchup_min_cursor, catchup_max_cursor, finality_cursor, realtime_cursor, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (bridge_id, chain_id) DO UPDATE SET
				catchup_min_cursor = LEAST(indexer_checkpoints.catchup_min_cursor, EXCLUDED.catchup_min_cursor),
				catchup_max_cursor = LEAST(indexer_checkpoints.catchup_max_cursor, EXCLUDED.catchup_max_cursor),
				finality_cursor = GREATEST(indexer_checkpoints.finality_cursor, EXCLUDED.finality_cursor),
				realtime_cursor = GREATEST(indexer_checkpoints.realtime_cursor, EXCLUDED.realtime_cursor),
				updated_at = now()`,
			key.BridgeID, key.ChainID, cp.CatchupMinCursor, cp.BackwardCursor, cp.FinalityCursor, cp.ForwardCursor,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert checkpoint for %+v: %w", key, err)
		}
	}
	return nil
}
