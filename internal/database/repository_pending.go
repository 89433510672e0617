// Copyright 2025 Blockscout
//
// Pending Repository - persistence for stale-spilled correlation
// buffer entries.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

type PendingRepository struct {
	client *Client
}

func NewPendingRepository(client *Client) *PendingRepository {
	return &PendingRepository{client: client}
}

// Upsert spills a buffer item's serialized form into pending_messages,
// tagged with its schema version so a later rehydrate can reject
// payloads from an incompatible encoding.
func (r *PendingRepository) Upsert(ctx context.Context, tx *sql.Tx, msg model.PendingMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pending_messages (message_id, bridge_id, schema_version, payload, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (message_id, bridge_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			payload = EXCLUDED.payload`,
		msg.Key.MessageID, msg.Key.BridgeID, msg.SchemaVersion, msg.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending message %+v: %w", msg.Key, err)
	}
	return nil
}

// Get probes for a previously spilled entry, used by the correlation
// buffer's late-arrival recovery before creating a fresh item for an
// unseen key.
func (r *PendingRepository) Get(ctx context.Context, key model.BufferKey) (model.PendingMessage, bool, error) {
	var msg model.PendingMessage
	msg.Key = key
	err := r.client.db.QueryRowContext(ctx, `
		SELECT schema_version, payload, created_at
		FROM pending_messages
		WHERE message_id = $1 AND bridge_id = $2`,
		key.MessageID, key.BridgeID,
	).Scan(&msg.SchemaVersion, &msg.Payload, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return model.PendingMessage{}, false, nil
	}
	if err != nil {
		return model.PendingMessage{}, false, fmt.Errorf("failed to get pending message %+v: %w", key, err)
	}
	return msg, true, nil
}

// PendingStoreAdapter satisfies buffer.PendingStore (which takes no
// transaction parameter, since the correlation buffer itself never
// opens one) by driving PendingRepository.Upsert inside a short,
// single-statement transaction of its own. AgeSweep's spill path is
// the only caller; a spill happens independently of a flush.
type PendingStoreAdapter struct {
	client *Client
	repo   *PendingRepository
}

func NewPendingStoreAdapter(client *Client) *PendingStoreAdapter {
	return &PendingStoreAdapter{client: client, repo: NewPendingRepository(client)}
}

func (a *PendingStoreAdapter) Get(ctx context.Context, key model.BufferKey) (model.PendingMessage, bool, error) {
	return a.repo.Get(ctx, key)
}

func (a *PendingStoreAdapter) Upsert(ctx context.Context, msg model.PendingMessage) error {
	return a.client.WithTx(ctx, func(tx *sql.Tx) error {
		return a.repo.Upsert(ctx, tx, msg)
	})
}

// RemoveFinalized deletes rows for keys that were just consolidated
// and emitted, in the same transaction as the canonical write.
func (r *PendingRepository) RemoveFinalized(ctx context.Context, tx *sql.Tx, keys []model.BufferKey) error {
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM pending_messages WHERE message_id = $1 AND bridge_id = $2`,
			k.MessageID, k.BridgeID,
		); err != nil {
			return fmt.Errorf("failed to remove finalized pending message %+v: %w", k, err)
		}
	}
	return nil
}
