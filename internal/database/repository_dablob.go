// Copyright 2025 Blockscout
//
// DA Blob Repository - upserts and lookups for indexed
// data-availability blobs.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

const blobColumns = 5

// DABlobRepository persists celestia_blobs rows.
type DABlobRepository struct {
	client *Client
}

func NewDABlobRepository(client *Client) *DABlobRepository {
	return &DABlobRepository{client: client}
}

// UpsertBatch writes blobs keyed by (height, namespace, commitment);
// a re-fetched height is idempotent.
func (r *DABlobRepository) UpsertBatch(ctx context.Context, tx *sql.Tx, blobs []model.DABlob) error {
	chunkSize := maxParamsPerStatement / blobColumns
	for start := 0; start < len(blobs); start += chunkSize {
		end := start + chunkSize
		if end > len(blobs) {
			end = len(blobs)
		}
		if err := r.upsertChunk(ctx, tx, blobs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *DABlobRepository) upsertChunk(ctx context.Context, tx *sql.Tx, chunk []model.DABlob) error {
	if len(chunk) == 0 {
		return nil
	}
	values := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*blobColumns)
	for i, b := range chunk {
		base := i*blobColumns + 1
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4))
		args = append(args, b.Height, b.Namespace, b.Commitment, b.Data, b.ShareVersion)
	}

	query := fmt.Sprintf(`
		INSERT INTO celestia_blobs (height, namespace, commitment, data, share_version)
		VALUES %s
		ON CONFLICT (height, namespace, commitment) DO UPDATE SET
			data = EXCLUDED.data,
			share_version = EXCLUDED.share_version`, joinValues(values))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert blob chunk: %w", err)
	}
	return nil
}

// Get returns one blob by its full key.
func (r *DABlobRepository) Get(ctx context.Context, height uint64, namespace, commitment string) (model.DABlob, bool, error) {
	var b model.DABlob
	err := r.client.db.QueryRowContext(ctx, `
		SELECT height, namespace, commitment, data, share_version
		FROM celestia_blobs
		WHERE height = $1 AND namespace = $2 AND commitment = $3`,
		height, namespace, commitment,
	).Scan(&b.Height, &b.Namespace, &b.Commitment, &b.Data, &b.ShareVersion)
	if err == sql.ErrNoRows {
		return model.DABlob{}, false, nil
	}
	if err != nil {
		return model.DABlob{}, false, fmt.Errorf("failed to get blob: %w", err)
	}
	return b, true, nil
}

// ListByNamespace returns a page of blobs in a namespace, newest
// first, descending from the cursor height.
func (r *DABlobRepository) ListByNamespace(ctx context.Context, namespace string, beforeHeight uint64, limit int) ([]model.DABlob, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT height, namespace, commitment, data, share_version
		FROM celestia_blobs
		WHERE namespace = $1 AND height < $2
		ORDER BY height DESC
		LIMIT $3`, namespace, beforeHeight, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs for namespace %s: %w", namespace, err)
	}
	defer rows.Close()

	var blobs []model.DABlob
	for rows.Next() {
		var b model.DABlob
		if err := rows.Scan(&b.Height, &b.Namespace, &b.Commitment, &b.Data, &b.ShareVersion); err != nil {
			return nil, fmt.Errorf("failed to scan blob row: %w", err)
		}
		blobs = append(blobs, b)
	}
	return blobs, rows.Err()
}
