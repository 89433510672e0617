// Copyright 2025 Blockscout
//
// Package dablob indexes data-availability blobs. Like user
// operations, a blob is complete at first sighting: the consumer
// decodes each fetched batch and upserts rows directly, with the
// checkpoint advancing in the same transaction.
package dablob

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
	"github.com/blockscout/indexing-core/internal/provider/celestia"
)

// Decode parses a celestia provider record payload into a model row.
// Blob data arrives base64-encoded from the node and is stored as raw
// bytes.
func Decode(rec model.RawRecord) (model.DABlob, error) {
	var blob celestia.Blob
	if err := json.Unmarshal(rec.Payload, &blob); err != nil {
		return model.DABlob{}, fmt.Errorf("decode blob at height %d: %w", rec.Height, err)
	}
	data, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return model.DABlob{}, fmt.Errorf("decode blob data at height %d: %w", rec.Height, err)
	}
	return model.DABlob{
		Height:       rec.Height,
		Namespace:    blob.Namespace,
		Commitment:   blob.Commitment,
		Data:         data,
		ShareVersion: blob.ShareVersion,
	}, nil
}

// Indexer consumes a fetcher's merged batch stream of blob records.
type Indexer struct {
	client     *database.Client
	repo       *database.DABlobRepository
	checkpoint *checkpoint.Store
	streamKey  model.StreamKey
	logger     *log.Logger
}

// Option configures an Indexer at construction time.
type Option func(*Indexer)

func WithLogger(logger *log.Logger) Option {
	return func(i *Indexer) { i.logger = logger }
}

// NewIndexer creates an Indexer over an existing database client and
// checkpoint store.
func NewIndexer(client *database.Client, store *checkpoint.Store, streamKey model.StreamKey, opts ...Option) *Indexer {
	idx := &Indexer{
		client:     client,
		repo:       database.NewDABlobRepository(client),
		checkpoint: store,
		streamKey:  streamKey,
		logger:     log.New(log.Writer(), "[DABlob] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Run drains batches until the channel closes. Failed batches are
// logged and skipped; the checkpoint did not advance for them, so a
// restart re-fetches the same range.
func (i *Indexer) Run(ctx context.Context, batches <-chan []model.RawRecord) {
	for batch := range batches {
		if err := i.ingest(ctx, batch); err != nil {
			i.logger.Printf("failed to ingest batch of %d blobs: %v", len(batch), err)
		}
	}
}

func (i *Indexer) ingest(ctx context.Context, batch []model.RawRecord) error {
	blobs := make([]model.DABlob, 0, len(batch))
	cursor := model.Checkpoint{Key: i.streamKey}
	for _, rec := range batch {
		blob, err := Decode(rec)
		if err != nil {
			return errorkind.Wrap(errorkind.InvalidArgument, "decode blob batch", err)
		}
		blobs = append(blobs, blob)
		if rec.Height > cursor.ForwardCursor {
			cursor.ForwardCursor = rec.Height
		}
		if cursor.BackwardCursor == 0 || rec.Height < cursor.BackwardCursor {
			cursor.BackwardCursor = rec.Height
		}
	}
	if len(blobs) == 0 {
		return nil
	}

	err := i.client.WithTx(ctx, func(tx *sql.Tx) error {
		if err := i.repo.UpsertBatch(ctx, tx, blobs); err != nil {
			return err
		}
		return i.checkpoint.UpsertBatch(ctx, tx, map[model.StreamKey]model.Checkpoint{i.streamKey: cursor})
	})
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, "flush blobs", err)
	}

	i.logger.Printf("indexed %d blobs up to height %d", len(blobs), cursor.ForwardCursor)
	return nil
}
