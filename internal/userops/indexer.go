// Copyright 2025 Blockscout

package userops

import (
	"context"
	"database/sql"
	"log"

	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

// Indexer consumes a fetcher's merged batch stream, decoding user
// operations and committing them together with the stream's checkpoint
// in one transaction per batch.
type Indexer struct {
	client     *database.Client
	repo       *database.UserOpRepository
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
		repo:       database.NewUserOpRepository(client),
		checkpoint: store,
		streamKey:  streamKey,
		logger:     log.New(log.Writer(), "[UserOps] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Run drains batches until the channel closes, which happens once the
// fetcher's context is canceled. Failed batches are logged and
// skipped; the checkpoint did not advance for them, so a restart
// re-fetches the same range.
func (i *Indexer) Run(ctx context.Context, batches <-chan []model.RawRecord) {
	for batch := range batches {
		if err := i.ingest(ctx, batch); err != nil {
			i.logger.Printf("failed to ingest batch of %d records: %v", len(batch), err)
		}
	}
}

func (i *Indexer) ingest(ctx context.Context, batch []model.RawRecord) error {
	ops, err := DecodeBatch(batch)
	if err != nil {
		return errorkind.Wrap(errorkind.InvalidArgument, "decode user operations", err)
	}
	if len(ops) == 0 {
		return nil
	}

	cursor := model.Checkpoint{Key: i.streamKey}
	for _, rec := range batch {
		if rec.Height > cursor.ForwardCursor {
			cursor.ForwardCursor = rec.Height
		}
		if cursor.BackwardCursor == 0 || rec.Height < cursor.BackwardCursor {
			cursor.BackwardCursor = rec.Height
		}
	}

	err = i.client.WithTx(ctx, func(tx *sql.Tx) error {
		if err := i.repo.UpsertBatch(ctx, tx, ops); err != nil {
			return err
		}
		return i.checkpoint.UpsertBatch(ctx, tx, map[model.StreamKey]model.Checkpoint{i.streamKey: cursor})
	})
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, "flush user operations", err)
	}

	i.logger.Printf("indexed %d user operations up to height %d", len(ops), cursor.ForwardCursor)
	return nil
}
