// Copyright 2025 Blockscout
//
// Package persistor implements the batch persistor: it commits
// consolidated rows, finalized-pending deletes, and checkpoint deltas
// in one transaction, so a rollback leaves the fetcher/buffer state
// untouched.
package persistor

import (
	"context"
	"database/sql"
	"log"

	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

// Persistor flushes a stream consumer's accumulated work in one
// transaction.
type Persistor struct {
	client     *database.Client
	messages   *database.MessageRepository
	pending    *database.PendingRepository
	checkpoint *checkpoint.Store
	logger     *log.Logger
}

// Option configures a Persistor at construction time.
type Option func(*Persistor)

func WithLogger(logger *log.Logger) Option {
	return func(p *Persistor) { p.logger = logger }
}

// New creates a Persistor over an existing database client and
// checkpoint store.
func New(client *database.Client, store *checkpoint.Store, opts ...Option) *Persistor {
	p := &Persistor{
		client:     client,
		messages:   database.NewMessageRepository(client),
		pending:    database.NewPendingRepository(client),
		checkpoint: store,
		logger:     log.New(log.Writer(), "[Persistor] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Flush runs inside one transaction: split consolidated messages from
// their transfer children, upsert both, remove finalized pending rows,
// and merge checkpoint cursors. A rollback on any step aborts the
// entire flush; the consumed batch was never released, so the
// fetcher/buffer replay it after restart.
func (p *Persistor) Flush(
	ctx context.Context,
	consolidated []model.ConsolidatedMessage,
	finalizedKeys []model.BufferKey,
	cursorUpdates map[model.StreamKey]model.Checkpoint,
) error {
	if len(consolidated) == 0 && len(finalizedKeys) == 0 && len(cursorUpdates) == 0 {
		return nil
	}

	var transfers []model.Transfer
	for _, m := range consolidated {
		transfers = append(transfers, m.Transfers...)
	}

	err := p.client.WithTx(ctx, func(tx *sql.Tx) error {
		if err := p.messages.UpsertMessages(ctx, tx, consolidated); err != nil {
			return err
		}
		if err := p.messages.UpsertTransfers(ctx, tx, transfers); err != nil {
			return err
		}
		if err := p.pending.RemoveFinalized(ctx, tx, finalizedKeys); err != nil {
			return err
		}
		if err := p.checkpoint.UpsertBatch(ctx, tx, cursorUpdates); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, "flush batch", err)
	}

	p.logger.Printf("flushed %d messages, %d transfers, %d finalized pending, %d cursors",
		len(consolidated), len(transfers), len(finalizedKeys), len(cursorUpdates))
	return nil
}
