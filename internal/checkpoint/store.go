// Copyright 2025 Blockscout
//
// Package checkpoint implements the checkpoint store: a
// strongly-consistent per-stream cursor table with a monotone merge on
// write, so concurrent or retried upserts from the catch-up and
// realtime producers never move a cursor the wrong way.
package checkpoint

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
	"github.com/blockscout/indexing-core/internal/retry"
)

// Store is the public entry point used by the fetcher and the batch
// persistor. It wraps the Postgres repository with a retry policy so
// any DB error surfaces as a recoverable error retried with
// exponential backoff.
type Store struct {
	repo    *database.CheckpointRepository
	harness *retry.Harness
	logger  *log.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default prefixed logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithHarness overrides the default retry harness (e.g. to share one
// harness's metrics across components).
func WithHarness(h *retry.Harness) Option {
	return func(s *Store) { s.harness = h }
}

// New creates a Store over an existing database client.
func New(client *database.Client, opts ...Option) *Store {
	s := &Store{
		repo:   database.NewCheckpointRepository(client),
		logger: log.New(log.Writer(), "[Checkpoint] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.harness == nil {
		s.harness = retry.New(retry.Policy{Interval: time.Second, Exponential: true, MaxInterval: 30 * time.Second}, s.logger)
	}
	return s
}

// Load returns the checkpoints for the given stream keys, retrying
// transient DB errors. Missing rows materialize as all-zero
// checkpoints.
func (s *Store) Load(ctx context.Context, keys []model.StreamKey) (map[model.StreamKey]model.Checkpoint, error) {
	var out map[model.StreamKey]model.Checkpoint
	err := s.harness.Do(ctx, "checkpoint-load", isRetryable, func(ctx context.Context) error {
		loaded, err := s.repo.Load(ctx, keys)
		if err != nil {
			return errorkind.Wrap(errorkind.Upstream, "load checkpoints", err)
		}
		out = loaded
		return nil
	})
	return out, err
}

// UpsertBatch applies the monotone merge for every key inside the
// caller's transaction. The caller (typically the batch persistor)
// owns the transaction boundary; this method does not retry internally
// since retrying a half-applied transaction would violate atomicity.
// The caller retries the whole flush on failure instead.
func (s *Store) UpsertBatch(ctx context.Context, tx *sql.Tx, checkpoints map[model.StreamKey]model.Checkpoint) error {
	if err := s.repo.UpsertBatch(ctx, tx, checkpoints); err != nil {
		return errorkind.Wrap(errorkind.Upstream, "upsert checkpoints", err)
	}
	return nil
}

func isRetryable(err error) bool {
	return errorkind.Retryable(err)
}
