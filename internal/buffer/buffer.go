// Copyright 2025 Blockscout
//
// Package buffer implements the correlation buffer: an in-memory,
// bounded-age hot map that consolidates partial sub-events into a
// canonical ConsolidatedMessage, spilling stale entries to a pending
// table and rehydrating them on late arrival. The hot map is owned by
// a single consumer task, so Buffer is intentionally not safe for
// concurrent Ingest calls.
package buffer

import (
	"context"
	"log"
	"time"

	"github.com/blockscout/indexing-core/internal/model"
)

// Item is the partial-state type the Buffer consolidates, implemented
// per correlated message kind (interchain message, CCTX).
type Item interface {
	// Merge folds another partial sighting of the same key into this one.
	Merge(other Item)
	// Consolidate reports the canonical row once all required
	// sub-events are present.
	Consolidate() (model.ConsolidatedMessage, bool)
	// Serialize produces the payload persisted to the pending table
	// on stale-spill.
	Serialize() []byte
}

// ItemFactory constructs a fresh Item from a raw record, and
// deserializes one from a spilled pending payload.
type ItemFactory interface {
	FromRecord(rec model.RawRecord) Item
	FromPending(schemaVersion uint8, payload []byte) (Item, error)
}

// PendingStore is the persistence boundary the Buffer spills to and
// rehydrates from.
type PendingStore interface {
	Get(ctx context.Context, key model.BufferKey) (model.PendingMessage, bool, error)
	Upsert(ctx context.Context, msg model.PendingMessage) error
}

type hotEntry struct {
	item     Item
	hotSince time.Time
}

// Buffer is the per-stream correlation state machine.
type Buffer struct {
	factory ItemFactory
	pending PendingStore
	hotTTL  time.Duration
	maxSize int
	logger  *log.Logger

	hot   map[model.BufferKey]*hotEntry
	ready []model.ConsolidatedMessage
}

// Option configures a Buffer at construction time.
type Option func(*Buffer)

func WithLogger(logger *log.Logger) Option {
	return func(b *Buffer) { b.logger = logger }
}

// New creates a Buffer. hotTTL bounds how long an incomplete entry
// stays hot before spilling; maxSize caps the hot map (0 means
// unbounded).
func New(factory ItemFactory, pending PendingStore, hotTTL time.Duration, maxSize int, opts ...Option) *Buffer {
	b := &Buffer{
		factory: factory,
		pending: pending,
		hotTTL:  hotTTL,
		maxSize: maxSize,
		logger:  log.New(log.Writer(), "[Buffer] ", log.LstdFlags),
		hot:     make(map[model.BufferKey]*hotEntry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// KeyFunc maps a raw record to its correlation key. Supplied by the
// caller since the key shape is message-kind specific.
type KeyFunc func(rec model.RawRecord) model.BufferKey

// Ingest folds a batch of raw records into the hot map, probing the
// pending store for unseen keys first. Items that now satisfy
// Consolidate are moved onto the ready queue.
func (b *Buffer) Ingest(ctx context.Context, keyOf KeyFunc, batch []model.RawRecord) error {
	for _, rec := range batch {
		key := keyOf(rec)
		entry, ok := b.hot[key]
		if !ok {
			rehydrated, err := b.rehydrate(ctx, key)
			if err != nil {
				return err
			}
			entry = rehydrated
			if entry != nil {
				b.hot[key] = entry
			}
		}

		incoming := b.factory.FromRecord(rec)
		if entry == nil {
			entry = &hotEntry{item: incoming, hotSince: time.Now()}
			b.hot[key] = entry
		} else {
			entry.item.Merge(incoming)
		}

		if msg, done := entry.item.Consolidate(); done {
			b.ready = append(b.ready, msg)
			delete(b.hot, key)
		}
	}
	return nil
}

// rehydrate probes the pending store for key and, if present,
// deserializes it into a hot entry. Returns nil, nil if key was never
// spilled.
func (b *Buffer) rehydrate(ctx context.Context, key model.BufferKey) (*hotEntry, error) {
	spilled, ok, err := b.pending.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	item, err := b.factory.FromPending(spilled.SchemaVersion, spilled.Payload)
	if err != nil {
		return nil, err
	}
	b.logger.Printf("rehydrated pending entry %+v (spilled at %s)", key, spilled.CreatedAt)
	return &hotEntry{item: item, hotSince: spilled.CreatedAt}, nil
}

// AgeSweep spills every hot entry older than hotTTL that remains
// incomplete, removing it from the hot map. It returns the spilled
// messages so the caller can account for them; the Buffer itself does
// not open transactions.
func (b *Buffer) AgeSweep(ctx context.Context, now time.Time) ([]model.PendingMessage, error) {
	var spilled []model.PendingMessage
	for key, entry := range b.hot {
		if now.Sub(entry.hotSince) < b.hotTTL {
			continue
		}
		msg := model.PendingMessage{
			Key:           key,
			SchemaVersion: model.CurrentPendingSchemaVersion,
			Payload:       entry.item.Serialize(),
			CreatedAt:     entry.hotSince,
		}
		if err := b.pending.Upsert(ctx, msg); err != nil {
			return nil, err
		}
		spilled = append(spilled, msg)
		delete(b.hot, key)
	}
	return spilled, nil
}

// DrainReady removes and returns every consolidated message queued
// for emission, for the consumer task to hand to the batch persistor.
func (b *Buffer) DrainReady() []model.ConsolidatedMessage {
	out := b.ready
	b.ready = nil
	return out
}

// Len reports the current hot-map size, for capacity backpressure.
func (b *Buffer) Len() int { return len(b.hot) }

// AtCapacity reports whether the hot map has reached maxSize (0 means unbounded).
func (b *Buffer) AtCapacity() bool {
	return b.maxSize > 0 && len(b.hot) >= b.maxSize
}
