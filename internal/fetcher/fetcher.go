// Copyright 2025 Blockscout
//
// Package fetcher implements the dual-stream fetch engine: a catch-up
// producer descending from the backward cursor to a genesis floor, a
// realtime producer ascending from the forward cursor toward the chain
// tip, and a retry-failed producer draining ranges the realtime
// producer could not fetch. All three are merged into one batch stream
// consumed by a single per-stream task.
package fetcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/blockscout/indexing-core/internal/model"
)

// ProviderForRange is the opaque range-query capability the Fetcher is
// generic over. A concrete implementation for EVM logs lives in
// internal/provider/evmlogs.
type ProviderForRange interface {
	// Tip returns the provider's current height/slot.
	Tip(ctx context.Context) (uint64, error)
	// FetchRange returns records in [from, to], sorted by (height, log_index).
	FetchRange(ctx context.Context, from, to uint64) ([]model.RawRecord, error)
}

// Config parameterizes one stream's fetch.
type Config struct {
	StreamKey    model.StreamKey
	BatchSize    uint64
	PollInterval time.Duration
	GenesisFloor uint64
}

// Option configures a Fetcher at construction time.
type Option func(*Fetcher)

// WithLogger overrides the default prefixed logger.
func WithLogger(logger *log.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// Fetcher runs the catch-up, realtime, and retry-failed producers and
// merges their output into a single channel of batches.
type Fetcher struct {
	provider ProviderForRange
	cfg      Config
	logger   *log.Logger
	failed   *FailedRangeTracker
}

// New creates a Fetcher over the given provider and config.
func New(provider ProviderForRange, cfg Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		provider: provider,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[Fetcher] ", log.LstdFlags),
		failed:   NewFailedRangeTracker(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FailedRanges exposes the tracker so a caller can surface it in
// metrics or a status page.
func (f *Fetcher) FailedRanges() *FailedRangeTracker { return f.failed }

// Run starts the catch-up, realtime, and retry-failed producers
// against the given starting checkpoint and returns the merged batch
// stream. The channel closes once ctx is canceled and all three
// producers have returned; each producer notices cancellation within
// one poll interval.
func (f *Fetcher) Run(ctx context.Context, start model.Checkpoint) <-chan []model.RawRecord {
	out := make(chan []model.RawRecord)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() { defer wg.Done(); f.catchUp(ctx, start.BackwardCursor, out) }()
	go func() { defer wg.Done(); f.realtime(ctx, start.ForwardCursor, out) }()
	go func() { defer wg.Done(); f.retryFailed(ctx, out) }()

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// catchUp is the descending producer: starting at
// to := backward_cursor, request [max(genesis_floor, to-batch_size) .. to],
// advance to := from-1, terminate when to < genesis_floor.
func (f *Fetcher) catchUp(ctx context.Context, backwardCursor uint64, out chan<- []model.RawRecord) {
	to := backwardCursor
	for to >= f.cfg.GenesisFloor {
		select {
		case <-ctx.Done():
			return
		default:
		}

		from := f.cfg.GenesisFloor
		if to > f.cfg.BatchSize && to-f.cfg.BatchSize > from {
			from = to - f.cfg.BatchSize
		}

		batch, err := f.provider.FetchRange(ctx, from, to)
		if err != nil {
			f.logger.Printf("catch-up range [%d,%d] failed: %v", from, to, err)
			if !f.sleep(ctx) {
				return
			}
			continue // retry the same range, never skip it
		}

		if !f.emit(ctx, out, batch) {
			return
		}
		if from == 0 {
			return
		}
		to = from - 1
	}
}

// realtime is the ascending producer: read the tip, request
// [from .. min(tip, from+batch_size)], advance from := to+1, otherwise
// sleep and retry. Loops forever.
func (f *Fetcher) realtime(ctx context.Context, forwardCursor uint64, out chan<- []model.RawRecord) {
	from := forwardCursor
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tip, err := f.provider.Tip(ctx)
		if err != nil {
			f.logger.Printf("realtime tip query failed: %v", err)
			if !f.sleep(ctx) {
				return
			}
			continue
		}

		if from > tip {
			if !f.sleep(ctx) {
				return
			}
			continue
		}

		to := tip
		if to-from > f.cfg.BatchSize {
			to = from + f.cfg.BatchSize
		}

		batch, err := f.provider.FetchRange(ctx, from, to)
		if err != nil {
			f.logger.Printf("realtime range [%d,%d] failed: %v", from, to, err)
			f.failed.Add(Range{From: from, To: to})
			if !f.sleep(ctx) {
				return
			}
			continue
		}

		if !f.emit(ctx, out, batch) {
			return
		}
		from = to + 1
	}
}

// retryFailed drains the failed-range tracker on each poll tick,
// re-requesting ranges the realtime producer could not fetch so a
// stalled range becomes a gap that closes instead of a hole.
func (f *Fetcher) retryFailed(ctx context.Context, out chan<- []model.RawRecord) {
	ticker := time.NewTicker(f.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, r := range f.failed.Drain() {
			batch, err := f.provider.FetchRange(ctx, r.From, r.To)
			if err != nil {
				f.logger.Printf("retry of failed range [%d,%d] failed again: %v", r.From, r.To, err)
				f.failed.Add(r)
				continue
			}
			if !f.emit(ctx, out, batch) {
				return
			}
		}
	}
}

func (f *Fetcher) emit(ctx context.Context, out chan<- []model.RawRecord, batch []model.RawRecord) bool {
	if len(batch) == 0 {
		return true
	}
	sorted := append([]model.RawRecord(nil), batch...)
	sortRecords(sorted)
	select {
	case out <- sorted:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Fetcher) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(f.pollInterval()):
		return true
	}
}

func (f *Fetcher) pollInterval() time.Duration {
	if f.cfg.PollInterval <= 0 {
		return time.Second
	}
	return f.cfg.PollInterval
}

func sortRecords(records []model.RawRecord) {
	// Insertion sort: batches arrive near-sorted from the provider.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].Less(records[j-1]); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
