// Copyright 2025 Blockscout

package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockscout/indexing-core/internal/buffer"
	"github.com/blockscout/indexing-core/internal/cctx"
	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/config"
	"github.com/blockscout/indexing-core/internal/dablob"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/fetcher"
	"github.com/blockscout/indexing-core/internal/interchain"
	"github.com/blockscout/indexing-core/internal/metrics"
	"github.com/blockscout/indexing-core/internal/model"
	"github.com/blockscout/indexing-core/internal/persistor"
	"github.com/blockscout/indexing-core/internal/provider/celestia"
	"github.com/blockscout/indexing-core/internal/provider/evmlogs"
	"github.com/blockscout/indexing-core/internal/provider/zetachain"
	"github.com/blockscout/indexing-core/internal/statusgate"
	"github.com/blockscout/indexing-core/internal/statuspublish"
	"github.com/blockscout/indexing-core/internal/userops"
)

// streamRunner holds the dependencies shared by every stream goroutine.
type streamRunner struct {
	cfg         *config.Config
	db          *database.Client
	checkpoints *checkpoint.Store
	pending     *database.PendingStoreAdapter
	persistor   *persistor.Persistor
	broadcaster *statuspublish.Broadcaster
}

func (r *streamRunner) run(ctx context.Context, sc config.StreamConfig) {
	logger := log.New(os.Stdout, "["+sc.Name+"] ", log.LstdFlags)
	switch sc.Kind {
	case config.StreamInterchain:
		r.runInterchain(ctx, sc, logger)
	case config.StreamCCTX:
		r.runCCTX(ctx, sc, logger)
	case config.StreamUserOps:
		r.runUserOps(ctx, sc, logger)
	case config.StreamCelestia:
		r.runCelestia(ctx, sc, logger)
	default:
		logger.Printf("unknown stream kind %q, stream not started", sc.Kind)
	}
}

func streamKeyFor(sc config.StreamConfig) model.StreamKey {
	return model.StreamKey{Name: sc.Name, BridgeID: sc.BridgeID, ChainID: sc.ChainID}
}

// startFetcher loads the stream's checkpoint and starts its producers,
// returning the merged batch channel and the starting cursor.
func (r *streamRunner) startFetcher(ctx context.Context, sc config.StreamConfig, provider fetcher.ProviderForRange, logger *log.Logger) (<-chan []model.RawRecord, model.Checkpoint, bool) {
	streamKey := streamKeyFor(sc)
	checkpoints, err := r.checkpoints.Load(ctx, []model.StreamKey{streamKey})
	if err != nil {
		logger.Printf("failed to load checkpoint: %v", err)
		return nil, model.Checkpoint{}, false
	}
	cursor := checkpoints[streamKey]
	cursor.Key = streamKey

	f := fetcher.New(provider, fetcher.Config{
		StreamKey:    streamKey,
		BatchSize:    uint64(sc.BatchSize),
		PollInterval: sc.PollInterval.Duration(),
		GenesisFloor: sc.GenesisFloor,
	}, fetcher.WithLogger(logger))

	return f.Run(ctx, cursor), cursor, true
}

// runInterchain drives the correlated bridge-message pipeline: fetch
// EVM logs, buffer partial events by message id, flush consolidated
// rows with the checkpoint.
func (r *streamRunner) runInterchain(ctx context.Context, sc config.StreamConfig, logger *log.Logger) {
	addresses := make([]common.Address, 0, len(sc.Addresses))
	for _, a := range sc.Addresses {
		addresses = append(addresses, common.HexToAddress(a))
	}
	selectors := interchain.Selectors{
		Init:    common.HexToHash(sc.InitTopic),
		Confirm: common.HexToHash(sc.ConfirmTopic),
		Deliver: common.HexToHash(sc.DeliverTopic),
	}

	provider, err := evmlogs.New(sc.RPCURL, streamKeyFor(sc), evmlogs.Filter{Addresses: addresses})
	if err != nil {
		logger.Printf("failed to connect provider: %v", err)
		return
	}
	defer provider.Close()

	factory := interchain.NewFactory(selectors)
	r.runBuffered(ctx, sc, provider, factory, factory.KeyOf, nil, logger)
}

// runCCTX drives the ZetaChain pipeline: fetch status snapshots,
// archive each raw snapshot, and buffer them until terminal.
func (r *streamRunner) runCCTX(ctx context.Context, sc config.StreamConfig, logger *log.Logger) {
	provider := zetachain.New(sc.RPCURL, streamKeyFor(sc), zetachain.WithLogger(logger))
	factory := cctx.NewFactory(sc.BridgeID)
	snapshots := database.NewCCTXRepository(r.db)

	archive := func(ctx context.Context, batch []model.RawRecord) {
		rows := make([]model.CCTXSnapshot, 0, len(batch))
		for _, rec := range batch {
			tx, err := cctx.Decode(rec.Payload)
			if err != nil {
				logger.Printf("skipping unparseable cctx snapshot at height %d: %v", rec.Height, err)
				continue
			}
			rows = append(rows, cctx.SnapshotRow(tx, rec.Payload))
		}
		if len(rows) == 0 {
			return
		}
		err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
			return snapshots.UpsertSnapshots(ctx, tx, rows)
		})
		if err != nil {
			logger.Printf("failed to archive %d cctx snapshots: %v", len(rows), err)
		}
	}

	r.runBuffered(ctx, sc, provider, factory, factory.KeyOf, archive, logger)
}

// runBuffered is the shared fetch -> ingest -> flush loop for streams
// whose records need correlation. preFlush, if set, runs on every
// fetched batch before ingestion (the CCTX raw-snapshot archive).
func (r *streamRunner) runBuffered(
	ctx context.Context,
	sc config.StreamConfig,
	provider fetcher.ProviderForRange,
	factory buffer.ItemFactory,
	keyOf buffer.KeyFunc,
	preFlush func(context.Context, []model.RawRecord),
	logger *log.Logger,
) {
	streamKey := streamKeyFor(sc)
	streamMetrics := metrics.NewStreamMetrics(r.cfg.Metrics.Namespace, sc.Name)
	gate := statusgate.New(uint64(sc.BatchSize)*2,
		statusgate.WithLogger(logger),
		statusgate.WithPublisher(r.broadcaster),
	)

	batches, cursor, ok := r.startFetcher(ctx, sc, provider, logger)
	if !ok {
		return
	}

	correlationBuffer := buffer.New(factory, r.pending, r.cfg.Buffer.TTL.Duration(), r.cfg.Buffer.Capacity,
		buffer.WithLogger(logger))

	sweepTicker := time.NewTicker(r.cfg.Buffer.TTL.Duration())
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, chOpen := <-batches:
			if !chOpen {
				return
			}
			if preFlush != nil {
				preFlush(ctx, batch)
			}
			if err := correlationBuffer.Ingest(ctx, keyOf, batch); err != nil {
				logger.Printf("ingest failed: %v", err)
				continue
			}
			cursor = advanceCursor(cursor, batch)
			streamMetrics.AddRecordsFetched(uint64(len(batch)))
			flushReady(ctx, correlationBuffer, r.persistor, streamKey, cursor, logger)

			if correlationBuffer.AtCapacity() {
				// force an early sweep so a burst of incomplete
				// entries spills instead of growing the hot map
				if _, err := correlationBuffer.AgeSweep(ctx, time.Now().Add(r.cfg.Buffer.TTL.Duration())); err != nil {
					logger.Printf("capacity sweep failed: %v", err)
				}
			}

			if tip, err := provider.Tip(ctx); err == nil {
				streamMetrics.SetRealtimeCursor(cursor.ForwardCursor)
				gate.Evaluate(sc.Name, cursor.ForwardCursor, tip)
			}
		case <-sweepTicker.C:
			spilled, err := correlationBuffer.AgeSweep(ctx, time.Now())
			if err != nil {
				logger.Printf("age-sweep failed: %v", err)
				continue
			}
			if len(spilled) > 0 {
				logger.Printf("spilled %d stale entries", len(spilled))
			}
		}
	}
}

// runUserOps drives the uncorrelated EntryPoint-event pipeline.
func (r *streamRunner) runUserOps(ctx context.Context, sc config.StreamConfig, logger *log.Logger) {
	addresses := make([]common.Address, 0, len(sc.Addresses))
	for _, a := range sc.Addresses {
		addresses = append(addresses, common.HexToAddress(a))
	}
	provider, err := evmlogs.New(sc.RPCURL, streamKeyFor(sc), evmlogs.Filter{
		Addresses: addresses,
		Topics:    [][]common.Hash{{userops.EventSignature}},
	})
	if err != nil {
		logger.Printf("failed to connect provider: %v", err)
		return
	}
	defer provider.Close()

	batches, _, ok := r.startFetcher(ctx, sc, provider, logger)
	if !ok {
		return
	}
	userops.NewIndexer(r.db, r.checkpoints, streamKeyFor(sc), userops.WithLogger(logger)).Run(ctx, batches)
}

// runCelestia drives the uncorrelated DA-blob pipeline.
func (r *streamRunner) runCelestia(ctx context.Context, sc config.StreamConfig, logger *log.Logger) {
	opts := []celestia.Option{celestia.WithLogger(logger)}
	if sc.AuthToken != "" {
		opts = append(opts, celestia.WithAuthToken(sc.AuthToken))
	}
	provider := celestia.New(sc.RPCURL, streamKeyFor(sc), sc.Namespaces, opts...)

	batches, _, ok := r.startFetcher(ctx, sc, provider, logger)
	if !ok {
		return
	}
	dablob.NewIndexer(r.db, r.checkpoints, streamKeyFor(sc), dablob.WithLogger(logger)).Run(ctx, batches)
}

// advanceCursor folds a fetched batch's heights into the running
// checkpoint, applying the monotone merge incrementally as records
// arrive rather than only at flush time.
func advanceCursor(cursor model.Checkpoint, batch []model.RawRecord) model.Checkpoint {
	for _, rec := range batch {
		if rec.Height > cursor.ForwardCursor {
			cursor.ForwardCursor = rec.Height
		}
		if cursor.BackwardCursor == 0 || rec.Height < cursor.BackwardCursor {
			cursor.BackwardCursor = rec.Height
		}
	}
	return cursor
}

func flushReady(ctx context.Context, b *buffer.Buffer, p *persistor.Persistor, streamKey model.StreamKey, cursor model.Checkpoint, logger *log.Logger) {
	ready := b.DrainReady()
	if len(ready) == 0 {
		return
	}
	finalizedKeys := make([]model.BufferKey, 0, len(ready))
	for _, msg := range ready {
		finalizedKeys = append(finalizedKeys, msg.Key())
	}
	cursorUpdates := map[model.StreamKey]model.Checkpoint{streamKey: cursor}
	if err := p.Flush(ctx, ready, finalizedKeys, cursorUpdates); err != nil {
		logger.Printf("flush failed: %v", err)
	}
}
