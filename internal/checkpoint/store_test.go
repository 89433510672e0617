// Copyright 2025 Blockscout

package checkpoint

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/model"
)

// Repository-backed tests:
// skip unless a live Postgres is configured via an env var, since
// sql.DB has no in-process fake worth maintaining here.
var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("INDEXER_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}
	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testDB == nil {
		t.Skip("INDEXER_TEST_DB not configured")
	}
	client, err := database.NewClient(database.Config{URL: os.Getenv("INDEXER_TEST_DB")})
	if err != nil {
		t.Fatalf("failed to open client: %v", err)
	}
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestStore_LoadMissingIsAllZero(t *testing.T) {
	store := newTestStore(t)
	key := model.StreamKey{Name: "test", BridgeID: 1, ChainID: 1}

	out, err := store.Load(context.Background(), []model.StreamKey{key})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cp, ok := out[key]
	if !ok {
		t.Fatalf("expected key present with zero checkpoint")
	}
	if cp.BackwardCursor != 0 || cp.ForwardCursor != 0 {
		t.Fatalf("expected all-zero checkpoint, got %+v", cp)
	}
}

func TestStore_UpsertBatchMergesMonotonically(t *testing.T) {
	store := newTestStore(t)
	key := model.StreamKey{BridgeID: 2, ChainID: 7}

	first := model.Checkpoint{Key: key, BackwardCursor: 100, ForwardCursor: 200}
	second := model.Checkpoint{Key: key, BackwardCursor: 50, ForwardCursor: 250}

	ctx := context.Background()
	runUpsert := func(cp model.Checkpoint) {
		tx, err := testDB.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		if err := store.UpsertBatch(ctx, tx, map[model.StreamKey]model.Checkpoint{key: cp}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	runUpsert(first)
	runUpsert(second)

	out, err := store.Load(ctx, []model.StreamKey{key})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := out[key]
	if got.BackwardCursor != 50 {
		t.Errorf("expected backward cursor to take the min (50), got %d", got.BackwardCursor)
	}
	if got.ForwardCursor != 250 {
		t.Errorf("expected forward cursor to take the max (250), got %d", got.ForwardCursor)
	}
}
