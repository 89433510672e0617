// Copyright 2025 Blockscout

package buffer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/model"
)

// testItem is a minimal two-phase ("init", "confirm") message partial
// used to exercise the Buffer without a real message-kind encoding.
type testItem struct {
	MessageID int64
	BridgeID  int32
	HasInit   bool
	HasDone   bool
}

func (t *testItem) Merge(other Item) {
	o := other.(*testItem)
	if o.HasInit {
		t.HasInit = true
	}
	if o.HasDone {
		t.HasDone = true
	}
}

func (t *testItem) Consolidate() (model.ConsolidatedMessage, bool) {
	if !t.HasInit || !t.HasDone {
		return model.ConsolidatedMessage{}, false
	}
	return model.ConsolidatedMessage{ID: t.MessageID, BridgeID: t.BridgeID, Status: model.StatusDelivered}, true
}

func (t *testItem) Serialize() []byte {
	data, _ := json.Marshal(t)
	return data
}

type testFactory struct{}

func (testFactory) FromRecord(rec model.RawRecord) Item {
	return &testItem{
		MessageID: int64(rec.Height), // repurpose height as a message id for the test
		BridgeID:  rec.StreamKey.BridgeID,
		HasInit:   rec.LogIndex == 0,
		HasDone:   rec.LogIndex == 1,
	}
}

func (testFactory) FromPending(schemaVersion uint8, payload []byte) (Item, error) {
	var t testItem
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type fakePendingStore struct {
	entries map[model.BufferKey]model.PendingMessage
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{entries: make(map[model.BufferKey]model.PendingMessage)}
}

func (s *fakePendingStore) Get(ctx context.Context, key model.BufferKey) (model.PendingMessage, bool, error) {
	msg, ok := s.entries[key]
	return msg, ok, nil
}

func (s *fakePendingStore) Upsert(ctx context.Context, msg model.PendingMessage) error {
	s.entries[msg.Key] = msg
	return nil
}

func keyOf(rec model.RawRecord) model.BufferKey {
	return model.BufferKey{MessageID: int64(rec.Height), BridgeID: rec.StreamKey.BridgeID}
}

func TestBuffer_ConsolidatesOnSecondArrival(t *testing.T) {
	b := New(testFactory{}, newFakePendingStore(), time.Hour, 0)
	ctx := context.Background()

	err := b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 1}, Height: 5, LogIndex: 0},
	})
	require.NoError(t, err)
	assert.Empty(t, b.DrainReady())
	assert.Equal(t, 1, b.Len())

	err = b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 1}, Height: 5, LogIndex: 1},
	})
	require.NoError(t, err)

	ready := b.DrainReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(5), ready[0].ID)
	assert.Equal(t, 0, b.Len(), "consolidated entry leaves the hot map")
}

func TestBuffer_AgeSweepSpillsIncompleteEntries(t *testing.T) {
	store := newFakePendingStore()
	b := New(testFactory{}, store, time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 2}, Height: 9, LogIndex: 0},
	}))
	assert.Equal(t, 1, b.Len())

	spilled, err := b.AgeSweep(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, spilled, 1)
	assert.Equal(t, 0, b.Len(), "spilled entries leave the hot map")

	key := model.BufferKey{MessageID: 9, BridgeID: 2}
	_, ok := store.entries[key]
	assert.True(t, ok, "spilled entry is persisted to the pending store")
}

func TestBuffer_LateArrivalRehydratesAndConsolidates(t *testing.T) {
	store := newFakePendingStore()
	b := New(testFactory{}, store, time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 3}, Height: 1, LogIndex: 0},
	}))
	_, err := b.AgeSweep(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 3}, Height: 1, LogIndex: 1},
	}))

	ready := b.DrainReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(1), ready[0].ID)
}

func TestBuffer_DuplicateRecordIsIdempotent(t *testing.T) {
	b := New(testFactory{}, newFakePendingStore(), time.Hour, 0)
	ctx := context.Background()

	init := model.RawRecord{StreamKey: model.StreamKey{BridgeID: 4}, Height: 12, LogIndex: 0}
	done := model.RawRecord{StreamKey: model.StreamKey{BridgeID: 4}, Height: 12, LogIndex: 1}

	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{init, init, done}))
	ready := b.DrainReady()
	require.Len(t, ready, 1, "replayed record must not produce a second consolidation")
	assert.Equal(t, int64(12), ready[0].ID)

	// a replay after consolidation starts a fresh (incomplete) entry,
	// never a second emission of the same message
	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{init}))
	assert.Empty(t, b.DrainReady())
}

func TestBuffer_AtCapacity(t *testing.T) {
	b := New(testFactory{}, newFakePendingStore(), time.Hour, 1)
	ctx := context.Background()
	require.NoError(t, b.Ingest(ctx, keyOf, []model.RawRecord{
		{StreamKey: model.StreamKey{BridgeID: 1}, Height: 1, LogIndex: 0},
	}))
	assert.True(t, b.AtCapacity())
}
