// Copyright 2025 Blockscout

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamMetrics_TracksCursorsAndCounters(t *testing.T) {
	m := NewStreamMetrics("indexing_core_test", "stream-a")

	m.SetCatchupCursor(100)
	m.SetRealtimeCursor(200)
	m.AddRecordsFetched(5)
	m.IncFetchErrors()
	m.IncRetriesExhausted()

	assert.Equal(t, uint64(100), m.CatchupCursor())
	assert.Equal(t, uint64(200), m.RealtimeCursor())
	assert.Equal(t, uint64(5), m.RecordsFetched())
}

func TestVerificationMetrics_TracksCacheAndMatches(t *testing.T) {
	m := NewVerificationMetrics("indexing_core_test2")

	m.IncCacheHit()
	m.IncCacheHit()
	m.IncCacheMiss()
	m.IncMatch("full")
	m.IncMatch("partial")
	m.IncMatch("none")

	assert.Equal(t, uint64(2), m.CacheHits())
	assert.Equal(t, uint64(1), m.CacheMisses())
}
