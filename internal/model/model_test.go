// Copyright 2025 Blockscout

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoint_Merge_MonotoneDirection(t *testing.T) {
	a := Checkpoint{BackwardCursor: 100, ForwardCursor: 50, FinalityCursor: 40}
	b := Checkpoint{BackwardCursor: 60, ForwardCursor: 90, FinalityCursor: 30}

	merged := a.Merge(b)
	assert.Equal(t, uint64(60), merged.BackwardCursor, "backward takes the min")
	assert.Equal(t, uint64(90), merged.ForwardCursor, "forward takes the max")
	assert.Equal(t, uint64(40), merged.FinalityCursor, "finality takes the max")
}

func TestCheckpoint_Merge_ZeroIsUnset(t *testing.T) {
	a := Checkpoint{BackwardCursor: 0, ForwardCursor: 0}
	b := Checkpoint{BackwardCursor: 100, ForwardCursor: 200}

	merged := a.Merge(b)
	assert.Equal(t, uint64(100), merged.BackwardCursor)
	assert.Equal(t, uint64(200), merged.ForwardCursor)
}

func TestCheckpoint_Merge_Idempotent(t *testing.T) {
	a := Checkpoint{BackwardCursor: 60, ForwardCursor: 90}
	merged := a.Merge(a)
	assert.Equal(t, a.BackwardCursor, merged.BackwardCursor)
	assert.Equal(t, a.ForwardCursor, merged.ForwardCursor)
}

func TestRawRecord_Less(t *testing.T) {
	a := RawRecord{Height: 10, LogIndex: 2}
	b := RawRecord{Height: 10, LogIndex: 5}
	c := RawRecord{Height: 11, LogIndex: 0}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}

func TestMatchType_Better(t *testing.T) {
	assert.True(t, MatchFull.Better(MatchPartial))
	assert.True(t, MatchPartial.Better(MatchNone))
	assert.False(t, MatchPartial.Better(MatchFull))
	assert.False(t, MatchNone.Better(MatchNone))
}

func TestMessageStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
