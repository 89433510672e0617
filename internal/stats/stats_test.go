// Copyright 2025 Blockscout

package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewUpdater_ValidatesCharts(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, from, to time.Time) ([]Point, error) {
		return nil, nil
	})

	tests := []struct {
		name   string
		charts []Chart
		wantOK bool
	}{
		{
			name:   "valid",
			charts: []Chart{{Name: "new_txns", Strategy: BatchUpdateStep, Source: source}},
			wantOK: true,
		},
		{
			name:   "missing name",
			charts: []Chart{{Strategy: BatchUpdateStep, Source: source}},
		},
		{
			name:   "missing source",
			charts: []Chart{{Name: "new_txns", Strategy: BatchUpdateStep}},
		},
		{
			name: "duplicate name",
			charts: []Chart{
				{Name: "new_txns", Strategy: BatchUpdateStep, Source: source},
				{Name: "new_txns", Strategy: ClearAndReplaceWindow, Source: source},
			},
		},
		{
			name:   "unknown strategy",
			charts: []Chart{{Name: "new_txns", Strategy: "hourly", Source: source}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewUpdater(nil, tc.charts)
			if tc.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStepRanges_SplitsInclusiveChunks(t *testing.T) {
	steps := stepRanges(day(2025, time.January, 1), day(2025, time.January, 10), 4)
	require.Len(t, steps, 3)
	assert.Equal(t, day(2025, time.January, 1), steps[0].from)
	assert.Equal(t, day(2025, time.January, 4), steps[0].to)
	assert.Equal(t, day(2025, time.January, 5), steps[1].from)
	assert.Equal(t, day(2025, time.January, 8), steps[1].to)
	assert.Equal(t, day(2025, time.January, 9), steps[2].from)
	assert.Equal(t, day(2025, time.January, 10), steps[2].to, "final chunk is clamped to the end date")
}

func TestStepRanges_EmptyWhenStartPastEnd(t *testing.T) {
	steps := stepRanges(day(2025, time.March, 2), day(2025, time.March, 1), 30)
	assert.Empty(t, steps)
}

func TestStepRanges_SingleDay(t *testing.T) {
	steps := stepRanges(day(2025, time.March, 1), day(2025, time.March, 1), 30)
	require.Len(t, steps, 1)
	assert.Equal(t, steps[0].from, steps[0].to)
}

func TestChartDefaults(t *testing.T) {
	c := Chart{}
	assert.Equal(t, 30, c.stepDays())
	assert.Equal(t, 7, c.windowDays())

	c = Chart{StepDays: 10, WindowDays: 14}
	assert.Equal(t, 10, c.stepDays())
	assert.Equal(t, 14, c.windowDays())
}

func TestDayStart_TruncatesToUTCDate(t *testing.T) {
	in := time.Date(2025, time.July, 3, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, day(2025, time.July, 3), dayStart(in))
}
