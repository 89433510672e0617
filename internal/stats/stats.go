// Copyright 2025 Blockscout
//
// Package stats implements the chart-update framework: a registry of
// named charts, each backed by a Source that computes points for a
// date range, refreshed on a schedule by one of two strategies. The
// SQL (or any other computation) behind a Source is chart-specific and
// lives with the chart's owner; the framework only orchestrates
// ranges, transactions, and bookkeeping.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/blockscout/indexing-core/internal/database"
)

// UpdateStrategy selects how a chart's stored series is refreshed.
type UpdateStrategy string

const (
	// ClearAndReplaceWindow deletes the trailing window and rewrites
	// it from source on every pass. Right for charts whose recent
	// values keep changing (rolling success rates, fee averages).
	ClearAndReplaceWindow UpdateStrategy = "clear_and_replace_window"
	// BatchUpdateStep appends forward from the last stored date in
	// fixed-size steps. Right for append-only daily series.
	BatchUpdateStep UpdateStrategy = "batch_update_step"
)

// Point is one computed datum.
type Point struct {
	Date  time.Time
	Value string // decimal string, avoids integer precision loss
}

// Source computes a chart's points for an inclusive date range.
type Source interface {
	Query(ctx context.Context, from, to time.Time) ([]Point, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, from, to time.Time) ([]Point, error)

func (f SourceFunc) Query(ctx context.Context, from, to time.Time) ([]Point, error) {
	return f(ctx, from, to)
}

// Chart is one registered series.
type Chart struct {
	Name     string
	Strategy UpdateStrategy
	Source   Source
	// StepDays is the batch-update step width; defaults to 30.
	StepDays int
	// WindowDays is the clear-and-replace trailing window; defaults to 7.
	WindowDays int
	// GenesisDate is the earliest date a fresh chart backfills from.
	GenesisDate time.Time
}

func (c Chart) stepDays() int {
	if c.StepDays <= 0 {
		return 30
	}
	return c.StepDays
}

func (c Chart) windowDays() int {
	if c.WindowDays <= 0 {
		return 7
	}
	return c.WindowDays
}

// Updater refreshes every registered chart on demand or on a ticker.
type Updater struct {
	client *database.Client
	repo   *database.StatsRepository
	charts []Chart
	logger *log.Logger
}

// Option configures an Updater at construction time.
type Option func(*Updater)

func WithLogger(logger *log.Logger) Option {
	return func(u *Updater) { u.logger = logger }
}

// NewUpdater creates an Updater over an existing database client.
func NewUpdater(client *database.Client, charts []Chart, opts ...Option) (*Updater, error) {
	seen := make(map[string]bool, len(charts))
	for _, c := range charts {
		if c.Name == "" || c.Source == nil {
			return nil, fmt.Errorf("chart %q must have a name and a source", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate chart name %q", c.Name)
		}
		seen[c.Name] = true
		switch c.Strategy {
		case ClearAndReplaceWindow, BatchUpdateStep:
		default:
			return nil, fmt.Errorf("chart %q has unknown update strategy %q", c.Name, c.Strategy)
		}
	}

	u := &Updater{
		client: client,
		repo:   database.NewStatsRepository(client),
		charts: charts,
		logger: log.New(log.Writer(), "[Stats] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Run refreshes all charts once immediately, then on every tick of
// interval until ctx is canceled.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	u.UpdateAll(ctx, time.Now().UTC())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			u.UpdateAll(ctx, now.UTC())
		}
	}
}

// UpdateAll refreshes every chart, continuing past per-chart failures
// so one broken source never starves the rest.
func (u *Updater) UpdateAll(ctx context.Context, now time.Time) {
	for _, chart := range u.charts {
		if err := u.UpdateChart(ctx, chart, now); err != nil {
			u.logger.Printf("chart %s update failed: %v", chart.Name, err)
		}
	}
}

// UpdateChart refreshes one chart according to its strategy.
func (u *Updater) UpdateChart(ctx context.Context, chart Chart, now time.Time) error {
	today := dayStart(now)
	switch chart.Strategy {
	case ClearAndReplaceWindow:
		from := today.AddDate(0, 0, -(chart.windowDays() - 1))
		return u.replaceWindow(ctx, chart, from, today)
	case BatchUpdateStep:
		return u.batchUpdate(ctx, chart, today)
	default:
		return fmt.Errorf("unknown update strategy %q", chart.Strategy)
	}
}

// replaceWindow deletes and rewrites [from, to] in one transaction, so
// readers never observe a half-cleared window.
func (u *Updater) replaceWindow(ctx context.Context, chart Chart, from, to time.Time) error {
	points, err := chart.Source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("query source for %s: %w", chart.Name, err)
	}

	return u.client.WithTx(ctx, func(tx *sql.Tx) error {
		if err := u.repo.ClearWindow(ctx, tx, chart.Name, from, to); err != nil {
			return err
		}
		if err := u.repo.UpsertPoints(ctx, tx, chart.Name, toRepoPoints(points)); err != nil {
			return err
		}
		return u.repo.RecordUpdate(ctx, tx, database.ChartUpdateRun{
			ID:            uuid.New(),
			ChartName:     chart.Name,
			Strategy:      string(chart.Strategy),
			FromDate:      from,
			ToDate:        to,
			PointsWritten: len(points),
		})
	})
}

// batchUpdate appends forward from the last stored date in step-sized
// ranges, each committed independently so a mid-backfill crash resumes
// at the last completed step.
func (u *Updater) batchUpdate(ctx context.Context, chart Chart, today time.Time) error {
	start := dayStart(chart.GenesisDate)
	if last, ok, err := u.repo.LastPointDate(ctx, chart.Name); err != nil {
		return err
	} else if ok {
		start = dayStart(last).AddDate(0, 0, 1)
	}
	for _, step := range stepRanges(start, today, chart.stepDays()) {
		points, err := chart.Source.Query(ctx, step.from, step.to)
		if err != nil {
			return fmt.Errorf("query source for %s step [%s, %s]: %w",
				chart.Name, step.from.Format("2006-01-02"), step.to.Format("2006-01-02"), err)
		}

		err = u.client.WithTx(ctx, func(tx *sql.Tx) error {
			if err := u.repo.UpsertPoints(ctx, tx, chart.Name, toRepoPoints(points)); err != nil {
				return err
			}
			return u.repo.RecordUpdate(ctx, tx, database.ChartUpdateRun{
				ID:            uuid.New(),
				ChartName:     chart.Name,
				Strategy:      string(chart.Strategy),
				FromDate:      step.from,
				ToDate:        step.to,
				PointsWritten: len(points),
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type dateRange struct {
	from, to time.Time
}

// stepRanges splits [start, end] into inclusive step-sized chunks. An
// empty slice means start is already past end.
func stepRanges(start, end time.Time, stepDays int) []dateRange {
	var steps []dateRange
	for from := start; !from.After(end); {
		to := from.AddDate(0, 0, stepDays-1)
		if to.After(end) {
			to = end
		}
		steps = append(steps, dateRange{from: from, to: to})
		from = to.AddDate(0, 0, 1)
	}
	return steps
}

func toRepoPoints(points []Point) []database.ChartPoint {
	out := make([]database.ChartPoint, 0, len(points))
	for _, p := range points {
		out = append(out, database.ChartPoint{Date: dayStart(p.Date), Value: p.Value})
	}
	return out
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
