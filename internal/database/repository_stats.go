// Copyright 2025 Blockscout
//
// Stats Repository - chart point storage for the stats framework. The
// per-chart SQL producing the points lives behind stats.Source; this
// repository only stores and serves the resulting series.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChartPoint is one stored datum of a chart series.
type ChartPoint struct {
	Date  time.Time
	Value string
}

// ChartUpdateRun records one framework update pass over a chart.
type ChartUpdateRun struct {
	ID            uuid.UUID
	ChartName     string
	Strategy      string
	FromDate      time.Time
	ToDate        time.Time
	PointsWritten int
}

// StatsRepository persists chart_data and chart_updates rows.
type StatsRepository struct {
	client *Client
}

func NewStatsRepository(client *Client) *StatsRepository {
	return &StatsRepository{client: client}
}

// UpsertPoints writes points for a chart, replacing values for dates
// already present.
func (r *StatsRepository) UpsertPoints(ctx context.Context, tx *sql.Tx, chartName string, points []ChartPoint) error {
	for _, p := range points {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chart_data (chart_name, date, value, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (chart_name, date) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = now()`,
			chartName, p.Date, p.Value)
		if err != nil {
			return fmt.Errorf("failed to upsert chart point %s/%s: %w", chartName, p.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// ClearWindow deletes a chart's points in [from, to], for the
// clear-and-replace-window update strategy.
func (r *StatsRepository) ClearWindow(ctx context.Context, tx *sql.Tx, chartName string, from, to time.Time) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM chart_data WHERE chart_name = $1 AND date BETWEEN $2 AND $3`,
		chartName, from, to)
	if err != nil {
		return fmt.Errorf("failed to clear chart window %s: %w", chartName, err)
	}
	return nil
}

// LastPointDate returns the newest stored date for a chart, so the
// batch-update-step strategy can resume from where it left off.
// max() over zero rows yields NULL, reported as a miss.
func (r *StatsRepository) LastPointDate(ctx context.Context, chartName string) (time.Time, bool, error) {
	var date sql.NullTime
	err := r.client.db.QueryRowContext(ctx, `
		SELECT max(date) FROM chart_data WHERE chart_name = $1`, chartName,
	).Scan(&date)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last point date for %s: %w", chartName, err)
	}
	if !date.Valid {
		return time.Time{}, false, nil
	}
	return date.Time, true, nil
}

// RecordUpdate inserts the audit row for one update pass.
func (r *StatsRepository) RecordUpdate(ctx context.Context, tx *sql.Tx, run ChartUpdateRun) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chart_updates (id, chart_name, strategy, from_date, to_date, points_written, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		run.ID, run.ChartName, run.Strategy, run.FromDate, run.ToDate, run.PointsWritten)
	if err != nil {
		return fmt.Errorf("failed to record chart update %s: %w", run.ChartName, err)
	}
	return nil
}

// GetChart returns a page of points for a chart in ascending date
// order, starting strictly after the cursor date.
func (r *StatsRepository) GetChart(ctx context.Context, chartName string, afterDate time.Time, limit int) ([]ChartPoint, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT date, value FROM chart_data
		WHERE chart_name = $1 AND date > $2
		ORDER BY date ASC
		LIMIT $3`, chartName, afterDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart %s: %w", chartName, err)
	}
	defer rows.Close()

	var points []ChartPoint
	for rows.Next() {
		var p ChartPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan chart point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ListChartNames returns every chart with at least one stored point.
func (r *StatsRepository) ListChartNames(ctx context.Context) ([]string, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT DISTINCT chart_name FROM chart_data ORDER BY chart_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chart names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
