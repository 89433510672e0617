// Copyright 2025 Blockscout

package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/blockscout/indexing-core/internal/apiserver"
	"github.com/blockscout/indexing-core/internal/database"
)

// QueryService serves stored chart series, implementing
// apiserver.Stats. Page tokens are the last returned date in
// YYYY-MM-DD form; an empty token starts from the beginning.
type QueryService struct {
	repo *database.StatsRepository
}

var _ apiserver.Stats = (*QueryService)(nil)

func NewQueryService(client *database.Client) *QueryService {
	return &QueryService{repo: database.NewStatsRepository(client)}
}

const dateTokenLayout = "2006-01-02"

// GetChart implements apiserver.Stats.
func (s *QueryService) GetChart(ctx context.Context, chartName string, page apiserver.Page) ([]apiserver.ChartPoint, apiserver.PageResult, error) {
	after := time.Time{}
	if page.PageToken != "" {
		parsed, err := time.Parse(dateTokenLayout, page.PageToken)
		if err != nil {
			return nil, apiserver.PageResult{}, fmt.Errorf("invalid page token %q: %w", page.PageToken, err)
		}
		after = parsed
	}

	limit := page.Clamp()
	points, err := s.repo.GetChart(ctx, chartName, after, limit)
	if err != nil {
		return nil, apiserver.PageResult{}, err
	}

	out := make([]apiserver.ChartPoint, 0, len(points))
	for _, p := range points {
		out = append(out, apiserver.ChartPoint{Timestamp: p.Date.Unix(), Value: p.Value})
	}

	var result apiserver.PageResult
	if len(points) == limit {
		result.NextPageToken = points[len(points)-1].Date.Format(dateTokenLayout)
	}
	return out, result, nil
}

// ListChartNames implements apiserver.Stats.
func (s *QueryService) ListChartNames(ctx context.Context) ([]string, error) {
	return s.repo.ListChartNames(ctx)
}
