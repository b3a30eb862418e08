package analytics

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

type testAnalyticsService struct {
	last     types.SalesQueryRequest
	calls    int
	response *types.SalesSummary
	err      error
}

func (s *testAnalyticsService) Summary(ctx context.Context, req types.SalesQueryRequest) (*types.SalesSummary, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	if s.response == nil {
		s.response = &types.SalesSummary{}
	}
	return s.response, nil
}

func (s *testAnalyticsService) period() time.Duration {
	return s.last.End.Sub(s.last.Start)
}
