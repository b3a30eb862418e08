package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/query"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
)

const defaultReportWindow = 30 * 24 * time.Hour

// Service provides the admin sales report based on order facts.
type Service interface {
	// Summary returns sales KPIs for the window. A zero window means the last 30 days.
	Summary(ctx context.Context, req types.SalesQueryRequest) (*types.SalesSummary, error)
}

type service struct {
	sales query.SalesService
	now   func() time.Time
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	sales, err := query.NewSalesService(client)
	if err != nil {
		return nil, err
	}

	return &service{sales: sales, now: time.Now}, nil
}

func (s *service) Summary(ctx context.Context, req types.SalesQueryRequest) (*types.SalesSummary, error) {
	if req.End.IsZero() && req.Start.IsZero() {
		req.End = s.now().UTC()
		req.Start = req.End.Add(-defaultReportWindow)
	}
	return s.sales.Summary(ctx, req)
}
