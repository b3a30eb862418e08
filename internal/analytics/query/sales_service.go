package query

import (
	"context"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	maxReportWindowDays = 366

	ordersSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type = 'order.placed'
  AND simulated = FALSE
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	revenueSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(COALESCE(total_cents, 0)) AS value
FROM %s
WHERE event_type = 'order.placed'
  AND simulated = FALSE
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	failedPaymentsSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(*) AS value
FROM %s
WHERE event_type = 'order.payment_failed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	shippingMethodsSQL = `
SELECT shipping_method AS label, COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type = 'order.placed'
  AND simulated = FALSE
  AND shipping_method IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
GROUP BY shipping_method
ORDER BY value DESC
`

	aovSQL = `
SELECT
  SAFE_DIVIDE(SUM(COALESCE(total_cents, 0)), NULLIF(COUNT(DISTINCT order_id), 0)) AS value,
  COUNT(DISTINCT user_id) AS customers
FROM %s
WHERE event_type = 'order.placed'
  AND simulated = FALSE
  AND occurred_at BETWEEN @start AND @end
`
)

// SalesService reads the admin sales summary from the order_facts table.
type SalesService interface {
	Summary(ctx context.Context, req types.SalesQueryRequest) (*types.SalesSummary, error)
}

type salesService struct {
	client   *bigquery.Client
	tableRef string
}

// NewSalesService builds a service backed by BigQuery.
func NewSalesService(client *bigquery.Client) (SalesService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	tableRef := client.OrdersTable()
	if tableRef == "" {
		return nil, fmt.Errorf("orders table is required")
	}
	return &salesService{client: client, tableRef: tableRef}, nil
}

func (s *salesService) Summary(ctx context.Context, req types.SalesQueryRequest) (*types.SalesSummary, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}

	orders, err := s.querySeries(ctx, fmt.Sprintf(ordersSeriesSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	revenue, err := s.querySeries(ctx, fmt.Sprintf(revenueSeriesSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	failed, err := s.querySeries(ctx, fmt.Sprintf(failedPaymentsSeriesSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	methods, err := s.queryLabels(ctx, fmt.Sprintf(shippingMethodsSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	aov, customers, err := s.queryAOV(ctx, fmt.Sprintf(aovSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	return &types.SalesSummary{
		OrdersSeries:         orders,
		RevenueSeries:        revenue,
		FailedPaymentsSeries: failed,
		ShippingMethods:      methods,
		AOVCents:             aov,
		Customers:            customers,
	}, nil
}

// ValidateRequest checks the report window.
func ValidateRequest(req types.SalesQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	if req.End.Sub(req.Start).Hours() > maxReportWindowDays*24 {
		return pkgerrors.New(pkgerrors.CodeValidation, "report window must be at most one year")
	}
	return nil
}

func (s *salesService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	points := []types.TimeSeriesPoint{}
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *salesService) queryLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}

	result := []types.LabelValue{}
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *salesService) queryAOV(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (float64, int64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, 0, fmt.Errorf("query aov: %w", err)
	}
	var row struct {
		Value     cloudbigquery.NullFloat64 `bigquery:"value"`
		Customers int64                     `bigquery:"customers"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading aov row: %w", err)
	}
	if !row.Value.Valid {
		return 0, row.Customers, nil
	}
	return row.Value.Float64, row.Customers, nil
}
