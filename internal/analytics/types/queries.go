package types

import "time"

// SalesQueryRequest bounds the sales report window.
type SalesQueryRequest struct {
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as a shipping method.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SalesSummary is the admin sales dashboard payload. Money values are in cents.
type SalesSummary struct {
	OrdersSeries         []TimeSeriesPoint `json:"orders"`
	RevenueSeries        []TimeSeriesPoint `json:"revenue_cents"`
	FailedPaymentsSeries []TimeSeriesPoint `json:"failed_payments"`
	ShippingMethods      []LabelValue      `json:"shipping_methods"`
	AOVCents             float64           `json:"aov_cents"`
	Customers            int64             `json:"customers"`
}
