package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderFactRow mirrors the order_facts BigQuery schema. One row is written
// per order lifecycle event.
type OrderFactRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrderID        *string            `bigquery:"order_id"`
	OrderNumber    *string            `bigquery:"order_number"`
	UserID         *string            `bigquery:"user_id"`
	Status         *string            `bigquery:"status"`
	PreviousStatus *string            `bigquery:"previous_status"`
	ShippingMethod *string            `bigquery:"shipping_method"`
	Currency       *string            `bigquery:"currency"`
	TotalCents     *int64             `bigquery:"total_cents"`
	ItemCount      *int64             `bigquery:"item_count"`
	Simulated      bool               `bigquery:"simulated"`
	FailureReason  *string            `bigquery:"failure_reason"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
