package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderPlacedEvent is emitted in the same transaction that commits an order.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID            `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	UserID      uuid.UUID            `json:"user_id"`
	Total       decimal.Decimal      `json:"total"`
	Currency    enums.Currency       `json:"currency"`
	Shipping    enums.ShippingMethod `json:"shipping_method"`
	ItemCount   int                  `json:"item_count"`
	Simulated   bool                 `json:"simulated,omitempty"`
	PlacedAt    time.Time            `json:"placed_at"`
}

// OrderPaymentFailedEvent records an abandoned or rejected payment.
type OrderPaymentFailedEvent struct {
	FailedOrderID  uuid.UUID       `json:"failed_order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         uuid.UUID       `json:"user_id"`
	PaymentOrderID string          `json:"payment_order_id"`
	Total          decimal.Decimal `json:"total"`
	Reason         string          `json:"reason"`
	FailedAt       time.Time       `json:"failed_at"`
}

// OrderStatusChangedEvent is emitted when an admin moves an order forward.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// ContactSubmittedEvent asks the worker to send contact form emails.
type ContactSubmittedEvent struct {
	ContactQueryID uuid.UUID `json:"contact_query_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Message        string    `json:"message"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
