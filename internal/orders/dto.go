package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Viewer identifies who is reading or changing an order.
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// OrderSummary is a compact row for the order history list.
type OrderSummary struct {
	OrderNumber      string               `json:"orderNumber"`
	OrderDate        time.Time            `json:"orderDate"`
	Status           enums.OrderStatus    `json:"status"`
	ShippingMethod   enums.ShippingMethod `json:"shippingMethod"`
	Total            decimal.Decimal      `json:"total"`
	ItemCount        int                  `json:"itemCount"`
	Title            string               `json:"title"`
	Image            string               `json:"image,omitempty"`
	InvoiceAvailable bool                 `json:"invoiceAvailable"`
}

// OrderList is one page of the order history.
type OrderList = pagination.Page[OrderSummary]

// InvoiceLink is a time-limited download URL for an order invoice.
type InvoiceLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UpdateStatusRequest is the admin payload for moving an order forward.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ToRecord maps the stored order onto the wire record.
func ToRecord(order models.Order) types.OrderRecord {
	record := types.OrderRecord{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		OrderDate:           order.OrderDate,
		UserID:              order.UserID,
		CustomerInfo:        order.CustomerInfo,
		CartItems:           order.CartItems.Clone(),
		TotalBeforeDiscount: order.TotalBeforeDiscount,
		DiscountValue:       order.DiscountValue,
		Subtotal:            order.Subtotal,
		Tax:                 order.Tax,
		ShippingMethod:      order.ShippingMethod,
		ShippingCost:        order.ShippingCost,
		Total:               order.Total,
		Payment:             order.Payment,
		Status:              order.Status,
		SentFrom:            order.SentFrom,
	}
	if order.DiscountCode != nil {
		record.DiscountCode = *order.DiscountCode
	}
	if order.InvoicePath != nil {
		record.InvoiceRef = *order.InvoicePath
	}
	return record
}

func toSummary(order models.Order) OrderSummary {
	summary := OrderSummary{
		OrderNumber:      order.OrderNumber,
		OrderDate:        order.OrderDate,
		Status:           order.Status,
		ShippingMethod:   order.ShippingMethod,
		Total:            order.Total,
		InvoiceAvailable: order.InvoicePath != nil && *order.InvoicePath != "",
	}
	for _, line := range order.CartItems {
		summary.ItemCount += line.Quantity
	}
	if len(order.CartItems) > 0 {
		summary.Title = order.CartItems[0].Title
		summary.Image = order.CartItems[0].Image
	}
	return summary
}

// NormalizeNumber accepts order numbers with or without the leading '#'.
func NormalizeNumber(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "#") {
		trimmed = "#" + trimmed
	}
	return trimmed
}
