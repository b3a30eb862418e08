package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the committed record of a paid checkout. CartItems is written once
// and never updated.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string               `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	OrderDate           time.Time            `gorm:"column:order_date;not null"`
	UserID              uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:orders_user_id_idx"`
	CustomerInfo        types.CustomerInfo   `gorm:"column:customer_info;type:jsonb;serializer:json;not null"`
	CartItems           types.OrderLines     `gorm:"column:cart_items;type:jsonb;serializer:json;not null"`
	TotalBeforeDiscount decimal.Decimal      `gorm:"column:total_before_discount;type:numeric(12,2);not null"`
	DiscountCode        *string              `gorm:"column:discount_code"`
	DiscountValue       decimal.Decimal      `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Subtotal            decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax                 decimal.Decimal      `gorm:"column:tax;type:numeric(12,2);not null"`
	ShippingMethod      enums.ShippingMethod `gorm:"column:shipping_method;not null"`
	ShippingCost        decimal.Decimal      `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total               decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	Payment             types.PaymentResult  `gorm:"column:payment;type:jsonb;serializer:json;not null"`
	Status              enums.OrderStatus    `gorm:"column:status;not null;default:'processing'"`
	InvoicePath         *string              `gorm:"column:invoice_path"`
	ConfirmationSentAt  *time.Time           `gorm:"column:confirmation_sent_at"`
	SentFrom            string               `gorm:"column:sent_from;not null"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// FailedOrder audits a checkout attempt whose payment never completed. It
// shares the order number reserved for the attempt.
type FailedOrder struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string               `gorm:"column:order_number;not null;uniqueIndex:failed_orders_order_number_key"`
	OrderDate           time.Time            `gorm:"column:order_date;not null"`
	UserID              uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	CustomerInfo        types.CustomerInfo   `gorm:"column:customer_info;type:jsonb;serializer:json;not null"`
	CartItems           types.OrderLines     `gorm:"column:cart_items;type:jsonb;serializer:json;not null"`
	TotalBeforeDiscount decimal.Decimal      `gorm:"column:total_before_discount;type:numeric(12,2);not null"`
	DiscountCode        *string              `gorm:"column:discount_code"`
	DiscountValue       decimal.Decimal      `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Subtotal            decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax                 decimal.Decimal      `gorm:"column:tax;type:numeric(12,2);not null"`
	ShippingMethod      enums.ShippingMethod `gorm:"column:shipping_method;not null"`
	ShippingCost        decimal.Decimal      `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total               decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentAttempt      types.PaymentAttempt `gorm:"column:payment_attempt;type:jsonb;serializer:json;not null"`
	Status              enums.OrderStatus    `gorm:"column:status;not null;default:'failed'"`
	SentFrom            string               `gorm:"column:sent_from;not null"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// OrderCounter is the single-row sequence backing order numbers.
type OrderCounter struct {
	Name            string    `gorm:"column:name;primaryKey"`
	LastOrderNumber int64     `gorm:"column:last_order_number;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the counter to the shared counters table.
func (OrderCounter) TableName() string {
	return "counters"
}
