package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CheckoutAttempt tracks one pass through the placement state machine.
type CheckoutAttempt struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:checkout_attempts_user_id_idx"`
	State               enums.CheckoutState  `gorm:"column:state;not null"`
	Lines               types.OrderLines     `gorm:"column:lines;type:jsonb;serializer:json;not null"`
	CouponCode          *string              `gorm:"column:coupon_code"`
	CouponKind          *enums.CouponKind    `gorm:"column:coupon_kind"`
	CouponValue         *decimal.Decimal     `gorm:"column:coupon_value;type:numeric(12,2)"`
	ShippingMethod      enums.ShippingMethod `gorm:"column:shipping_method;not null"`
	TotalBeforeDiscount decimal.Decimal      `gorm:"column:total_before_discount;type:numeric(12,2);not null"`
	DiscountValue       decimal.Decimal      `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Subtotal            decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax                 decimal.Decimal      `gorm:"column:tax;type:numeric(12,2);not null"`
	ShippingCost        decimal.Decimal      `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total               decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	CustomerInfo        *types.CustomerInfo  `gorm:"column:customer_info;type:jsonb;serializer:json"`
	ShippingAddressID   *uuid.UUID           `gorm:"column:shipping_address_id;type:uuid"`
	TermsAccepted       bool                 `gorm:"column:terms_accepted;not null;default:false"`
	OrderNumber         *string              `gorm:"column:order_number"`
	PaymentOrderID      *string              `gorm:"column:payment_order_id"`
	PaymentAmountMinor  *int64               `gorm:"column:payment_amount_minor"`
	Currency            enums.Currency       `gorm:"column:currency;not null"`
	Receipt             *string              `gorm:"column:receipt"`
	PaymentID           *string              `gorm:"column:payment_id"`
	LastError           *string              `gorm:"column:last_error"`
	GatewayCapturedAt   *time.Time           `gorm:"column:gateway_captured_at"`
	ExpiresAt           time.Time            `gorm:"column:expires_at;not null;index:checkout_attempts_expires_at_idx"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
