package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a redeemable discount code.
type Coupon struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string           `gorm:"column:code;not null;uniqueIndex:coupons_code_key"`
	Kind          enums.CouponKind `gorm:"column:kind;not null"`
	Value         decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderValue decimal.Decimal  `gorm:"column:min_order_value;type:numeric(12,2);not null;default:0"`
	ValidFrom     *time.Time       `gorm:"column:valid_from"`
	ExpiresAt     *time.Time       `gorm:"column:expires_at"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
