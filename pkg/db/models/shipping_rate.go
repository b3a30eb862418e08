package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ShippingRate overrides the configured cost of a shipping method.
type ShippingRate struct {
	Method    enums.ShippingMethod `gorm:"column:method;primaryKey"`
	Cost      decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
