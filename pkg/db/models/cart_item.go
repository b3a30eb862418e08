package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CartItem is one line of a user's server-side cart.
type CartItem struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:cart_items_user_id_idx"`
	ProductID         uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	Title             string                 `gorm:"column:title;not null"`
	UnitPrice         decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountUnitPrice decimal.Decimal        `gorm:"column:discount_unit_price;type:numeric(12,2);not null;default:0"`
	Quantity          int                    `gorm:"column:quantity;not null"`
	Options           types.OptionSelections `gorm:"column:options;type:jsonb;not null;default:'[]'"`
	Image             string                 `gorm:"column:image;not null;default:''"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
