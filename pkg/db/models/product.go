package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Product is a catalog entry.
type Product struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string                `gorm:"column:title;not null"`
	Subtitle      *string               `gorm:"column:subtitle"`
	Description   string                `gorm:"column:description;not null;default:''"`
	Ribbon        *string               `gorm:"column:ribbon"`
	Images        pq.StringArray        `gorm:"column:images;type:text[];not null;default:'{}'"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice decimal.Decimal       `gorm:"column:discount_price;type:numeric(12,2);not null;default:0"`
	SKU           *string               `gorm:"column:sku"`
	Weight        *decimal.Decimal      `gorm:"column:weight;type:numeric(10,3)"`
	Options       []types.ProductOption `gorm:"column:options;type:jsonb;serializer:json"`
	DeletedAt     *time.Time            `gorm:"column:deleted_at"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is the discount price when one is set, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.GreaterThan(decimal.Zero) {
		return p.DiscountPrice
	}
	return p.Price
}

// PrimaryImage returns the first image reference, if any.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
