package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ProductDTO is the catalog shape returned to clients.
type ProductDTO struct {
	ID             uuid.UUID             `json:"id"`
	Title          string                `json:"title"`
	Subtitle       *string               `json:"subtitle,omitempty"`
	Description    string                `json:"description"`
	Ribbon         *string               `json:"ribbon,omitempty"`
	Images         []string              `json:"images"`
	Price          decimal.Decimal       `json:"price"`
	DiscountPrice  decimal.Decimal       `json:"discountPrice"`
	EffectivePrice decimal.Decimal       `json:"effectivePrice"`
	SKU            *string               `json:"sku,omitempty"`
	Weight         *decimal.Decimal      `json:"weight,omitempty"`
	Options        []types.ProductOption `json:"options"`
	Deleted        bool                  `json:"deleted,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Title         string                `json:"title" validate:"required,max=200"`
	Subtitle      *string               `json:"subtitle" validate:"omitempty,max=200"`
	Description   string                `json:"description"`
	Ribbon        *string               `json:"ribbon" validate:"omitempty,max=40"`
	Images        []string              `json:"images" validate:"dive,required"`
	Price         decimal.Decimal       `json:"price"`
	DiscountPrice decimal.Decimal       `json:"discountPrice"`
	SKU           *string               `json:"sku" validate:"omitempty,max=64"`
	Weight        *decimal.Decimal      `json:"weight"`
	Options       []types.ProductOption `json:"options" validate:"dive"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Title         *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Subtitle      *string                `json:"subtitle" validate:"omitempty,max=200"`
	Description   *string                `json:"description"`
	Ribbon        *string                `json:"ribbon" validate:"omitempty,max=40"`
	Images        *[]string              `json:"images"`
	Price         *decimal.Decimal       `json:"price"`
	DiscountPrice *decimal.Decimal       `json:"discountPrice"`
	SKU           *string                `json:"sku" validate:"omitempty,max=64"`
	Weight        *decimal.Decimal       `json:"weight"`
	Options       *[]types.ProductOption `json:"options"`
}

// ListProductsInput captures sort and cursor inputs for the browse endpoint.
type ListProductsInput struct {
	Sort       enums.ProductSort
	Pagination pagination.Params
}

// ProductListResult is one page of catalog entries.
type ProductListResult = pagination.Page[ProductDTO]

// FromModel maps a persisted product to its transport shape.
func FromModel(p *models.Product) ProductDTO {
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	options := p.Options
	if options == nil {
		options = []types.ProductOption{}
	}
	return ProductDTO{
		ID:             p.ID,
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		Description:    p.Description,
		Ribbon:         p.Ribbon,
		Images:         images,
		Price:          p.Price,
		DiscountPrice:  p.DiscountPrice,
		EffectivePrice: p.EffectivePrice(),
		SKU:            p.SKU,
		Weight:         p.Weight,
		Options:        options,
		Deleted:        p.DeletedAt != nil,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (in CreateProductInput) toModel() *models.Product {
	return &models.Product{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(in.Title),
		Subtitle:      trimPtr(in.Subtitle),
		Description:   in.Description,
		Ribbon:        trimPtr(in.Ribbon),
		Images:        pq.StringArray(append([]string{}, in.Images...)),
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		SKU:           trimPtr(in.SKU),
		Weight:        in.Weight,
		Options:       in.Options,
	}
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Title != nil {
		product.Title = strings.TrimSpace(*input.Title)
	}
	if input.Subtitle != nil {
		product.Subtitle = trimPtr(input.Subtitle)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Ribbon != nil {
		product.Ribbon = trimPtr(input.Ribbon)
	}
	if input.Images != nil {
		product.Images = pq.StringArray(append([]string{}, (*input.Images)...))
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.DiscountPrice != nil {
		product.DiscountPrice = *input.DiscountPrice
	}
	if input.SKU != nil {
		product.SKU = trimPtr(input.SKU)
	}
	if input.Weight != nil {
		product.Weight = input.Weight
	}
	if input.Options != nil {
		product.Options = append([]types.ProductOption{}, (*input.Options)...)
	}
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
