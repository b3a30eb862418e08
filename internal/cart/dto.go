package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// MaxLineQuantity caps the quantity of any single line.
const MaxLineQuantity = 99

// LineDTO is one cart line as shown to the customer.
type LineDTO struct {
	ID                uuid.UUID              `json:"id"`
	ProductID         uuid.UUID              `json:"productId"`
	Title             string                 `json:"title"`
	UnitPrice         decimal.Decimal        `json:"unitPrice"`
	DiscountUnitPrice decimal.Decimal        `json:"discountUnitPrice"`
	Quantity          int                    `json:"quantity"`
	Options           types.OptionSelections `json:"options"`
	Image             string                 `json:"image"`
	LineTotal         decimal.Decimal        `json:"lineTotal"`
}

// CartDTO is the customer's whole cart.
type CartDTO struct {
	Lines     []LineDTO       `json:"lines"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AddItemInput adds a product with its chosen options.
type AddItemInput struct {
	ProductID uuid.UUID              `json:"productId" validate:"required"`
	Quantity  int                    `json:"quantity" validate:"required,min=1,max=99"`
	Options   types.OptionSelections `json:"options" validate:"dive"`
}

// SetQuantityInput replaces a line's quantity.
type SetQuantityInput struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// QuoteInput selects the coupon and shipping method to price with.
type QuoteInput struct {
	DiscountCode   string               `json:"discountCode"`
	ShippingMethod enums.ShippingMethod `json:"shippingMethod"`
}

// QuoteDTO is a priced cart.
type QuoteDTO struct {
	Lines          []LineDTO            `json:"lines"`
	ShippingMethod enums.ShippingMethod `json:"shippingMethod"`
	Coupon         *pricing.Coupon      `json:"coupon,omitempty"`
	Pricing        pricing.Result       `json:"pricing"`
}

func toLineDTO(item models.CartItem) LineDTO {
	line := toOrderLine(item)
	return LineDTO{
		ID:                item.ID,
		ProductID:         item.ProductID,
		Title:             item.Title,
		UnitPrice:         item.UnitPrice,
		DiscountUnitPrice: item.DiscountUnitPrice,
		Quantity:          item.Quantity,
		Options:           item.Options.Clone(),
		Image:             item.Image,
		LineTotal:         line.LineTotal(),
	}
}

func toCartDTO(items []models.CartItem) *CartDTO {
	out := &CartDTO{Lines: make([]LineDTO, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		line := toLineDTO(item)
		out.Lines = append(out.Lines, line)
		out.ItemCount += item.Quantity
		out.Subtotal = out.Subtotal.Add(line.LineTotal)
	}
	return out
}

func toOrderLine(item models.CartItem) types.OrderLine {
	line := types.OrderLine{
		ProductID:         item.ProductID,
		Title:             item.Title,
		UnitPrice:         item.UnitPrice,
		DiscountUnitPrice: item.DiscountUnitPrice,
		Quantity:          item.Quantity,
		Options:           item.Options.Clone(),
		Image:             item.Image,
	}
	line.Price = line.EffectiveUnitPrice()
	return line
}

func sameOptions(a, b types.OptionSelections) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
