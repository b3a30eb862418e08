package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is a cart line frozen at the moment payment was confirmed.
type OrderLine struct {
	ProductID         uuid.UUID        `json:"productId"`
	Title             string           `json:"title"`
	Price             decimal.Decimal  `json:"price"`
	UnitPrice         decimal.Decimal  `json:"unitPrice"`
	DiscountUnitPrice decimal.Decimal  `json:"discountUnitPrice"`
	Quantity          int              `json:"quantity"`
	Options           OptionSelections `json:"options"`
	Image             string           `json:"image"`
}

// EffectiveUnitPrice is the discount unit price when set, otherwise the unit price.
func (l OrderLine) EffectiveUnitPrice() decimal.Decimal {
	if l.DiscountUnitPrice.IsPositive() {
		return l.DiscountUnitPrice
	}
	if !l.UnitPrice.IsZero() {
		return l.UnitPrice
	}
	return l.Price
}

// LineTotal is the effective unit price multiplied by quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderLines is an ordered line snapshot.
type OrderLines []OrderLine

// Clone deep-copies the lines so later cart edits never leak into a snapshot.
func (l OrderLines) Clone() OrderLines {
	if l == nil {
		return nil
	}
	out := make(OrderLines, len(l))
	for i, line := range l {
		line.Options = line.Options.Clone()
		out[i] = line
	}
	return out
}

// PaymentResult embeds the gateway confirmation in an order record.
type PaymentResult struct {
	Provider       string              `json:"provider"`
	PaymentOrderID string              `json:"paymentOrderId"`
	PaymentID      string              `json:"paymentId"`
	Amount         decimal.Decimal     `json:"amount"`
	AmountMinor    int64               `json:"amountMinor"`
	Currency       enums.Currency      `json:"currency"`
	Status         enums.PaymentStatus `json:"status"`
	Simulated      bool                `json:"simulated,omitempty"`
	ConfirmedAt    time.Time           `json:"confirmedAt"`
}

// PaymentAttempt records why a payment never completed.
type PaymentAttempt struct {
	PaymentOrderID string              `json:"orderId"`
	Status         enums.PaymentStatus `json:"status"`
	Error          string              `json:"error"`
}
