package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Coupon is the single discount applied to a quote.
type Coupon struct {
	Code  string           `json:"code"`
	Kind  enums.CouponKind `json:"kind"`
	Value decimal.Decimal  `json:"value"`
}

// Rates are the pricing constants: tax, free shipping threshold and per-method shipping.
type Rates struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Shipping              map[enums.ShippingMethod]decimal.Decimal
}

// Result is a priced cart. Total always equals Subtotal + Tax + ShippingCost.
type Result struct {
	SubtotalBeforeDiscount decimal.Decimal `json:"subtotalBeforeDiscount"`
	Discount               decimal.Decimal `json:"discount"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	Tax                    decimal.Decimal `json:"tax"`
	ShippingCost           decimal.Decimal `json:"shippingCost"`
	Total                  decimal.Decimal `json:"total"`
}

// Rounded returns the result rounded to two places for display.
func (r Result) Rounded() Result {
	return Result{
		SubtotalBeforeDiscount: r.SubtotalBeforeDiscount.Round(2),
		Discount:               r.Discount.Round(2),
		Subtotal:               r.Subtotal.Round(2),
		Tax:                    r.Tax.Round(2),
		ShippingCost:           r.ShippingCost.Round(2),
		Total:                  r.Total.Round(2),
	}
}

// Engine computes quotes from immutable rates. It performs no I/O.
type Engine struct {
	rates Rates
}

// RatesFromConfig reads the pricing constants from checkout config.
func RatesFromConfig(cfg config.CheckoutConfig) Rates {
	return Rates{
		TaxRate:               cfg.Decimal(cfg.TaxRate),
		FreeShippingThreshold: cfg.Decimal(cfg.FreeShippingThreshold),
		Shipping: map[enums.ShippingMethod]decimal.Decimal{
			enums.ShippingMethodStandard: cfg.Decimal(cfg.StandardRate),
			enums.ShippingMethodExpress:  cfg.Decimal(cfg.ExpressRate),
		},
	}
}

// NewEngine copies rates so later mutation of the caller's map has no effect.
func NewEngine(rates Rates) *Engine {
	shipping := make(map[enums.ShippingMethod]decimal.Decimal, len(rates.Shipping))
	for method, cost := range rates.Shipping {
		shipping[method] = cost
	}
	rates.Shipping = shipping
	return &Engine{rates: rates}
}

// WithShippingRates returns an engine whose per-method shipping costs are overridden.
func (e *Engine) WithShippingRates(overrides map[enums.ShippingMethod]decimal.Decimal) *Engine {
	if len(overrides) == 0 {
		return e
	}
	rates := e.rates
	merged := make(map[enums.ShippingMethod]decimal.Decimal, len(rates.Shipping)+len(overrides))
	for method, cost := range rates.Shipping {
		merged[method] = cost
	}
	for method, cost := range overrides {
		if method.IsValid() && !cost.IsNegative() {
			merged[method] = cost
		}
	}
	rates.Shipping = merged
	return &Engine{rates: rates}
}

// Rates exposes a copy of the engine's pricing constants.
func (e *Engine) Rates() Rates {
	return NewEngine(e.rates).rates
}

// Quote prices lines with an optional coupon and a shipping method.
func (e *Engine) Quote(lines types.OrderLines, coupon *Coupon, method enums.ShippingMethod) Result {
	if len(lines) == 0 {
		return zeroResult()
	}

	before := decimal.Zero
	for _, line := range lines {
		before = before.Add(line.LineTotal())
	}

	discount := Discount(before, coupon)
	subtotal := before.Sub(discount)
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}

	tax := subtotal.Mul(e.rates.TaxRate)
	shipping := e.shippingCost(method, subtotal.Add(tax))

	return Result{
		SubtotalBeforeDiscount: before,
		Discount:               discount,
		Subtotal:               subtotal,
		Tax:                    tax,
		ShippingCost:           shipping,
		Total:                  subtotal.Add(tax).Add(shipping),
	}
}

func zeroResult() Result {
	return Result{
		SubtotalBeforeDiscount: decimal.Zero,
		Discount:               decimal.Zero,
		Subtotal:               decimal.Zero,
		Tax:                    decimal.Zero,
		ShippingCost:           decimal.Zero,
		Total:                  decimal.Zero,
	}
}

// Discount is the amount a coupon takes off subtotal; never negative.
func Discount(subtotal decimal.Decimal, coupon *Coupon) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch coupon.Kind {
	case enums.CouponKindPercentage:
		amount = subtotal.Mul(coupon.Value).Div(hundred)
	case enums.CouponKindFlat:
		amount = coupon.Value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func (e *Engine) shippingCost(method enums.ShippingMethod, taxed decimal.Decimal) decimal.Decimal {
	if !method.IsValid() {
		method = enums.ShippingMethodStandard
	}
	if method == enums.ShippingMethodStandard && taxed.GreaterThan(e.rates.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.rates.Shipping[method]
}
