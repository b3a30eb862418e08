package pricing

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func defaultEngine() *Engine {
	return NewEngine(RatesFromConfig(config.CheckoutConfig{
		TaxRate:               "0.12",
		FreeShippingThreshold: "2500",
		StandardRate:          "300",
		ExpressRate:           "1200",
	}))
}

func line(price string, qty int) types.OrderLine {
	return types.OrderLine{ProductID: uuid.New(), UnitPrice: d(price), Price: d(price), Quantity: qty}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestQuoteStandardNoCoupon(t *testing.T) {
	res := defaultEngine().Quote(types.OrderLines{line("500", 2)}, nil, enums.ShippingMethodStandard)

	assertMoney(t, "1000", res.SubtotalBeforeDiscount, "subtotalBeforeDiscount")
	assertMoney(t, "0", res.Discount, "discount")
	assertMoney(t, "1000", res.Subtotal, "subtotal")
	assertMoney(t, "120", res.Tax, "tax")
	assertMoney(t, "300", res.ShippingCost, "shipping")
	assertMoney(t, "1420", res.Total, "total")
}

func TestQuoteFlatCoupon(t *testing.T) {
	coupon := &Coupon{Code: "FLAT200", Kind: enums.CouponKindFlat, Value: d("200")}
	res := defaultEngine().Quote(types.OrderLines{line("500", 2)}, coupon, enums.ShippingMethodStandard)

	assertMoney(t, "200", res.Discount, "discount")
	assertMoney(t, "800", res.Subtotal, "subtotal")
	assertMoney(t, "96", res.Tax, "tax")
	assertMoney(t, "300", res.ShippingCost, "shipping")
	assertMoney(t, "1196", res.Total, "total")
}

func TestQuotePercentageCoupon(t *testing.T) {
	coupon := &Coupon{Code: "TEN", Kind: enums.CouponKindPercentage, Value: d("10")}
	res := defaultEngine().Quote(types.OrderLines{line("500", 2)}, coupon, enums.ShippingMethodStandard)

	assertMoney(t, "100", res.Discount, "discount")
	assertMoney(t, "900", res.Subtotal, "subtotal")
	assertMoney(t, "108", res.Tax, "tax")
	assertMoney(t, "1308", res.Total, "total")
}

func TestQuoteWaivesStandardShippingAboveThreshold(t *testing.T) {
	res := defaultEngine().Quote(types.OrderLines{line("1200", 2)}, nil, enums.ShippingMethodStandard)

	assertMoney(t, "2688", res.Subtotal.Add(res.Tax), "taxed subtotal")
	assertMoney(t, "0", res.ShippingCost, "shipping")
	assertMoney(t, "2688", res.Total, "total")
}

func TestQuoteThresholdIsStrict(t *testing.T) {
	engine := NewEngine(Rates{
		TaxRate:               d("0.25"),
		FreeShippingThreshold: d("2500"),
		Shipping:              map[enums.ShippingMethod]decimal.Decimal{enums.ShippingMethodStandard: d("300")},
	})
	res := engine.Quote(types.OrderLines{line("2000", 1)}, nil, enums.ShippingMethodStandard)
	assertMoney(t, "300", res.ShippingCost, "shipping at exactly the threshold")
}

func TestQuoteExpressNeverWaived(t *testing.T) {
	res := defaultEngine().Quote(types.OrderLines{line("1200", 3)}, nil, enums.ShippingMethodExpress)
	assertMoney(t, "1200", res.ShippingCost, "shipping")
}

func TestQuoteClampsSubtotalAtZero(t *testing.T) {
	coupon := &Coupon{Kind: enums.CouponKindFlat, Value: d("5000")}
	res := defaultEngine().Quote(types.OrderLines{line("500", 2)}, coupon, enums.ShippingMethodStandard)

	assertMoney(t, "0", res.Subtotal, "subtotal")
	assertMoney(t, "0", res.Tax, "tax")
	assertMoney(t, "300", res.ShippingCost, "shipping")
	assertMoney(t, "300", res.Total, "total")
}

func TestQuoteEmptyCartIsZero(t *testing.T) {
	percent := defaultEngine().Quote(types.OrderLines{}, &Coupon{Kind: enums.CouponKindPercentage, Value: d("10")}, enums.ShippingMethodStandard)
	assertMoney(t, "0", percent.Discount, "percentage discount")
	assertMoney(t, "0", percent.Total, "percentage total")

	res := defaultEngine().Quote(nil, &Coupon{Kind: enums.CouponKindFlat, Value: d("50")}, enums.ShippingMethodExpress)
	for name, v := range map[string]decimal.Decimal{
		"before": res.SubtotalBeforeDiscount, "discount": res.Discount, "subtotal": res.Subtotal,
		"tax": res.Tax, "shipping": res.ShippingCost, "total": res.Total,
	} {
		assertMoney(t, "0", v, name)
	}
}

func TestQuoteUsesDiscountUnitPrice(t *testing.T) {
	l := types.OrderLine{UnitPrice: d("500"), DiscountUnitPrice: d("450"), Quantity: 2}
	res := defaultEngine().Quote(types.OrderLines{l}, nil, enums.ShippingMethodStandard)
	assertMoney(t, "900", res.SubtotalBeforeDiscount, "subtotalBeforeDiscount")
}

func TestWithShippingRatesOverrides(t *testing.T) {
	base := defaultEngine()
	overridden := base.WithShippingRates(map[enums.ShippingMethod]decimal.Decimal{
		enums.ShippingMethodStandard:  d("150"),
		enums.ShippingMethod("drone"): d("1"),
	})

	res := overridden.Quote(types.OrderLines{line("100", 1)}, nil, enums.ShippingMethodStandard)
	assertMoney(t, "150", res.ShippingCost, "overridden shipping")

	res = base.Quote(types.OrderLines{line("100", 1)}, nil, enums.ShippingMethodStandard)
	assertMoney(t, "300", res.ShippingCost, "base engine untouched")

	_, ok := overridden.Rates().Shipping[enums.ShippingMethod("drone")]
	require.False(t, ok)
}

func TestQuoteInvariantsHoldForRandomCarts(t *testing.T) {
	engine := defaultEngine()
	rng := rand.New(rand.NewSource(42))
	methods := []enums.ShippingMethod{enums.ShippingMethodStandard, enums.ShippingMethodExpress}

	for i := 0; i < 500; i++ {
		var lines types.OrderLines
		for n := rng.Intn(5); n > 0; n-- {
			price := decimal.New(int64(rng.Intn(300000)), -2)
			lines = append(lines, types.OrderLine{UnitPrice: price, Quantity: 1 + rng.Intn(4)})
		}
		var coupon *Coupon
		switch rng.Intn(3) {
		case 1:
			coupon = &Coupon{Kind: enums.CouponKindFlat, Value: decimal.New(int64(rng.Intn(600000)), -2)}
		case 2:
			coupon = &Coupon{Kind: enums.CouponKindPercentage, Value: decimal.NewFromInt(int64(rng.Intn(120)))}
		}
		method := methods[rng.Intn(len(methods))]

		res := engine.Quote(lines, coupon, method)
		require.False(t, res.Subtotal.IsNegative(), "subtotal must never be negative")
		require.True(t, res.Total.Equal(res.Subtotal.Add(res.Tax).Add(res.ShippingCost)), "total identity")
		if method == enums.ShippingMethodStandard && res.Subtotal.Add(res.Tax).GreaterThan(d("2500")) {
			require.True(t, res.ShippingCost.IsZero(), "standard shipping waived above threshold")
		}
	}
}

func TestRounded(t *testing.T) {
	res := Result{Tax: d("11.995"), Total: d("111.994")}.Rounded()
	assertMoney(t, "12", res.Tax, "tax")
	assertMoney(t, "111.99", res.Total, "total")
}
