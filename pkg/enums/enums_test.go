package enums

import "testing"

func TestParseShippingMethod(t *testing.T) {
	cases := map[string]ShippingMethod{
		"":          ShippingMethodStandard,
		"standard":  ShippingMethodStandard,
		" Express ": ShippingMethodExpress,
	}
	for input, want := range cases {
		got, err := ParseShippingMethod(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", input, got, want)
		}
	}
	if _, err := ParseShippingMethod("overnight"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestParsePaymentStatusRejectsUnknown(t *testing.T) {
	if _, err := ParsePaymentStatus("captured"); err == nil {
		t.Fatal("expected error")
	}
	got, err := ParsePaymentStatus("success")
	if err != nil || got != PaymentStatusSuccess {
		t.Fatalf("got %s err %v", got, err)
	}
}

func TestParseCouponKindIgnoresCase(t *testing.T) {
	got, err := ParseCouponKind("percentage")
	if err != nil || got != CouponKindPercentage {
		t.Fatalf("got %s err %v", got, err)
	}
	if _, err := ParseCouponKind("bogo"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckoutStateTransitions(t *testing.T) {
	allowed := []struct{ from, to CheckoutState }{
		{CheckoutStateDetailsEntry, CheckoutStateReview},
		{CheckoutStateReview, CheckoutStateDetailsEntry},
		{CheckoutStateReview, CheckoutStateAwaitingPayment},
		{CheckoutStateAwaitingPayment, CheckoutStateReview},
		{CheckoutStateAwaitingPayment, CheckoutStateOrderPersisted},
		{CheckoutStateAwaitingPayment, CheckoutStatePaymentFailed},
		{CheckoutStateOrderPersisted, CheckoutStateInvoiced},
		{CheckoutStateOrderPersisted, CheckoutStateNotified},
		{CheckoutStateInvoiced, CheckoutStateNotified},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to CheckoutState }{
		{CheckoutStateDetailsEntry, CheckoutStateAwaitingPayment},
		{CheckoutStatePaymentFailed, CheckoutStateOrderPersisted},
		{CheckoutStateNotified, CheckoutStateReview},
		{CheckoutStateOrderPersisted, CheckoutStatePaymentFailed},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}

	if !CheckoutStateNotified.IsTerminal() || !CheckoutStatePaymentFailed.IsTerminal() {
		t.Fatal("expected terminal states")
	}
	if CheckoutStateInvoiced.IsTerminal() {
		t.Fatal("invoiced is not terminal")
	}
	if !CheckoutStateInvoiced.HasOrder() || CheckoutStateAwaitingPayment.HasOrder() {
		t.Fatal("unexpected HasOrder result")
	}
}

func TestParseCurrencyDefaultsToINR(t *testing.T) {
	got, err := ParseCurrency("")
	if err != nil || got != CurrencyINR {
		t.Fatalf("got %s err %v", got, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected error")
	}
}
