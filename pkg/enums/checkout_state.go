package enums

import "fmt"

// CheckoutState is the position of a checkout attempt in the placement flow.
type CheckoutState string

const (
	CheckoutStateDetailsEntry    CheckoutState = "DETAILS_ENTRY"
	CheckoutStateReview          CheckoutState = "REVIEW"
	CheckoutStateAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
	CheckoutStateOrderPersisted  CheckoutState = "ORDER_PERSISTED"
	CheckoutStateInvoiced        CheckoutState = "INVOICED"
	CheckoutStateNotified        CheckoutState = "NOTIFIED"
	CheckoutStatePaymentFailed   CheckoutState = "PAYMENT_FAILED"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateDetailsEntry,
	CheckoutStateReview,
	CheckoutStateAwaitingPayment,
	CheckoutStateOrderPersisted,
	CheckoutStateInvoiced,
	CheckoutStateNotified,
	CheckoutStatePaymentFailed,
}

// checkoutTransitions lists the allowed successor states. REVIEW loops back to
// DETAILS_ENTRY when the customer edits details, AWAITING_PAYMENT falls back to
// REVIEW when payment-order creation fails, and ORDER_PERSISTED may skip
// INVOICED when invoicing fails.
var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateDetailsEntry:    {CheckoutStateReview},
	CheckoutStateReview:          {CheckoutStateDetailsEntry, CheckoutStateReview, CheckoutStateAwaitingPayment},
	CheckoutStateAwaitingPayment: {CheckoutStateReview, CheckoutStateOrderPersisted, CheckoutStatePaymentFailed},
	CheckoutStateOrderPersisted:  {CheckoutStateInvoiced, CheckoutStateNotified},
	CheckoutStateInvoiced:        {CheckoutStateNotified},
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateNotified || s == CheckoutStatePaymentFailed
}

// HasOrder reports whether the attempt has passed the order commit point.
func (s CheckoutState) HasOrder() bool {
	switch s {
	case CheckoutStateOrderPersisted, CheckoutStateInvoiced, CheckoutStateNotified:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, candidate := range checkoutTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
