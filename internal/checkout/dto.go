package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// StartRequest opens an attempt over the caller's current cart.
type StartRequest struct {
	DiscountCode   string `json:"discountCode" validate:"omitempty,max=64"`
	ShippingMethod string `json:"shippingMethod" validate:"omitempty,oneof=standard express"`
}

// DetailsRequest carries the contact block entered before review.
type DetailsRequest struct {
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	ShippingAddressID uuid.UUID `json:"shippingAddressId"`
	TermsAccepted     bool      `json:"termsAccepted"`
	Notes             string    `json:"notes" validate:"omitempty,max=1000"`
}

// ConfirmRequest is what the client reports once the gateway checkout completes.
type ConfirmRequest struct {
	PaymentOrderID string `json:"paymentOrderId" validate:"required"`
	PaymentID      string `json:"paymentId"`
}

// AbandonRequest records why the customer never completed payment.
type AbandonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AttemptView is the attempt as shown to the checkout UI.
type AttemptView struct {
	ID             uuid.UUID            `json:"id"`
	State          enums.CheckoutState  `json:"state"`
	Lines          types.OrderLines     `json:"lines"`
	ShippingMethod enums.ShippingMethod `json:"shippingMethod"`
	Coupon         *pricing.Coupon      `json:"coupon,omitempty"`
	Pricing        pricing.Result       `json:"pricing"`
	Currency       enums.Currency       `json:"currency"`
	CustomerInfo   *types.CustomerInfo  `json:"customerInfo,omitempty"`
	OrderNumber    *string              `json:"orderNumber,omitempty"`
	PaymentOrderID *string              `json:"paymentOrderId,omitempty"`
	LastError      *string              `json:"lastError,omitempty"`
	ExpiresAt      time.Time            `json:"expiresAt"`
}

// PaymentInitiation is returned once a payment order is open at the gateway.
type PaymentInitiation struct {
	AttemptID      uuid.UUID           `json:"attemptId"`
	State          enums.CheckoutState `json:"state"`
	OrderNumber    string              `json:"orderNumber"`
	PaymentOrderID string              `json:"paymentOrderId"`
	Amount         int64               `json:"amount"`
	Currency       enums.Currency      `json:"currency"`
	Receipt        string              `json:"receipt"`
	ClientSecret   string              `json:"clientSecret,omitempty"`
}

// Placement is the outcome of a confirmed payment.
type Placement struct {
	AttemptID      uuid.UUID           `json:"attemptId"`
	State          enums.CheckoutState `json:"state"`
	OrderNumber    string              `json:"orderNumber"`
	PaymentOrderID string              `json:"paymentOrderId"`
	PaymentID      string              `json:"paymentId"`
	Total          decimal.Decimal     `json:"total"`
	Currency       enums.Currency      `json:"currency"`
	InvoiceRef     string              `json:"invoiceRef,omitempty"`
	Simulated      bool                `json:"simulated,omitempty"`
}

func toView(attempt *models.CheckoutAttempt) *AttemptView {
	view := &AttemptView{
		ID:             attempt.ID,
		State:          attempt.State,
		Lines:          attempt.Lines.Clone(),
		ShippingMethod: attempt.ShippingMethod,
		Pricing:        quoteOf(attempt),
		Currency:       attempt.Currency,
		CustomerInfo:   attempt.CustomerInfo,
		OrderNumber:    attempt.OrderNumber,
		PaymentOrderID: attempt.PaymentOrderID,
		LastError:      attempt.LastError,
		ExpiresAt:      attempt.ExpiresAt,
	}
	if attempt.CouponCode != nil && attempt.CouponKind != nil && attempt.CouponValue != nil {
		view.Coupon = &pricing.Coupon{Code: *attempt.CouponCode, Kind: *attempt.CouponKind, Value: *attempt.CouponValue}
	}
	return view
}

func quoteOf(attempt *models.CheckoutAttempt) pricing.Result {
	return pricing.Result{
		SubtotalBeforeDiscount: attempt.TotalBeforeDiscount,
		Discount:               attempt.DiscountValue,
		Subtotal:               attempt.Subtotal,
		Tax:                    attempt.Tax,
		ShippingCost:           attempt.ShippingCost,
		Total:                  attempt.Total,
	}
}

// freeze rounds each component to two places and rebuilds the total from the
// rounded parts so the stored identity stays exact.
func freeze(result pricing.Result) pricing.Result {
	rounded := result.Rounded()
	rounded.Total = rounded.Subtotal.Add(rounded.Tax).Add(rounded.ShippingCost)
	return rounded
}

func placementOf(attempt *models.CheckoutAttempt, order *models.Order) *Placement {
	placement := &Placement{
		AttemptID:      attempt.ID,
		State:          attempt.State,
		OrderNumber:    order.OrderNumber,
		PaymentOrderID: order.Payment.PaymentOrderID,
		PaymentID:      order.Payment.PaymentID,
		Total:          order.Total,
		Currency:       order.Payment.Currency,
		Simulated:      order.Payment.Simulated,
	}
	if order.InvoicePath != nil {
		placement.InvoiceRef = *order.InvoicePath
	}
	return placement
}
