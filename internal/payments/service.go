package payments

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const providerStripe = "stripe"

// Gateway is the subset of the Stripe client used for payment orders.
type Gateway interface {
	CreatePaymentOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*stripe.PaymentOrder, error)
	RetrievePaymentOrder(ctx context.Context, id string) (*stripe.PaymentOrder, error)
}

// Confirmation is what the client reports after completing payment.
type Confirmation struct {
	PaymentOrderID string
	PaymentID      string
	AmountMinor    int64
	Currency       enums.Currency
}

// Verifier checks a payment confirmation with the gateway.
type Verifier interface {
	Verify(ctx context.Context, confirmation Confirmation) (*types.PaymentResult, error)
}

// Service creates and verifies payment orders.
type Service struct {
	gateway        Gateway
	allowSimulated bool
	logg           *logger.Logger
	now            func() time.Time
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Gateway Gateway
	// AllowSimulated accepts confirmations without gateway verification. Config
	// loading only permits it in dev.
	AllowSimulated bool
	Logger         *logger.Logger
}

// NewService builds the payment service. The gateway may be nil only when
// simulated payments are allowed.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil && !params.AllowSimulated {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment gateway is required")
	}
	return &Service{
		gateway:        params.Gateway,
		allowSimulated: params.AllowSimulated,
		logg:           params.Logger,
		now:            time.Now,
	}, nil
}

// CreatePaymentOrder validates the request and opens a gateway payment order.
func (s *Service) CreatePaymentOrder(ctx context.Context, req functions.CreatePaymentOrderRequest) (*functions.PaymentOrder, error) {
	fields := pkgerrors.FieldErrors{}
	if !req.Amount.IsPositive() {
		fields["amount"] = "must be positive"
	}
	if strings.TrimSpace(req.Receipt) == "" {
		fields["receipt"] = "is required"
	}
	currency, err := enums.ParseCurrency(req.Currency)
	if err != nil {
		fields["currency"] = "unsupported currency"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("Missing amount or receipt", fields)
	}
	if s.gateway == nil {
		return s.simulatedOrder(ctx, req, currency), nil
	}

	order, err := s.gateway.CreatePaymentOrder(ctx, req.Amount, currency.String(), req.Receipt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to create order")
	}
	return &functions.PaymentOrder{
		ID:           order.ID,
		Amount:       order.AmountMinor,
		Currency:     order.Currency,
		ClientSecret: order.ClientSecret,
	}, nil
}

// Verify confirms that the gateway captured the expected amount for the payment order.
func (s *Service) Verify(ctx context.Context, confirmation Confirmation) (*types.PaymentResult, error) {
	if strings.TrimSpace(confirmation.PaymentOrderID) == "" {
		return nil, pkgerrors.Validation("payment confirmation incomplete", pkgerrors.FieldErrors{"paymentOrderId": "is required"})
	}
	if s.allowSimulated {
		return s.simulatedResult(ctx, confirmation), nil
	}

	order, err := s.gateway.RetrievePaymentOrder(ctx, confirmation.PaymentOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}
	if !order.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRejected, "payment not captured").
			WithDetails(map[string]any{"paymentOrderId": order.ID, "status": order.Status})
	}
	if confirmation.AmountMinor > 0 && order.AmountMinor != confirmation.AmountMinor {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRejected, "payment amount mismatch").
			WithDetails(map[string]any{"paymentOrderId": order.ID, "expected": confirmation.AmountMinor, "captured": order.AmountMinor})
	}

	currency, err := enums.ParseCurrency(order.Currency)
	if err != nil {
		currency = confirmation.Currency
	}
	paymentID := order.PaymentID
	if paymentID == "" {
		paymentID = confirmation.PaymentID
	}
	return &types.PaymentResult{
		Provider:       providerStripe,
		PaymentOrderID: order.ID,
		PaymentID:      paymentID,
		Amount:         stripe.FromMinorUnits(order.AmountMinor),
		AmountMinor:    order.AmountMinor,
		Currency:       currency,
		Status:         enums.PaymentStatusSuccess,
		ConfirmedAt:    s.now().UTC(),
	}, nil
}

func (s *Service) simulatedOrder(ctx context.Context, req functions.CreatePaymentOrderRequest, currency enums.Currency) *functions.PaymentOrder {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "receipt", req.Receipt), "simulated payment order issued")
	}
	return &functions.PaymentOrder{
		ID:       "sim_" + req.Receipt,
		Amount:   stripe.ToMinorUnits(req.Amount),
		Currency: currency.String(),
	}
}

func (s *Service) simulatedResult(ctx context.Context, confirmation Confirmation) *types.PaymentResult {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payment_order_id", confirmation.PaymentOrderID), "payment accepted without gateway verification")
	}
	paymentID := confirmation.PaymentID
	if paymentID == "" {
		paymentID = "sim_" + confirmation.PaymentOrderID
	}
	return &types.PaymentResult{
		Provider:       providerStripe,
		PaymentOrderID: confirmation.PaymentOrderID,
		PaymentID:      paymentID,
		Amount:         stripe.FromMinorUnits(confirmation.AmountMinor),
		AmountMinor:    confirmation.AmountMinor,
		Currency:       confirmation.Currency,
		Status:         enums.PaymentStatusSuccess,
		Simulated:      true,
		ConfirmedAt:    s.now().UTC(),
	}
}

var _ Verifier = (*Service)(nil)
