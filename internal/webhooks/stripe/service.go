package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type attemptRepository interface {
	FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.CheckoutAttempt, error)
	MarkGatewayCaptured(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordError(ctx context.Context, id uuid.UUID, message string) error
}

type captureMetrics interface {
	IncCapturedUnsaved()
}

type ServiceParams struct {
	Attempts attemptRepository
	Metrics  captureMetrics
	Logger   *logger.Logger
}

// Service reconciles gateway-side payment outcomes with checkout attempts.
// It never places orders; confirmation stays with the customer's session.
type Service struct {
	attempts attemptRepository
	metrics  captureMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Attempts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout attempt repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		attempts: params.Attempts,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":  event.ID,
		"payment_order_id": intent.ID,
	})

	attempt, err := s.attempts.FindByPaymentOrderID(ctx, intent.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logg.Info(ctx, "payment intent has no checkout attempt")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout attempt")
	}
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())
	if attempt.OrderNumber != nil {
		ctx = s.logg.WithOrderNumber(ctx, *attempt.OrderNumber)
	}

	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		return s.paymentFailed(ctx, attempt, &intent)
	}
	return s.paymentCaptured(ctx, attempt, &intent)
}

func (s *Service) paymentCaptured(ctx context.Context, attempt *models.CheckoutAttempt, intent *stripe.PaymentIntent) error {
	if err := s.attempts.MarkGatewayCaptured(ctx, attempt.ID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark gateway capture")
	}
	if attempt.PaymentAmountMinor != nil && *attempt.PaymentAmountMinor != intent.Amount {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"expected_minor": *attempt.PaymentAmountMinor,
			"captured_minor": intent.Amount,
		}), "gateway captured a different amount", pkgerrors.New(pkgerrors.CodeConflict, "payment amount mismatch"))
	}

	switch {
	case attempt.State.HasOrder():
		return nil
	case attempt.State == enums.CheckoutStateAwaitingPayment:
		s.logg.Warn(ctx, "gateway captured payment before customer confirmation")
		return nil
	default:
		if s.metrics != nil {
			s.metrics.IncCapturedUnsaved()
		}
		cause := pkgerrors.New(pkgerrors.CodeOrderUnsaved, "payment captured for a checkout without an order")
		s.logg.Error(s.logg.WithField(ctx, "state", attempt.State), "payment captured but order not saved", cause)
		if err := s.attempts.RecordError(ctx, attempt.ID, cause.Message()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record capture error")
		}
		return nil
	}
}

func (s *Service) paymentFailed(ctx context.Context, attempt *models.CheckoutAttempt, intent *stripe.PaymentIntent) error {
	if attempt.State != enums.CheckoutStateAwaitingPayment {
		return nil
	}
	message := "payment failed at gateway"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		message = message + ": " + intent.LastPaymentError.Msg
	}
	s.logg.Warn(ctx, message)
	if err := s.attempts.RecordError(ctx, attempt.ID, message); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment failure")
	}
	return nil
}
