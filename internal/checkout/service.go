package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/sequencer"
	rules "github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	stepReserve      = "reserve_number"
	stepPaymentOrder = "create_payment_order"
	stepVerify       = "verify_payment"
	stepPersist      = "persist_order"
	stepInvoice      = "generate_invoice"
	stepNotify       = "send_confirmation"

	defaultStepTimeout  = 20 * time.Second
	defaultAttemptTTL   = 30 * time.Minute
	defaultSentFrom     = "Website"
	defaultAbandonCause = "payment cancelled by customer"

	orderUnsavedMessage = "payment succeeded but order not saved, contact support"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (types.OrderLines, error)
	RemoveOrdered(ctx context.Context, userID uuid.UUID, ordered types.OrderLines) error
}

type engineSource interface {
	Engine(ctx context.Context) *pricing.Engine
}

type addressBook interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*address.AddressDTO, error)
	Resolve(ctx context.Context, userID, id uuid.UUID) (types.PostalAddress, error)
}

// endpoints is the part of the functions client the orchestrator calls.
type endpoints interface {
	CreatePaymentOrder(ctx context.Context, req functions.CreatePaymentOrderRequest) (*functions.PaymentOrder, error)
	GenerateInvoice(ctx context.Context, order types.OrderRecord) (*functions.InvoiceResult, error)
	SendOrderConfirmation(ctx context.Context, order types.OrderRecord) error
}

// Service drives a checkout attempt from details entry to a placed order.
type Service interface {
	StartAttempt(ctx context.Context, userID uuid.UUID, req StartRequest) (*AttemptView, error)
	SubmitDetails(ctx context.Context, userID, attemptID uuid.UUID, req DetailsRequest) (*AttemptView, error)
	InitiatePayment(ctx context.Context, userID, attemptID uuid.UUID) (*PaymentInitiation, error)
	ConfirmPayment(ctx context.Context, userID, attemptID uuid.UUID, req ConfirmRequest) (*Placement, error)
	AbandonPayment(ctx context.Context, userID, attemptID uuid.UUID, req AbandonRequest) (*AttemptView, error)
	GetAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*AttemptView, error)
}

// ServiceParams bundles the collaborators of the checkout orchestrator.
type ServiceParams struct {
	Attempts  Repository
	Orders    orders.Repository
	Tx        txRunner
	Cart      cartSource
	Coupons   coupons.Resolver
	Pricing   engineSource
	Addresses addressBook
	Sequencer sequencer.Reserver
	Endpoints endpoints
	Payments  payments.Verifier
	Locks     redis.LockStore
	Outbox    outbox.Emitter
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Config    config.CheckoutConfig
}

type service struct {
	attempts    Repository
	orders      orders.Repository
	tx          txRunner
	cart        cartSource
	coupons     coupons.Resolver
	pricing     engineSource
	addresses   addressBook
	sequencer   sequencer.Reserver
	endpoints   endpoints
	payments    payments.Verifier
	locks       *attemptLocker
	outbox      outbox.Emitter
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	currency    enums.Currency
	stepTimeout time.Duration
	attemptTTL  time.Duration
	sentFrom    string
	now         func() time.Time
}

// NewService validates the collaborators and builds the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Attempts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt repository is required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders repository is required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	case params.Cart == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	case params.Coupons == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon resolver is required")
	case params.Pricing == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing engine is required")
	case params.Addresses == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address book is required")
	case params.Sequencer == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order sequencer is required")
	case params.Endpoints == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "functions client is required")
	case params.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment verifier is required")
	case params.Locks == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lock store is required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}

	currency, err := enums.ParseCurrency(params.Config.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout currency")
	}
	stepTimeout := params.Config.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	attemptTTL := params.Config.AttemptTTL
	if attemptTTL <= 0 {
		attemptTTL = defaultAttemptTTL
	}
	sentFrom := strings.TrimSpace(params.Config.SentFrom)
	if sentFrom == "" {
		sentFrom = defaultSentFrom
	}

	return &service{
		attempts:    params.Attempts,
		orders:      params.Orders,
		tx:          params.Tx,
		cart:        params.Cart,
		coupons:     params.Coupons,
		pricing:     params.Pricing,
		addresses:   params.Addresses,
		sequencer:   params.Sequencer,
		endpoints:   params.Endpoints,
		payments:    params.Payments,
		locks:       newAttemptLocker(params.Locks, params.Config.LockTTL),
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		currency:    currency,
		stepTimeout: stepTimeout,
		attemptTTL:  attemptTTL,
		sentFrom:    sentFrom,
		now:         time.Now,
	}, nil
}

func (s *service) StartAttempt(ctx context.Context, userID uuid.UUID, req StartRequest) (*AttemptView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	method, err := enums.ParseShippingMethod(req.ShippingMethod)
	if err != nil {
		return nil, pkgerrors.Validation("invalid checkout", pkgerrors.FieldErrors{"shippingMethod": "unknown shipping method"})
	}

	lines, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := rules.ValidateLines(lines); err != nil {
		return nil, err
	}

	engine := s.pricing.Engine(ctx)
	coupon, err := s.coupons.Resolve(ctx, req.DiscountCode, engine.Quote(lines, nil, method).SubtotalBeforeDiscount)
	if err != nil {
		return nil, err
	}
	quote := freeze(engine.Quote(lines, coupon, method))

	now := s.now().UTC()
	attempt := &models.CheckoutAttempt{
		ID:                  uuid.New(),
		UserID:              userID,
		State:               enums.CheckoutStateDetailsEntry,
		Lines:               lines.Clone(),
		ShippingMethod:      method,
		TotalBeforeDiscount: quote.SubtotalBeforeDiscount,
		DiscountValue:       quote.Discount,
		Subtotal:            quote.Subtotal,
		Tax:                 quote.Tax,
		ShippingCost:        quote.ShippingCost,
		Total:               quote.Total,
		Currency:            s.currency,
		ExpiresAt:           now.Add(s.attemptTTL),
	}
	if coupon != nil {
		code, kind, value := coupon.Code, coupon.Kind, coupon.Value
		attempt.CouponCode = &code
		attempt.CouponKind = &kind
		attempt.CouponValue = &value
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout attempt")
	}

	s.logg.Info(s.logg.WithAttemptID(ctx, attempt.ID.String()), "checkout attempt started")
	return toView(attempt), nil
}

func (s *service) SubmitDetails(ctx context.Context, userID, attemptID uuid.UUID, req DetailsRequest) (*AttemptView, error) {
	attempt, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.requireState(attempt, enums.CheckoutStateDetailsEntry, enums.CheckoutStateReview); err != nil {
		return nil, err
	}
	if err := s.requireLive(attempt); err != nil {
		return nil, err
	}

	if err := rules.ValidateDetails(rules.DetailsInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		ShippingAddressID: req.ShippingAddressID,
		TermsAccepted:     req.TermsAccepted,
	}); err != nil {
		return nil, err
	}

	addr, err := s.addresses.Get(ctx, userID, req.ShippingAddressID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Validation("checkout details incomplete", pkgerrors.FieldErrors{"shippingAddressId": "select a shipping address"})
		}
		return nil, err
	}

	addressID := addr.ID
	attempt.CustomerInfo = &types.CustomerInfo{
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Name:            strings.TrimSpace(req.Name),
		Phone:           strings.TrimSpace(req.Phone),
		ShippingAddress: addr.PostalAddress,
		Notes:           strings.TrimSpace(req.Notes),
	}
	attempt.ShippingAddressID = &addressID
	attempt.TermsAccepted = true
	attempt.LastError = nil

	if err := s.attempts.Transition(ctx, attempt, enums.CheckoutStateReview, "customer_info", "shipping_address_id", "terms_accepted", "last_error"); err != nil {
		return nil, s.transitionErr(err, "save checkout details")
	}
	return toView(attempt), nil
}

func (s *service) InitiatePayment(ctx context.Context, userID, attemptID uuid.UUID) (*PaymentInitiation, error) {
	attempt, release, err := s.lockAttempt(ctx, userID, attemptID, enums.CheckoutStateReview)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, attemptID, release)
	if err := s.requireLive(attempt); err != nil {
		return nil, err
	}
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())

	var number sequencer.OrderNumber
	err = s.step(ctx, stepReserve, func(stepCtx context.Context) error {
		reserved, err := s.sequencer.Next(stepCtx)
		number = reserved
		return err
	})
	if err != nil {
		s.recordError(ctx, attempt, err)
		if !pkgerrors.HasCode(err, pkgerrors.CodeReservation) {
			err = pkgerrors.Wrap(pkgerrors.CodeReservation, err, "reserve order number")
		}
		return nil, err
	}
	ctx = s.logg.WithOrderNumber(ctx, number.Formatted)

	receipt := receiptFor(s.now(), number)
	var order *functions.PaymentOrder
	err = s.step(ctx, stepPaymentOrder, func(stepCtx context.Context) error {
		created, err := s.endpoints.CreatePaymentOrder(stepCtx, functions.CreatePaymentOrderRequest{
			Amount:   attempt.Total,
			Currency: attempt.Currency.String(),
			Receipt:  receipt,
		})
		order = created
		return err
	})
	if err != nil {
		s.logg.WarnErr(ctx, "payment order creation failed; order number left unused", err)
		s.recordError(ctx, attempt, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInitiation, err, "could not start payment, please try again")
	}

	orderNumber, paymentOrderID, amount := number.Formatted, order.ID, order.Amount
	attempt.OrderNumber = &orderNumber
	attempt.PaymentOrderID = &paymentOrderID
	attempt.PaymentAmountMinor = &amount
	attempt.Receipt = &receipt
	attempt.LastError = nil
	if err := s.attempts.Transition(ctx, attempt, enums.CheckoutStateAwaitingPayment, "order_number", "payment_order_id", "payment_amount_minor", "receipt", "last_error"); err != nil {
		return nil, s.transitionErr(err, "record payment order")
	}

	s.logg.Info(ctx, "payment order created")
	return &PaymentInitiation{
		AttemptID:      attempt.ID,
		State:          attempt.State,
		OrderNumber:    orderNumber,
		PaymentOrderID: paymentOrderID,
		Amount:         amount,
		Currency:       attempt.Currency,
		Receipt:        receipt,
		ClientSecret:   order.ClientSecret,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, userID, attemptID uuid.UUID, req ConfirmRequest) (*Placement, error) {
	paymentOrderID := strings.TrimSpace(req.PaymentOrderID)
	if paymentOrderID == "" {
		return nil, pkgerrors.Validation("payment confirmation incomplete", pkgerrors.FieldErrors{"paymentOrderId": "is required"})
	}

	current, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if current.State.HasOrder() {
		return s.existingPlacement(ctx, current)
	}

	attempt, release, err := s.lockAttempt(ctx, userID, attemptID, enums.CheckoutStateAwaitingPayment)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, attemptID, release)
	if attempt.PaymentOrderID == nil || *attempt.PaymentOrderID != paymentOrderID {
		return nil, pkgerrors.Validation("payment confirmation mismatch", pkgerrors.FieldErrors{"paymentOrderId": "does not belong to this checkout"})
	}
	ctx = s.logg.WithOrderNumber(s.logg.WithAttemptID(ctx, attempt.ID.String()), *attempt.OrderNumber)

	var payment *types.PaymentResult
	err = s.step(ctx, stepVerify, func(stepCtx context.Context) error {
		confirmation := payments.Confirmation{
			PaymentOrderID: paymentOrderID,
			PaymentID:      strings.TrimSpace(req.PaymentID),
			Currency:       attempt.Currency,
		}
		if attempt.PaymentAmountMinor != nil {
			confirmation.AmountMinor = *attempt.PaymentAmountMinor
		}
		verified, err := s.payments.Verify(stepCtx, confirmation)
		payment = verified
		return err
	})
	if err != nil {
		s.recordError(ctx, attempt, err)
		return nil, err
	}

	// Past this point the customer has paid; the caller going away must not
	// stop the order from being written.
	work := context.WithoutCancel(ctx)

	order, err := s.persist(work, attempt, payment)
	if err != nil {
		s.metrics.IncCapturedUnsaved()
		s.logg.Error(s.logg.WithField(work, "payment_id", payment.PaymentID), "payment captured but order not saved", err)
		s.recordError(work, attempt, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderUnsaved, err, orderUnsavedMessage).
			WithDetails(map[string]any{"orderNumber": *attempt.OrderNumber, "paymentId": payment.PaymentID})
	}
	s.metrics.IncOrder(enums.OrderStatusProcessing.String())
	s.logg.Info(work, "order persisted")

	if attempt.ShippingAddressID != nil {
		if _, err := s.addresses.Resolve(work, userID, *attempt.ShippingAddressID); err != nil {
			s.logg.WarnErr(work, "touch shipping address failed", err)
		}
	}

	s.postProcess(work, attempt, order)

	if err := s.cart.RemoveOrdered(work, userID, order.CartItems); err != nil {
		s.logg.WarnErr(work, "remove ordered lines from cart failed", err)
	}
	return placementOf(attempt, order), nil
}

func (s *service) AbandonPayment(ctx context.Context, userID, attemptID uuid.UUID, req AbandonRequest) (*AttemptView, error) {
	current, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if current.State == enums.CheckoutStatePaymentFailed {
		return toView(current), nil
	}

	attempt, release, err := s.lockAttempt(ctx, userID, attemptID, enums.CheckoutStateAwaitingPayment)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, attemptID, release)
	if attempt.CustomerInfo == nil || attempt.OrderNumber == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout attempt has no payment to abandon")
	}
	ctx = s.logg.WithOrderNumber(s.logg.WithAttemptID(ctx, attempt.ID.String()), *attempt.OrderNumber)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultAbandonCause
	}
	paymentOrderID := ""
	if attempt.PaymentOrderID != nil {
		paymentOrderID = *attempt.PaymentOrderID
	}
	failedAt := s.now().UTC()
	failed := &models.FailedOrder{
		ID:                  uuid.New(),
		OrderNumber:         *attempt.OrderNumber,
		OrderDate:           failedAt,
		UserID:              attempt.UserID,
		CustomerInfo:        *attempt.CustomerInfo,
		CartItems:           attempt.Lines.Clone(),
		TotalBeforeDiscount: attempt.TotalBeforeDiscount,
		DiscountCode:        attempt.CouponCode,
		DiscountValue:       attempt.DiscountValue,
		Subtotal:            attempt.Subtotal,
		Tax:                 attempt.Tax,
		ShippingMethod:      attempt.ShippingMethod,
		ShippingCost:        attempt.ShippingCost,
		Total:               attempt.Total,
		PaymentAttempt: types.PaymentAttempt{
			PaymentOrderID: paymentOrderID,
			Status:         enums.PaymentStatusFailed,
			Error:          reason,
		},
		Status:   enums.OrderStatusFailed,
		SentFrom: s.sentFrom,
	}

	prev := attempt.State
	attempt.LastError = &reason
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.orders.WithTx(tx).CreateFailedOrder(ctx, failed)
		if err != nil {
			return err
		}
		if err := s.attempts.WithTx(tx).Transition(ctx, attempt, enums.CheckoutStatePaymentFailed, "last_error"); err != nil {
			return err
		}
		if !created {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateFailedOrder,
			AggregateID:   failed.ID,
			Actor:         &outbox.ActorRef{UserID: attempt.UserID, Role: string(enums.UserRoleCustomer)},
			OccurredAt:    failedAt,
			Data: payloads.OrderPaymentFailedEvent{
				FailedOrderID:  failed.ID,
				OrderNumber:    failed.OrderNumber,
				UserID:         failed.UserID,
				PaymentOrderID: paymentOrderID,
				Total:          failed.Total,
				Reason:         reason,
				FailedAt:       failedAt,
			},
		})
	})
	if err != nil {
		attempt.State = prev
		return nil, s.transitionErr(err, "record failed order")
	}

	s.metrics.IncOrder(enums.OrderStatusFailed.String())
	s.logg.Info(ctx, "payment abandoned")
	return toView(attempt), nil
}

func (s *service) GetAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*AttemptView, error) {
	attempt, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return toView(attempt), nil
}

// receiptFor builds the gateway receipt; the reserved number keeps it unique
// per payment initiation.
func receiptFor(at time.Time, number sequencer.OrderNumber) string {
	return fmt.Sprintf("receipt_web_%d_%d", at.UnixMilli(), number.Value)
}

// persist writes the order, advances the attempt and queues order.placed in
// one transaction. This is the commit point of a checkout.
func (s *service) persist(ctx context.Context, attempt *models.CheckoutAttempt, payment *types.PaymentResult) (*models.Order, error) {
	if attempt.CustomerInfo == nil || attempt.OrderNumber == nil {
		return nil, errors.New("attempt is missing customer details or order number")
	}

	order := &models.Order{
		ID:                  uuid.New(),
		OrderNumber:         *attempt.OrderNumber,
		OrderDate:           payment.ConfirmedAt,
		UserID:              attempt.UserID,
		CustomerInfo:        *attempt.CustomerInfo,
		CartItems:           attempt.Lines.Clone(),
		TotalBeforeDiscount: attempt.TotalBeforeDiscount,
		DiscountCode:        attempt.CouponCode,
		DiscountValue:       attempt.DiscountValue,
		Subtotal:            attempt.Subtotal,
		Tax:                 attempt.Tax,
		ShippingMethod:      attempt.ShippingMethod,
		ShippingCost:        attempt.ShippingCost,
		Total:               attempt.Total,
		Payment:             *payment,
		Status:              enums.OrderStatusProcessing,
		SentFrom:            s.sentFrom,
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = s.now().UTC()
	}

	itemCount := 0
	for _, line := range order.CartItems {
		itemCount += line.Quantity
	}

	prev := attempt.State
	paymentID := payment.PaymentID
	attempt.PaymentID = &paymentID
	attempt.LastError = nil
	err := s.step(ctx, stepPersist, func(stepCtx context.Context) error {
		return s.tx.WithTx(stepCtx, func(tx *gorm.DB) error {
			if err := s.orders.WithTx(tx).CreateOrder(stepCtx, order); err != nil {
				return err
			}
			if err := s.attempts.WithTx(tx).Transition(stepCtx, attempt, enums.CheckoutStateOrderPersisted, "payment_id", "last_error"); err != nil {
				return err
			}
			return s.outbox.Emit(stepCtx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(enums.UserRoleCustomer)},
				OccurredAt:    order.OrderDate,
				Data: payloads.OrderPlacedEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					UserID:      order.UserID,
					Total:       order.Total,
					Currency:    payment.Currency,
					Shipping:    order.ShippingMethod,
					ItemCount:   itemCount,
					Simulated:   payment.Simulated,
					PlacedAt:    order.OrderDate,
				},
			})
		})
	})
	if err != nil {
		attempt.State = prev
		return nil, err
	}
	return order, nil
}

// postProcess generates the invoice and sends the confirmation. Failures are
// logged and left to the fulfillment worker.
func (s *service) postProcess(ctx context.Context, attempt *models.CheckoutAttempt, order *models.Order) {
	record := orders.ToRecord(*order)

	var invoice *functions.InvoiceResult
	err := s.postStep(ctx, stepInvoice, func(stepCtx context.Context) error {
		result, err := s.endpoints.GenerateInvoice(stepCtx, record)
		invoice = result
		return err
	})
	if err == nil && invoice != nil && invoice.StoragePath != "" {
		path := invoice.StoragePath
		record.InvoiceRef = path
		order.InvoicePath = &path
		if err := s.orders.SetInvoicePath(ctx, order.ID, path); err != nil {
			s.logg.WarnErr(ctx, "record invoice path failed", err)
		}
		if err := s.attempts.Transition(ctx, attempt, enums.CheckoutStateInvoiced); err != nil {
			s.logg.WarnErr(ctx, "advance attempt to invoiced failed", err)
		}
	}

	err = s.postStep(ctx, stepNotify, func(stepCtx context.Context) error {
		return s.endpoints.SendOrderConfirmation(stepCtx, record)
	})
	if err != nil {
		return
	}
	sentAt := s.now().UTC()
	order.ConfirmationSentAt = &sentAt
	if err := s.orders.MarkConfirmationSent(ctx, order.ID, sentAt); err != nil {
		s.logg.WarnErr(ctx, "record confirmation sent failed", err)
	}
	if err := s.attempts.Transition(ctx, attempt, enums.CheckoutStateNotified); err != nil {
		s.logg.WarnErr(ctx, "advance attempt to notified failed", err)
	}
}

func (s *service) existingPlacement(ctx context.Context, attempt *models.CheckoutAttempt) (*Placement, error) {
	if attempt.OrderNumber == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "placed attempt has no order number")
	}
	order, err := s.orders.FindByNumber(ctx, *attempt.OrderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load placed order")
	}
	return placementOf(attempt, order), nil
}

func (s *service) load(ctx context.Context, userID, attemptID uuid.UUID) (*models.CheckoutAttempt, error) {
	attempt, err := s.attempts.FindForUser(ctx, userID, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout attempt")
	}
	return attempt, nil
}

// lockAttempt takes the per-attempt lock and reloads the attempt under it.
func (s *service) lockAttempt(ctx context.Context, userID, attemptID uuid.UUID, state enums.CheckoutState) (*models.CheckoutAttempt, func(context.Context) error, error) {
	attempt, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireState(attempt, state); err != nil {
		return nil, nil, err
	}

	release, ok, err := s.locks.acquire(ctx, attemptID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !ok {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already in progress for this checkout")
	}

	attempt, err = s.load(ctx, userID, attemptID)
	if err == nil {
		err = s.requireState(attempt, state)
	}
	if err != nil {
		s.unlock(ctx, attemptID, release)
		return nil, nil, err
	}
	return attempt, release, nil
}

func (s *service) unlock(ctx context.Context, attemptID uuid.UUID, release func(context.Context) error) {
	if release == nil {
		return
	}
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logg.WarnErr(s.logg.WithAttemptID(ctx, attemptID.String()), "release checkout lock failed", err)
	}
}

func (s *service) requireState(attempt *models.CheckoutAttempt, allowed ...enums.CheckoutState) error {
	for _, state := range allowed {
		if attempt.State == state {
			return nil
		}
	}
	if attempt.State == enums.CheckoutStatePaymentFailed {
		return pkgerrors.New(pkgerrors.CodePaymentAbandoned, "payment was abandoned, start a new checkout")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not in a state that allows this step").
		WithDetails(map[string]any{"state": attempt.State})
}

// requireLive rejects pre-payment steps on attempts past their expiry.
func (s *service) requireLive(attempt *models.CheckoutAttempt) error {
	if s.now().After(attempt.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout expired, start a new checkout")
	}
	return nil
}

func (s *service) transitionErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout changed while processing, reload and try again")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func (s *service) recordError(ctx context.Context, attempt *models.CheckoutAttempt, cause error) {
	msg := cause.Error()
	if typed := pkgerrors.As(cause); typed != nil {
		msg = typed.Message()
	}
	attempt.LastError = &msg
	if err := s.attempts.RecordError(context.WithoutCancel(ctx), attempt.ID, msg); err != nil {
		s.logg.WarnErr(ctx, "record checkout error failed", err)
	}
}

// step runs fn under the per-call timeout and records its outcome.
func (s *service) step(ctx context.Context, name string, fn func(context.Context) error) error {
	err := s.timed(ctx, name, fn, metrics.OutcomeFailed)
	if err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "step", name), "checkout step failed", err)
	}
	return err
}

// postStep is step for work after the commit point; failures degrade the
// checkout but never fail it.
func (s *service) postStep(ctx context.Context, name string, fn func(context.Context) error) error {
	err := s.timed(ctx, name, fn, metrics.OutcomeDegraded)
	if err != nil {
		s.logg.WarnErr(s.logg.WithFields(ctx, map[string]any{"step": name, "error_kind": "post_processing"}), "post-processing failed, fulfillment worker will retry", err)
	}
	return err
}

func (s *service) timed(ctx context.Context, name string, fn func(context.Context) error, failOutcome string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	started := time.Now()
	err := fn(stepCtx)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = failOutcome
	}
	s.metrics.ObserveStep(name, outcome, time.Since(started))
	return err
}
