package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/sequencer"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func setupCheckoutDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
CREATE TABLE checkout_attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  state TEXT NOT NULL,
  lines TEXT NOT NULL,
  coupon_code TEXT,
  coupon_kind TEXT,
  coupon_value NUMERIC,
  shipping_method TEXT NOT NULL,
  total_before_discount NUMERIC NOT NULL,
  discount_value NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_cost NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  customer_info TEXT,
  shipping_address_id TEXT,
  terms_accepted BOOLEAN NOT NULL DEFAULT false,
  order_number TEXT,
  payment_order_id TEXT,
  payment_amount_minor INTEGER,
  currency TEXT NOT NULL,
  receipt TEXT,
  payment_id TEXT,
  last_error TEXT,
  gateway_captured_at DATETIME,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  order_date DATETIME NOT NULL,
  user_id TEXT NOT NULL,
  customer_info TEXT NOT NULL,
  cart_items TEXT NOT NULL,
  total_before_discount NUMERIC NOT NULL,
  discount_code TEXT,
  discount_value NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_method TEXT NOT NULL,
  shipping_cost NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  payment TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  invoice_path TEXT,
  confirmation_sent_at DATETIME,
  sent_from TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE failed_orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  order_date DATETIME NOT NULL,
  user_id TEXT NOT NULL,
  customer_info TEXT NOT NULL,
  cart_items TEXT NOT NULL,
  total_before_discount NUMERIC NOT NULL,
  discount_code TEXT,
  discount_value NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_method TEXT NOT NULL,
  shipping_cost NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  payment_attempt TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'failed',
  sent_from TEXT NOT NULL,
  created_at DATETIME
);`).Error)
	return db
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubCart struct {
	lines   types.OrderLines
	removed types.OrderLines
}

func (c *stubCart) Snapshot(context.Context, uuid.UUID) (types.OrderLines, error) {
	return c.lines.Clone(), nil
}

func (c *stubCart) RemoveOrdered(_ context.Context, _ uuid.UUID, ordered types.OrderLines) error {
	c.removed = append(c.removed, ordered.Clone()...)
	return nil
}

type stubCoupons map[string]*pricing.Coupon

func (s stubCoupons) Resolve(_ context.Context, code string, _ decimal.Decimal) (*pricing.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, ok := s[code]
	if !ok {
		return nil, pkgerrors.Validation("invalid coupon", pkgerrors.FieldErrors{"discountCode": "coupon code not recognised"})
	}
	return coupon, nil
}

type staticEngine struct{ engine *pricing.Engine }

func (s staticEngine) Engine(context.Context) *pricing.Engine { return s.engine }

type stubAddresses struct {
	owner   uuid.UUID
	id      uuid.UUID
	touched int
}

func (a *stubAddresses) Get(_ context.Context, userID, id uuid.UUID) (*address.AddressDTO, error) {
	if userID != a.owner || id != a.id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return &address.AddressDTO{ID: id, PostalAddress: types.PostalAddress{
		Address:    "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "India",
	}}, nil
}

func (a *stubAddresses) Resolve(ctx context.Context, userID, id uuid.UUID) (types.PostalAddress, error) {
	dto, err := a.Get(ctx, userID, id)
	if err != nil {
		return types.PostalAddress{}, err
	}
	a.touched++
	return dto.PostalAddress, nil
}

type stubSequencer struct {
	mu   sync.Mutex
	last int64
	err  error
}

func (s *stubSequencer) Next(context.Context) (sequencer.OrderNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return sequencer.OrderNumber{}, s.err
	}
	s.last++
	return sequencer.OrderNumber{Value: s.last, Formatted: sequencer.Format("K&K", s.last)}, nil
}

type stubEndpoints struct {
	paymentErr   error
	invoiceErr   error
	notifyErr    error
	paymentCalls []functions.CreatePaymentOrderRequest
	invoiced     []types.OrderRecord
	notified     []types.OrderRecord
}

func (e *stubEndpoints) CreatePaymentOrder(_ context.Context, req functions.CreatePaymentOrderRequest) (*functions.PaymentOrder, error) {
	e.paymentCalls = append(e.paymentCalls, req)
	if e.paymentErr != nil {
		return nil, e.paymentErr
	}
	return &functions.PaymentOrder{
		ID:           "pi_" + req.Receipt,
		Amount:       req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:     req.Currency,
		ClientSecret: "secret",
	}, nil
}

func (e *stubEndpoints) GenerateInvoice(_ context.Context, order types.OrderRecord) (*functions.InvoiceResult, error) {
	e.invoiced = append(e.invoiced, order)
	if e.invoiceErr != nil {
		return nil, e.invoiceErr
	}
	return &functions.InvoiceResult{StoragePath: "invoices/" + order.UserID.String() + "/invoice.pdf"}, nil
}

func (e *stubEndpoints) SendOrderConfirmation(_ context.Context, order types.OrderRecord) error {
	e.notified = append(e.notified, order)
	return e.notifyErr
}

type stubVerifier struct {
	calls int
	err   error
}

func (v *stubVerifier) Verify(_ context.Context, c payments.Confirmation) (*types.PaymentResult, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &types.PaymentResult{
		Provider:       "stripe",
		PaymentOrderID: c.PaymentOrderID,
		PaymentID:      "ch_1",
		Amount:         decimal.New(c.AmountMinor, -2),
		AmountMinor:    c.AmountMinor,
		Currency:       c.Currency,
		Status:         enums.PaymentStatusSuccess,
		ConfirmedAt:    time.Now().UTC(),
	}, nil
}

type memLocks struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemLocks() *memLocks { return &memLocks{data: map[string]string{}} }


func (m *memLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memLocks) ReleaseLock(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != owner {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memLocks) LockKey(scope, id string) string { return "lock:" + scope + ":" + id }

type recordingEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type harness struct {
	db        *gorm.DB
	svc       Service
	userID    uuid.UUID
	cart      *stubCart
	addresses *stubAddresses
	sequencer *stubSequencer
	endpoints *stubEndpoints
	verifier  *stubVerifier
	locks     *memLocks
	emitter   *recordingEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := setupCheckoutDB(t)
	userID := uuid.New()
	h := &harness{
		db:     db,
		userID: userID,
		cart: &stubCart{lines: types.OrderLines{{
			ProductID: uuid.New(),
			Title:     "Brass Diya",
			Price:     decimal.NewFromInt(500),
			UnitPrice: decimal.NewFromInt(500),
			Quantity:  2,
		}}},
		addresses: &stubAddresses{owner: userID, id: uuid.New()},
		sequencer: &stubSequencer{last: 1000},
		endpoints: &stubEndpoints{},
		verifier:  &stubVerifier{},
		locks:     newMemLocks(),
		emitter:   &recordingEmitter{},
	}

	cfg := config.CheckoutConfig{
		TaxRate:               "0.12",
		FreeShippingThreshold: "2500",
		StandardRate:          "300",
		ExpressRate:           "1200",
		Currency:              "INR",
		StepTimeout:           time.Second,
		AttemptTTL:            time.Hour,
	}
	svc, err := NewService(ServiceParams{
		Attempts: NewRepository(db),
		Orders:   orders.NewRepository(db),
		Tx:       gormTx{db: db},
		Cart:     h.cart,
		Coupons: stubCoupons{
			"FLAT200": {Code: "FLAT200", Kind: enums.CouponKindFlat, Value: decimal.NewFromInt(200)},
		},
		Pricing:   staticEngine{engine: pricing.NewEngine(pricing.RatesFromConfig(cfg))},
		Addresses: h.addresses,
		Sequencer: h.sequencer,
		Endpoints: h.endpoints,
		Payments:  h.verifier,
		Locks:     h.locks,
		Outbox:    h.emitter,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Config:    cfg,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) details() DetailsRequest {
	return DetailsRequest{
		Name:              "Asha Rao",
		Email:             "Asha@Example.com",
		Phone:             "+91 98450 12345",
		ShippingAddressID: h.addresses.id,
		TermsAccepted:     true,
	}
}

// toAwaitingPayment drives a fresh attempt up to AWAITING_PAYMENT.
func (h *harness) toAwaitingPayment(t *testing.T) (*AttemptView, *PaymentInitiation) {
	t.Helper()
	ctx := context.Background()

	view, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)
	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, h.details())
	require.NoError(t, err)
	initiation, err := h.svc.InitiatePayment(ctx, h.userID, view.ID)
	require.NoError(t, err)
	return view, initiation
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestStartAttemptPricesCart(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.StartAttempt(context.Background(), h.userID, StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateDetailsEntry, view.State)
	assert.Equal(t, enums.ShippingMethodStandard, view.ShippingMethod)
	assertMoney(t, "1000", view.Pricing.SubtotalBeforeDiscount, "subtotal before discount")
	assertMoney(t, "0", view.Pricing.Discount, "discount")
	assertMoney(t, "1000", view.Pricing.Subtotal, "subtotal")
	assertMoney(t, "120", view.Pricing.Tax, "tax")
	assertMoney(t, "300", view.Pricing.ShippingCost, "shipping")
	assertMoney(t, "1420", view.Pricing.Total, "total")

	withCoupon, err := h.svc.StartAttempt(context.Background(), h.userID, StartRequest{DiscountCode: "FLAT200"})
	require.NoError(t, err)
	require.NotNil(t, withCoupon.Coupon)
	assertMoney(t, "800", withCoupon.Pricing.Subtotal, "subtotal")
	assertMoney(t, "96", withCoupon.Pricing.Tax, "tax")
	assertMoney(t, "1196", withCoupon.Pricing.Total, "total")
}

func TestStartAttemptRejectsEmptyCartAndBadCoupon(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{DiscountCode: "NOPE"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.StartAttempt(ctx, h.userID, StartRequest{ShippingMethod: "drone"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	h.cart.lines = nil
	_, err = h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, countRows(t, h.db, "checkout_attempts"))
}

func TestSubmitDetailsRequiresEveryField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)

	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, DetailsRequest{Name: "Asha"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	fields, ok := typed.Details().(pkgerrors.FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "termsAccepted")
	assert.Contains(t, fields, "shippingAddressId")

	foreign := h.details()
	foreign.ShippingAddressID = uuid.New()
	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, foreign)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	current, err := h.svc.GetAttempt(ctx, h.userID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateDetailsEntry, current.State)

	reviewed, err := h.svc.SubmitDetails(ctx, h.userID, view.ID, h.details())
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateReview, reviewed.State)
	require.NotNil(t, reviewed.CustomerInfo)
	assert.Equal(t, "asha@example.com", reviewed.CustomerInfo.Email)
	assert.Equal(t, "Bengaluru", reviewed.CustomerInfo.ShippingAddress.City)
}

func TestGetAttemptHidesOtherUsers(t *testing.T) {
	h := newHarness(t)
	view, err := h.svc.StartAttempt(context.Background(), h.userID, StartRequest{})
	require.NoError(t, err)

	_, err = h.svc.GetAttempt(context.Background(), uuid.New(), view.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestPlaceOrderHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, initiation := h.toAwaitingPayment(t)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, initiation.State)
	assert.Equal(t, "#K&K1001", initiation.OrderNumber)
	assert.Equal(t, int64(142000), initiation.Amount)
	require.Len(t, h.endpoints.paymentCalls, 1)
	assertMoney(t, "1420", h.endpoints.paymentCalls[0].Amount, "payment amount")
	assert.Equal(t, "INR", h.endpoints.paymentCalls[0].Currency)

	placement, err := h.svc.ConfirmPayment(ctx, h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	require.NoError(t, err)
	assert.Equal(t, "#K&K1001", placement.OrderNumber)
	assert.Equal(t, "ch_1", placement.PaymentID)
	assert.Equal(t, enums.CheckoutStateNotified, placement.State)
	assert.NotEmpty(t, placement.InvoiceRef)
	assertMoney(t, "1420", placement.Total, "total")

	order, err := orders.NewRepository(h.db).FindByNumber(ctx, "#K&K1001")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	require.NotNil(t, order.InvoicePath)
	assert.Equal(t, placement.InvoiceRef, *order.InvoicePath)
	assert.NotNil(t, order.ConfirmationSentAt)
	assert.Equal(t, "Website", order.SentFrom)
	require.Len(t, order.CartItems, 1)
	assert.Equal(t, 2, order.CartItems[0].Quantity)

	require.Len(t, h.endpoints.notified, 1)
	assert.Equal(t, placement.InvoiceRef, h.endpoints.notified[0].InvoiceRef)
	assert.Len(t, h.cart.removed, 1)
	assert.Equal(t, 1, h.addresses.touched)
	require.Len(t, h.emitter.events, 1)
	assert.Equal(t, enums.EventOrderPlaced, h.emitter.events[0].EventType)
	assert.Empty(t, h.locks.data)

	again, err := h.svc.ConfirmPayment(ctx, h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	require.NoError(t, err)
	assert.Equal(t, placement.OrderNumber, again.OrderNumber)
	assert.Equal(t, 1, h.verifier.calls)
	assert.Equal(t, int64(1), countRows(t, h.db, "orders"))
}

func TestCartEditsAfterStartDoNotLeakIntoOrder(t *testing.T) {
	h := newHarness(t)
	view, initiation := h.toAwaitingPayment(t)

	h.cart.lines[0].Quantity = 9

	_, err := h.svc.ConfirmPayment(context.Background(), h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	require.NoError(t, err)
	order, err := orders.NewRepository(h.db).FindByNumber(context.Background(), initiation.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 2, order.CartItems[0].Quantity)
	require.Len(t, h.cart.removed, 1)
	assert.Equal(t, 2, h.cart.removed[0].Quantity)
}

func TestReceiptsAreUniqueWithinOneMillisecond(t *testing.T) {
	h := newHarness(t)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.svc.(*service).now = func() time.Time { return fixed }

	_, first := h.toAwaitingPayment(t)
	_, second := h.toAwaitingPayment(t)

	assert.Equal(t, "receipt_web_1767268800000_1001", first.Receipt)
	assert.Equal(t, "receipt_web_1767268800000_1002", second.Receipt)
	assert.NotEqual(t, first.PaymentOrderID, second.PaymentOrderID)
	require.Len(t, h.endpoints.paymentCalls, 2)
	assert.NotEqual(t, h.endpoints.paymentCalls[0].Receipt, h.endpoints.paymentCalls[1].Receipt)
}

func TestCheckoutSchemaCoversModels(t *testing.T) {
	db := setupCheckoutDB(t)
	for _, model := range []any{&models.CheckoutAttempt{}, &models.Order{}, &models.FailedOrder{}} {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" {
				continue
			}
			assert.Truef(t, db.Migrator().HasColumn(model, field.DBName), "%s is missing column %s", stmt.Schema.Table, field.DBName)
		}
	}
}

func TestInitiatePaymentFailureReturnsToReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.endpoints.paymentErr = errors.New("gateway down")

	view, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)
	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, h.details())
	require.NoError(t, err)

	_, err = h.svc.InitiatePayment(ctx, h.userID, view.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentInitiation))
	assert.True(t, pkgerrors.IsRetryable(err))

	current, err := h.svc.GetAttempt(ctx, h.userID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateReview, current.State)
	assert.NotNil(t, current.LastError)
	assert.Zero(t, countRows(t, h.db, "orders"))
	assert.Zero(t, countRows(t, h.db, "failed_orders"))

	h.endpoints.paymentErr = nil
	initiation, err := h.svc.InitiatePayment(ctx, h.userID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "#K&K1002", initiation.OrderNumber)
}

func TestInitiatePaymentReservationFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.sequencer.err = errors.New("counter locked")

	view, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)
	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, h.details())
	require.NoError(t, err)

	_, err = h.svc.InitiatePayment(ctx, h.userID, view.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeReservation))
	assert.Empty(t, h.endpoints.paymentCalls)
}

func TestInitiatePaymentRequiresReview(t *testing.T) {
	h := newHarness(t)
	view, err := h.svc.StartAttempt(context.Background(), h.userID, StartRequest{})
	require.NoError(t, err)

	_, err = h.svc.InitiatePayment(context.Background(), h.userID, view.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestConcurrentPaymentStepIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, initiation := h.toAwaitingPayment(t)

	h.locks.data[h.locks.LockKey(lockScope, view.ID.String())] = "other-request"

	_, err := h.svc.ConfirmPayment(ctx, h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, h.verifier.calls)
	assert.Equal(t, "other-request", h.locks.data[h.locks.LockKey(lockScope, view.ID.String())])
}

func TestConfirmRejectsForeignPaymentOrder(t *testing.T) {
	h := newHarness(t)
	view, _ := h.toAwaitingPayment(t)

	_, err := h.svc.ConfirmPayment(context.Background(), h.userID, view.ID, ConfirmRequest{PaymentOrderID: "pi_someone_else"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.verifier.calls)
}

func TestConfirmRejectedPaymentKeepsAwaiting(t *testing.T) {
	h := newHarness(t)
	view, initiation := h.toAwaitingPayment(t)
	h.verifier.err = pkgerrors.New(pkgerrors.CodePaymentRejected, "payment not captured")

	_, err := h.svc.ConfirmPayment(context.Background(), h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentRejected))

	current, err := h.svc.GetAttempt(context.Background(), h.userID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, current.State)
	assert.Zero(t, countRows(t, h.db, "orders"))
}

func TestInvoiceFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.endpoints.invoiceErr = errors.New("pdf renderer down")
	view, initiation := h.toAwaitingPayment(t)

	placement, err := h.svc.ConfirmPayment(ctx, h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	require.NoError(t, err)
	assert.Empty(t, placement.InvoiceRef)
	assert.Equal(t, enums.CheckoutStateNotified, placement.State)

	order, err := orders.NewRepository(h.db).FindByNumber(ctx, initiation.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Nil(t, order.InvoicePath)
	require.Len(t, h.endpoints.notified, 1)
	assert.Empty(t, h.endpoints.notified[0].InvoiceRef)
}

func TestConfirmationFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t)
	h.endpoints.notifyErr = errors.New("mail down")
	view, initiation := h.toAwaitingPayment(t)

	placement, err := h.svc.ConfirmPayment(context.Background(), h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateInvoiced, placement.State)
	assert.Len(t, h.cart.removed, 1)
}

func TestPersistenceFailureIsOrderUnsaved(t *testing.T) {
	h := newHarness(t)
	view, initiation := h.toAwaitingPayment(t)
	h.emitter.err = errors.New("outbox insert failed")

	_, err := h.svc.ConfirmPayment(context.Background(), h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeOrderUnsaved, typed.Code())
	assert.False(t, pkgerrors.IsRetryable(err))
	assert.Zero(t, countRows(t, h.db, "orders"))
	assert.Empty(t, h.endpoints.invoiced)
	assert.Empty(t, h.cart.removed)

	current, err := h.svc.GetAttempt(context.Background(), h.userID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, current.State)
}

func TestAbandonPaymentRecordsFailedOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, initiation := h.toAwaitingPayment(t)

	abandoned, err := h.svc.AbandonPayment(ctx, h.userID, view.ID, AbandonRequest{Reason: "modal closed"})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStatePaymentFailed, abandoned.State)

	failed, err := orders.NewRepository(h.db).FindFailedByNumber(ctx, initiation.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, failed.Status)
	assert.Equal(t, "modal closed", failed.PaymentAttempt.Error)
	assert.Equal(t, initiation.PaymentOrderID, failed.PaymentAttempt.PaymentOrderID)
	assert.Zero(t, countRows(t, h.db, "orders"))
	require.Len(t, h.emitter.events, 1)
	assert.Equal(t, enums.EventOrderPaymentFailed, h.emitter.events[0].EventType)

	again, err := h.svc.AbandonPayment(ctx, h.userID, view.ID, AbandonRequest{})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStatePaymentFailed, again.State)
	assert.Len(t, h.emitter.events, 1)

	_, err = h.svc.ConfirmPayment(ctx, h.userID, view.ID, ConfirmRequest{PaymentOrderID: initiation.PaymentOrderID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentAbandoned))

	restarted, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateDetailsEntry, restarted.State)
}

func TestExpiredAttemptCannotAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.StartAttempt(ctx, h.userID, StartRequest{})
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&models.CheckoutAttempt{}).
		Where("id = ?", view.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = h.svc.SubmitDetails(ctx, h.userID, view.ID, h.details())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	deleted, err := NewRepository(h.db).DeleteExpired(ctx, time.Now(), []enums.CheckoutState{enums.CheckoutStateDetailsEntry})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
