package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	receiptMetadataKey = "receipt"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// PaymentIntentAPI exposes the PaymentIntent calls used for payment orders.
type PaymentIntentAPI interface {
	New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// PaymentOrder is the provider-neutral view of a payment intent.
type PaymentOrder struct {
	ID           string
	AmountMinor  int64
	Currency     string
	Receipt      string
	Status       string
	ClientSecret string
	PaymentID    string
}

// Succeeded reports whether the provider captured the funds.
func (p PaymentOrder) Succeeded() bool {
	return p.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	intents     PaymentIntentAPI
	environment string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		intents:     paymentIntentWrapper{},
		environment: env,
	}, nil
}

// NewClientWithAPI builds a client over a caller supplied PaymentIntent API.
func NewClientWithAPI(api PaymentIntentAPI, env string) *Client {
	return &Client{intents: api, environment: env}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreatePaymentOrder opens a PaymentIntent for amount (major units) tagged with receipt.
func (c *Client) CreatePaymentOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*PaymentOrder, error) {
	if c == nil || c.intents == nil {
		return nil, errors.New("stripe client not initialized")
	}
	minor := ToMinorUnits(amount)
	if minor <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if strings.TrimSpace(receipt) == "" {
		return nil, errors.New("receipt is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(receiptMetadataKey, receipt)
	params.SetIdempotencyKey("payment-order:" + receipt)

	intent, err := c.intents.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return toPaymentOrder(intent), nil
}

// RetrievePaymentOrder loads the current provider state of a payment order.
func (c *Client) RetrievePaymentOrder(ctx context.Context, id string) (*PaymentOrder, error) {
	if c == nil || c.intents == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("payment order id is required")
	}
	intent, err := c.intents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return toPaymentOrder(intent), nil
}

// ToMinorUnits converts a major-unit amount into the provider's integer minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a major-unit decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func toPaymentOrder(intent *stripe.PaymentIntent) *PaymentOrder {
	if intent == nil {
		return &PaymentOrder{}
	}
	order := &PaymentOrder{
		ID:           intent.ID,
		AmountMinor:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
		Receipt:      intent.Metadata[receiptMetadataKey],
	}
	if intent.LatestCharge != nil {
		order.PaymentID = intent.LatestCharge.ID
	}
	return order
}

type paymentIntentWrapper struct{}

func (paymentIntentWrapper) New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (paymentIntentWrapper) Get(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
