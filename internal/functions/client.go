package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	defaultTimeout         = 20 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpenFor  = 30 * time.Second
	maxErrorBody           = 1 << 12
)

// ErrBreakerOpen is returned while the endpoint breaker rejects calls.
var ErrBreakerOpen = errors.New("functions endpoint unavailable")

// StatusError is a non-2xx endpoint response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether the failure may clear on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// API is the storefront's view of the four endpoints.
type API interface {
	CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrder, error)
	GenerateInvoice(ctx context.Context, order types.OrderRecord) (*InvoiceResult, error)
	SendOrderConfirmation(ctx context.Context, order types.OrderRecord) error
	SendContactConfirmation(ctx context.Context, form types.ContactForm) error
}

// Client calls the endpoints over HTTP behind one breaker per endpoint.
type Client struct {
	baseURL  string
	token    string
	timeout  time.Duration
	http     *http.Client
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
	logg     *logger.Logger
}

// NewClient builds the endpoint client from config. A nil httpClient uses a default one.
func NewClient(cfg config.FunctionsConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("functions base url is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := cfg.BreakerOpenAfter
	if openFor <= 0 {
		openFor = defaultBreakerOpenFor
	}

	c := &Client{
		baseURL:  base,
		token:    strings.TrimSpace(cfg.Token),
		timeout:  timeout,
		http:     httpClient,
		breakers: map[string]*gobreaker.CircuitBreaker[[]byte]{},
		logg:     logg,
	}
	for _, path := range []string{PathCreatePaymentOrder, PathGenerateInvoice, PathSendOrderConfirmation, PathSendContactConfirmation} {
		c.breakers[path] = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    path,
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: isBreakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				if logg == nil {
					return
				}
				ctx := logg.WithFields(context.Background(), map[string]any{
					"endpoint": name,
					"from":     from.String(),
					"to":       to.String(),
				})
				logg.Warn(ctx, "functions breaker state changed")
			},
		})
	}
	return c, nil
}

func (c *Client) CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrder, error) {
	var out PaymentOrder
	if err := c.post(ctx, PathCreatePaymentOrder, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%s: response missing id", PathCreatePaymentOrder)
	}
	return &out, nil
}

func (c *Client) GenerateInvoice(ctx context.Context, order types.OrderRecord) (*InvoiceResult, error) {
	var out InvoiceResult
	if err := c.post(ctx, PathGenerateInvoice, OrderDetailsRequest{OrderDetails: &order}, &out); err != nil {
		return nil, err
	}
	if out.StoragePath == "" {
		return nil, fmt.Errorf("%s: response missing storagePath", PathGenerateInvoice)
	}
	return &out, nil
}

func (c *Client) SendOrderConfirmation(ctx context.Context, order types.OrderRecord) error {
	var out SuccessResult
	if err := c.post(ctx, PathSendOrderConfirmation, OrderDetailsRequest{OrderDetails: &order}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%s: not acknowledged", PathSendOrderConfirmation)
	}
	return nil
}

func (c *Client) SendContactConfirmation(ctx context.Context, form types.ContactForm) error {
	var out SuccessResult
	if err := c.post(ctx, PathSendContactConfirmation, ContactRequest{FormDetails: &form}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%s: not acknowledged", PathSendContactConfirmation)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	breaker := c.breakers[path]
	body, err := breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", path, ErrBreakerOpen)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logg != nil {
			c.logg.WarnErr(ctx, "failed to close functions response body", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// isBreakerSuccess keeps client errors from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Temporary()
	}
	return false
}

func errorMessage(body []byte) string {
	var parsed ErrorResult
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

var _ API = (*Client)(nil)
