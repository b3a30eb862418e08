package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	analyticstypes "github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/products"
	pkgauth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, _ := m.IncrWithTTL(ctx, "rl:"+scope, window)
	return count <= limit, count, nil
}

type stubProducts struct {
	products.Service
}

func (stubProducts) ListProducts(ctx context.Context, input products.ListProductsInput) (*products.ProductListResult, error) {
	return &pagination.Page[products.ProductDTO]{Items: []products.ProductDTO{{ID: uuid.New(), Title: "Kurta"}}}, nil
}

type stubAnalytics struct{}

func (stubAnalytics) Summary(ctx context.Context, req analyticstypes.SalesQueryRequest) (*analyticstypes.SalesSummary, error) {
	return &analyticstypes.SalesSummary{}, nil
}

type stubPayments struct{}

func (stubPayments) CreatePaymentOrder(ctx context.Context, req functions.CreatePaymentOrderRequest) (*functions.PaymentOrder, error) {
	return &functions.PaymentOrder{ID: "order_1", Amount: req.Amount.Shift(2).IntPart(), Currency: req.Currency}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: "http://localhost:3000"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15},
		RateLimit: config.RateLimitConfig{
			Window:        time.Minute,
			CheckoutLimit: 30,
			FormsLimit:    2,
		},
		Functions: config.FunctionsConfig{Token: "fn-token"},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "shopper@example.com",
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func newTestRouter(store Store) (http.Handler, *config.Config) {
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	handler := NewRouter(cfg, logg, store, prometheus.NewRegistry(), map[string]controllers.Pinger{}, APIServices{
		Sessions:  stubSessions{},
		Products:  stubProducts{},
		Analytics: stubAnalytics{},
	})
	return handler, cfg
}

func TestHealthLiveRoute(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=newest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAccountRoutesRequireAuth(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	for _, path := range []string{"/api/v1/profile", "/api/v1/cart", "/api/v1/orders", "/api/v1/wishlist"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestCheckoutStartRequiresIdempotencyKey(t *testing.T) {
	router, cfg := newTestRouter(newMemoryStore())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Idempotency-Key") {
		t.Fatalf("expected idempotency error, got %s", rec.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router, cfg := newTestRouter(newMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/sales", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/sales", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFormsAreRateLimited(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/newsletter", strings.NewReader(`{"email":"asha@example.com"}`))
		req.Header.Set("Idempotency-Key", uuid.NewString())
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding the forms budget, got %d", last)
	}
}

func TestFunctionsRouterRequiresServiceToken(t *testing.T) {
	cfg := testConfig()
	router := NewFunctionsRouter(cfg, nil, FunctionServices{Payments: stubPayments{}})
	body := `{"amount":"499.00","currency":"INR","receipt":"receipt_web_1"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, functions.PathCreatePaymentOrder, strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, functions.PathCreatePaymentOrder, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer fn-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"amount":49900`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestStripeWebhookRouteIsPublic(t *testing.T) {
	router, _ := newTestRouter(newMemoryStore())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusNotFound {
		t.Fatalf("webhook route should be mounted without auth, got %d", rec.Code)
	}
}
