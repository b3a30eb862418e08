package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/contact"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/newsletter"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shippingrates"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubProducts struct {
	lastList    productsvc.ListProductsInput
	lastIsAdmin bool
	deleted     uuid.UUID
	err         error
}

func (s *stubProducts) ListProducts(ctx context.Context, input productsvc.ListProductsInput) (*productsvc.ProductListResult, error) {
	s.lastList = input
	if s.err != nil {
		return nil, s.err
	}
	return &productsvc.ProductListResult{Items: []productsvc.ProductDTO{{ID: uuid.New(), Title: "Kurta"}}}, nil
}

func (s *stubProducts) GetProduct(ctx context.Context, productID uuid.UUID, isAdmin bool) (*productsvc.ProductDTO, error) {
	s.lastIsAdmin = isAdmin
	if s.err != nil {
		return nil, s.err
	}
	return &productsvc.ProductDTO{ID: productID, Title: "Kurta"}, nil
}

func (s *stubProducts) CreateProduct(ctx context.Context, input productsvc.CreateProductInput) (*productsvc.ProductDTO, error) {
	return &productsvc.ProductDTO{ID: uuid.New()}, s.err
}

func (s *stubProducts) UpdateProduct(ctx context.Context, productID uuid.UUID, input productsvc.UpdateProductInput) (*productsvc.ProductDTO, error) {
	return &productsvc.ProductDTO{ID: productID}, s.err
}

func (s *stubProducts) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	s.deleted = productID
	return s.err
}

type stubContact struct {
	userID *uuid.UUID
	input  contact.SubmitInput
}

func (s *stubContact) Submit(ctx context.Context, userID *uuid.UUID, input contact.SubmitInput) (*contact.Receipt, error) {
	s.userID = userID
	s.input = input
	return &contact.Receipt{ID: uuid.New(), SubmittedAt: time.Now()}, nil
}

type stubNewsletter struct {
	existing bool
}

func (s *stubNewsletter) Subscribe(ctx context.Context, email string) (*newsletter.Subscription, error) {
	return &newsletter.Subscription{Email: email, Subscribed: true, Existing: s.existing}, nil
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error {
	return s.err
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

func TestProductListParsesSortAndLimit(t *testing.T) {
	stub := &stubProducts{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=lowToHigh&limit=12", nil)
	rec := httptest.NewRecorder()
	ProductList(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastList.Sort != enums.ProductSortLowToHigh {
		t.Fatalf("expected lowToHigh sort, got %q", stub.lastList.Sort)
	}
	if stub.lastList.Pagination.Limit != 12 {
		t.Fatalf("expected limit 12, got %d", stub.lastList.Pagination.Limit)
	}
}

func TestProductListRejectsUnknownSort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=random", nil)
	rec := httptest.NewRecorder()
	ProductList(&stubProducts{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestProductDetailAdminFlag(t *testing.T) {
	stub := &stubProducts{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/x", nil)
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleAdmin)))
	req = withParam(req, "productID", uuid.NewString())
	rec := httptest.NewRecorder()
	ProductDetail(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !stub.lastIsAdmin {
		t.Fatal("expected admin visibility")
	}
}

func TestProductDetailNotFound(t *testing.T) {
	stub := &stubProducts{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/x", nil), "productID", uuid.NewString())
	rec := httptest.NewRecorder()
	ProductDetail(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProductDetailRejectsBadID(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/x", nil), "productID", "not-a-uuid")
	rec := httptest.NewRecorder()
	ProductDetail(&stubProducts{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminDeleteProductNoContent(t *testing.T) {
	stub := &stubProducts{}
	id := uuid.New()
	req := withParam(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/x", nil), "productID", id.String())
	rec := httptest.NewRecorder()
	AdminDeleteProduct(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if stub.deleted != id {
		t.Fatalf("expected %s deleted, got %s", id, stub.deleted)
	}
}

func TestProductHandlersWithoutService(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	ProductList(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestContactSubmitAnonymous(t *testing.T) {
	stub := &stubContact{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(`{"name":"Asha","email":"asha@example.com","message":"Do you ship abroad?"}`))
	rec := httptest.NewRecorder()
	ContactSubmit(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.userID != nil {
		t.Fatal("expected anonymous submission")
	}
	if stub.input.Email != "asha@example.com" {
		t.Fatalf("unexpected input %+v", stub.input)
	}
}

func TestContactSubmitLinksSignedInUser(t *testing.T) {
	stub := &stubContact{}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(`{"name":"Asha","email":"asha@example.com","message":"Hi"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	ContactSubmit(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if stub.userID == nil || *stub.userID != userID {
		t.Fatalf("expected user %s linked, got %v", userID, stub.userID)
	}
}

func TestContactSubmitValidatesEmail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(`{"name":"Asha","email":"nope","message":"Hi"}`))
	rec := httptest.NewRecorder()
	ContactSubmit(&stubContact{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestNewsletterSubscribeStatus(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
		want     int
	}{
		{name: "new subscriber", existing: false, want: http.StatusCreated},
		{name: "already subscribed", existing: true, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/newsletter", strings.NewReader(`{"email":"asha@example.com"}`))
			rec := httptest.NewRecorder()
			NewsletterSubscribe(&stubNewsletter{existing: tt.existing}, nil).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Storefront-Env") != "test" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-Storefront-Env"))
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"redis": stubPinger{err: errors.New("down")}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type stubShipping struct {
	method enums.ShippingMethod
	cost   decimal.Decimal
}

func (s *stubShipping) List(ctx context.Context) []shippingrates.RateDTO {
	return []shippingrates.RateDTO{{Method: enums.ShippingMethodStandard, Cost: decimal.NewFromInt(300)}}
}

func (s *stubShipping) Set(ctx context.Context, method enums.ShippingMethod, cost decimal.Decimal) error {
	s.method = method
	s.cost = cost
	return nil
}

func TestAdminSetShippingRate(t *testing.T) {
	stub := &stubShipping{}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/shipping-rates/express", strings.NewReader(`{"cost":"950"}`))
	req = withParam(req, "method", "express")
	rec := httptest.NewRecorder()
	AdminSetShippingRate(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.method != enums.ShippingMethodExpress || !stub.cost.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("unexpected override %s=%s", stub.method, stub.cost)
	}
}

func TestAdminSetShippingRateRejectsUnknownMethod(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodPut, "/api/v1/admin/shipping-rates/drone", strings.NewReader(`{"cost":"10"}`)), "method", "drone")
	rec := httptest.NewRecorder()
	AdminSetShippingRate(&stubShipping{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type stubMedia struct {
	productID uuid.UUID
	input     media.PresignInput
}

func (s *stubMedia) PresignProductImage(ctx context.Context, productID uuid.UUID, input media.PresignInput) (*media.PresignOutput, error) {
	s.productID = productID
	s.input = input
	return &media.PresignOutput{ObjectKey: "products/" + productID.String() + "/a.png", UploadURL: "https://signed.example"}, nil
}

func TestAdminPresignProductImage(t *testing.T) {
	stub := &stubMedia{}
	productID := uuid.New()
	body := `{"fileName":"a.png","mimeType":"image/png","sizeBytes":2048}`
	req := withParam(httptest.NewRequest(http.MethodPost, "/api/v1/admin/products/"+productID.String()+"/images", strings.NewReader(body)), "productID", productID.String())
	rec := httptest.NewRecorder()
	AdminPresignProductImage(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.productID != productID || stub.input.SizeBytes != 2048 {
		t.Fatalf("unexpected presign call %s %+v", stub.productID, stub.input)
	}
	if !strings.Contains(rec.Body.String(), "https://signed.example") {
		t.Fatalf("missing upload url in %s", rec.Body.String())
	}
}

func TestAdminPresignProductImageRejectsBadProductID(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodPost, "/api/v1/admin/products/nope/images", strings.NewReader(`{}`)), "productID", "nope")
	rec := httptest.NewRecorder()
	AdminPresignProductImage(&stubMedia{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
