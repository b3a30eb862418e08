package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubCartService struct {
	cart       *cartsvc.CartDTO
	err        error
	lastUser   uuid.UUID
	lastLine   uuid.UUID
	lastQty    int
	lastAdd    cartsvc.AddItemInput
	lastQuote  cartsvc.QuoteInput
	clearCalls int
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	s.lastAdd = input
	return s.cart, s.err
}

func (s *stubCartService) SetQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.lastLine = lineID
	s.lastQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastLine = lineID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.clearCalls++
	return s.err
}

func (s *stubCartService) RemoveOrdered(ctx context.Context, userID uuid.UUID, ordered types.OrderLines) error {
	return s.err
}

func (s *stubCartService) Quote(ctx context.Context, userID uuid.UUID, input cartsvc.QuoteInput) (*cartsvc.QuoteDTO, error) {
	s.lastQuote = input
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.QuoteDTO{ShippingMethod: input.ShippingMethod}, nil
}

func (s *stubCartService) Snapshot(ctx context.Context, userID uuid.UUID) (types.OrderLines, error) {
	return nil, s.err
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchRequiresUser(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	stub := &stubCartService{cart: &cartsvc.CartDTO{ItemCount: 2, Subtotal: decimal.NewFromInt(900)}}
	handler := CartFetch(stub, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if stub.lastUser != userID {
		t.Fatalf("expected cart lookup for %s, got %s", userID, stub.lastUser)
	}
	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ItemCount != 2 {
		t.Fatalf("expected 2 items, got %d", envelope.Data.ItemCount)
	}
}

func TestCartAddItemRejectsBadQuantity(t *testing.T) {
	stub := &stubCartService{cart: &cartsvc.CartDTO{}}
	handler := CartAddItem(stub, nil)

	body := `{"productId":"` + uuid.NewString() + `","quantity":0}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCartAddItemPassesOptions(t *testing.T) {
	stub := &stubCartService{cart: &cartsvc.CartDTO{}}
	handler := CartAddItem(stub, nil)

	productID := uuid.New()
	body := `{"productId":"` + productID.String() + `","quantity":2,"options":[{"name":"Color","value":"Blue"}]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.lastAdd.ProductID != productID || stub.lastAdd.Quantity != 2 {
		t.Fatalf("unexpected add input %+v", stub.lastAdd)
	}
	if len(stub.lastAdd.Options) != 1 {
		t.Fatalf("expected one option selection, got %d", len(stub.lastAdd.Options))
	}
}

func TestCartSetQuantityParsesLine(t *testing.T) {
	stub := &stubCartService{cart: &cartsvc.CartDTO{}}
	handler := CartSetQuantity(stub, nil)
	lineID := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+lineID.String(), strings.NewReader(`{"quantity":3}`))
	req = withParam(withUser(req, uuid.New()), "lineID", lineID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if stub.lastLine != lineID || stub.lastQty != 3 {
		t.Fatalf("expected line %s qty 3, got %s qty %d", lineID, stub.lastLine, stub.lastQty)
	}
}

func TestCartRemoveItemRejectsBadLineID(t *testing.T) {
	handler := CartRemoveItem(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/nope", nil)
	req = withParam(withUser(req, uuid.New()), "lineID", "nope")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCartClearReturnsNoContent(t *testing.T) {
	stub := &stubCartService{}
	handler := CartClear(stub, nil)
	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if stub.clearCalls != 1 {
		t.Fatalf("expected one clear call, got %d", stub.clearCalls)
	}
}

func TestCartQuoteForwardsCouponAndMethod(t *testing.T) {
	stub := &stubCartService{}
	handler := CartQuote(stub, nil)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", strings.NewReader(`{"discountCode":"SAVE10","shippingMethod":"express"}`)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if stub.lastQuote.DiscountCode != "SAVE10" || stub.lastQuote.ShippingMethod != enums.ShippingMethodExpress {
		t.Fatalf("unexpected quote input %+v", stub.lastQuote)
	}
}

func TestCartQuoteSurfacesServiceErrors(t *testing.T) {
	stub := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "coupon expired")}
	handler := CartQuote(stub, nil)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", strings.NewReader(`{"discountCode":"OLD"}`)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
