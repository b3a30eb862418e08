package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	env := types.Envelope{
		EventType: enums.EventContactSubmitted,
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRoutesToHandler(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, &fakeWriter{}, map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced: handler,
	})
	data, _ := json.Marshal(payloads.OrderPlacedEvent{OrderID: uuid.New(), OrderNumber: "#K&K1001"})
	env := types.Envelope{
		EventType: enums.EventOrderPlaced,
		Payload:   data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	decoded, ok := handler.payload.(*payloads.OrderPlacedEvent)
	if !ok || decoded.OrderNumber != "#K&K1001" {
		t.Fatalf("unexpected decoded payload %#v", handler.payload)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPlaced})
	if err == nil {
		t.Fatal("expected error for empty payload")
	}
	if errors.Is(err, ErrUnsupportedEventType) {
		t.Fatal("empty payload should not be reported as unsupported")
	}
}

func newTestRouter(t *testing.T, writer Writer, overrides map[enums.OutboxEventType]Handler) *Router {
	t.Helper()
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}
