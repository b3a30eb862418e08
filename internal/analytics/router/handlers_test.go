package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestOrderPlacedWritesFact(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)
	orderID := uuid.New()
	userID := uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	env := envelopeFor(t, enums.EventOrderPlaced, occurred, payloads.OrderPlacedEvent{
		OrderID:     orderID,
		OrderNumber: "#K&K1001",
		UserID:      userID,
		Total:       decimal.RequireFromString("1420.50"),
		Currency:    enums.CurrencyINR,
		Shipping:    enums.ShippingMethodExpress,
		ItemCount:   3,
		Simulated:   true,
		PlacedAt:    occurred,
	})
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.EventID != env.EventID || row.EventType != "order.placed" || !row.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope fields %+v", row)
	}
	if row.OrderID == nil || *row.OrderID != orderID.String() {
		t.Fatalf("unexpected order id %v", row.OrderID)
	}
	if row.TotalCents == nil || *row.TotalCents != 142050 {
		t.Fatalf("unexpected total cents %v", row.TotalCents)
	}
	if row.ItemCount == nil || *row.ItemCount != 3 {
		t.Fatalf("unexpected item count %v", row.ItemCount)
	}
	if row.Status == nil || *row.Status != "processing" {
		t.Fatalf("unexpected status %v", row.Status)
	}
	if row.ShippingMethod == nil || *row.ShippingMethod != string(enums.ShippingMethodExpress) {
		t.Fatalf("unexpected shipping method %v", row.ShippingMethod)
	}
	if !row.Simulated {
		t.Fatal("expected simulated flag to carry through")
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json")
	}
}

func TestPaymentFailedWritesFact(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)

	env := envelopeFor(t, enums.EventOrderPaymentFailed, time.Now().UTC(), payloads.OrderPaymentFailedEvent{
		FailedOrderID:  uuid.New(),
		OrderNumber:    "#K&K1002",
		UserID:         uuid.New(),
		PaymentOrderID: "order_123",
		Total:          decimal.NewFromInt(800),
		Reason:         "payment cancelled by customer",
	})
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	row := writer.inserted[0]
	if row.Status == nil || *row.Status != "failed" {
		t.Fatalf("unexpected status %v", row.Status)
	}
	if row.FailureReason == nil || *row.FailureReason != "payment cancelled by customer" {
		t.Fatalf("unexpected reason %v", row.FailureReason)
	}
	if row.TotalCents == nil || *row.TotalCents != 80000 {
		t.Fatalf("unexpected total %v", row.TotalCents)
	}
}

func TestStatusChangedWritesFact(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)

	env := envelopeFor(t, enums.EventOrderStatusChanged, time.Now().UTC(), payloads.OrderStatusChangedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "#K&K1001",
		From:        enums.OrderStatusProcessing,
		To:          enums.OrderStatusSuccess,
	})
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	row := writer.inserted[0]
	if row.Status == nil || *row.Status != "success" {
		t.Fatalf("unexpected status %v", row.Status)
	}
	if row.PreviousStatus == nil || *row.PreviousStatus != "processing" {
		t.Fatalf("unexpected previous status %v", row.PreviousStatus)
	}
	if row.UserID != nil {
		t.Fatalf("expected nil user id for zero uuid, got %v", *row.UserID)
	}
}

func TestHandlerPropagatesWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bigquery down")}
	router := newTestRouter(t, writer, nil)

	env := envelopeFor(t, enums.EventOrderPlaced, time.Now().UTC(), payloads.OrderPlacedEvent{OrderID: uuid.New()})
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected writer error")
	}
}

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, occurred time.Time, payload any) types.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return types.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.NewString(),
		OccurredAt:    occurred,
		Payload:       data,
	}
}
