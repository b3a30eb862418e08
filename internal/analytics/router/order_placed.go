package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type orderPlacedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderPlacedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderPlacedHandler{writer: writer, logg: logg}
}

func (h *orderPlacedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderPlacedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", enums.EventOrderPlaced)
	}

	logCtx := h.logg.WithOrderNumber(ctx, event.OrderNumber)
	row, err := buildOrderPlacedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order fact row", err)
		return err
	}
	if err := h.writer.InsertOrderFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order fact row", err)
		return err
	}

	h.logg.Info(logCtx, "order.placed fact recorded")
	return nil
}

func buildOrderPlacedRow(envelope types.Envelope, event *payloads.OrderPlacedEvent) (types.OrderFactRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.OrderFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.OrderFactRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     envelope.OccurredAt,
		OrderID:        uuidPtr(event.OrderID),
		OrderNumber:    stringPtr(event.OrderNumber),
		UserID:         uuidPtr(event.UserID),
		Status:         stringPtr(string(enums.OrderStatusProcessing)),
		ShippingMethod: stringPtr(string(event.Shipping)),
		Currency:       stringPtr(string(event.Currency)),
		TotalCents:     centsPtr(event.Total),
		ItemCount:      int64Ptr(int64(event.ItemCount)),
		Simulated:      event.Simulated,
		Payload:        payloadJSON,
	}, nil
}
