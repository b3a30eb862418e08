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

type paymentFailedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPaymentFailedHandler(writer Writer, logg *logger.Logger) Handler {
	return &paymentFailedHandler{writer: writer, logg: logg}
}

func (h *paymentFailedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderPaymentFailedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", enums.EventOrderPaymentFailed)
	}

	logCtx := h.logg.WithOrderNumber(ctx, event.OrderNumber)
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order fact row", err)
		return fmt.Errorf("encode payload json: %w", err)
	}

	row := types.OrderFactRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt,
		OrderID:       uuidPtr(event.FailedOrderID),
		OrderNumber:   stringPtr(event.OrderNumber),
		UserID:        uuidPtr(event.UserID),
		Status:        stringPtr(string(enums.OrderStatusFailed)),
		TotalCents:    centsPtr(event.Total),
		FailureReason: stringPtr(event.Reason),
		Payload:       payloadJSON,
	}
	if err := h.writer.InsertOrderFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order fact row", err)
		return err
	}

	h.logg.Info(logCtx, "order.payment_failed fact recorded")
	return nil
}
