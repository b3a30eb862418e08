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

type statusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &statusChangedHandler{writer: writer, logg: logg}
}

func (h *statusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", enums.EventOrderStatusChanged)
	}

	logCtx := h.logg.WithFields(h.logg.WithOrderNumber(ctx, event.OrderNumber), map[string]any{
		"from": event.From,
		"to":   event.To,
	})
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order fact row", err)
		return fmt.Errorf("encode payload json: %w", err)
	}

	row := types.OrderFactRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     envelope.OccurredAt,
		OrderID:        uuidPtr(event.OrderID),
		OrderNumber:    stringPtr(event.OrderNumber),
		UserID:         uuidPtr(event.UserID),
		Status:         stringPtr(string(event.To)),
		PreviousStatus: stringPtr(string(event.From)),
		Payload:        payloadJSON,
	}
	if err := h.writer.InsertOrderFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order fact row", err)
		return err
	}

	h.logg.Info(logCtx, "order.status_changed fact recorded")
	return nil
}
