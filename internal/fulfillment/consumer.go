package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	consumerName = "order-fulfillment"
	defaultGrace = 2 * time.Minute
)

type orderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetInvoicePath(ctx context.Context, id uuid.UUID, path string) error
	MarkConfirmationSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type postProcessor interface {
	GenerateInvoice(ctx context.Context, order types.OrderRecord) (*functions.InvoiceResult, error)
	SendOrderConfirmation(ctx context.Context, order types.OrderRecord) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer finishes orders whose invoice or confirmation email did not go out
// during checkout.
type Consumer struct {
	orders       orderStore
	functions    postProcessor
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	grace        time.Duration
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds the order.placed consumer. Events younger than grace are
// nacked so the checkout request gets a chance to finish first.
func NewConsumer(repo orders.Repository, client functions.API, subscription *pubsub.Subscriber, manager *idempotency.Manager, grace time.Duration, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("functions client required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("fulfillment subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if grace <= 0 {
		grace = defaultGrace
	}
	return &Consumer{
		orders:       repo,
		functions:    client,
		subscription: subscription,
		idempotency:  manager,
		grace:        grace,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderPlaced) {
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := envelope.ParsedEventID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	var payload payloads.OrderPlacedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithOrderNumber(logCtx, payload.OrderNumber)

	if c.now().Sub(payload.PlacedAt) < c.grace {
		return processResult{nack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.complete(ctx, logCtx, payload.OrderID); err != nil {
		c.logg.Error(logCtx, "order post-processing retry failed", err)
		_ = c.idempotency.Delete(ctx, consumerName, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

// complete re-runs whichever post-payment step is still missing.
func (c *Consumer) complete(ctx, logCtx context.Context, orderID uuid.UUID) error {
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "placed order not found, skipping")
			return nil
		}
		return fmt.Errorf("load order: %w", err)
	}

	record := orders.ToRecord(*order)
	if order.InvoicePath == nil || *order.InvoicePath == "" {
		invoice, err := c.functions.GenerateInvoice(ctx, record)
		if err != nil {
			return fmt.Errorf("generate invoice: %w", err)
		}
		if err := c.orders.SetInvoicePath(ctx, order.ID, invoice.StoragePath); err != nil {
			return fmt.Errorf("record invoice path: %w", err)
		}
		record.InvoiceRef = invoice.StoragePath
		c.logg.Info(logCtx, "invoice generated out of band")
	}

	if order.ConfirmationSentAt == nil {
		if err := c.functions.SendOrderConfirmation(ctx, record); err != nil {
			return fmt.Errorf("send confirmation: %w", err)
		}
		if err := c.orders.MarkConfirmationSent(ctx, order.ID, c.now().UTC()); err != nil {
			c.logg.WarnErr(logCtx, "failed to record confirmation", err)
		}
		c.logg.Info(logCtx, "order confirmation sent out of band")
	}
	return nil
}
