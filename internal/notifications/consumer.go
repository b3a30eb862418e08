package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const contactConfirmationConsumer = "contact-confirmations"

type contactSender interface {
	SendContactConfirmation(ctx context.Context, form types.ContactForm) error
}

type contactMarker interface {
	MarkConfirmationSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// idempotencyGuard is satisfied by *idempotency.Manager.
type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ContactConsumer turns contact.submitted events into confirmation emails.
type ContactConsumer struct {
	sender       contactSender
	contacts     contactMarker
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
	now          func() time.Time
}

// NewContactConsumer builds a contact confirmation consumer.
func NewContactConsumer(sender contactSender, contacts contactMarker, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*ContactConsumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("contact sender required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("contact subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ContactConsumer{
		sender:       sender,
		contacts:     contacts,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *ContactConsumer) Run(ctx context.Context) error {
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

func (c *ContactConsumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := attrs["event_type"]
	fields := map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventContactSubmitted) {
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, contactConfirmationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.ContactSubmittedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "contact_query_id", payload.ContactQueryID.String())

	form := types.ContactForm{
		Name:    payload.Name,
		Email:   payload.Email,
		Phone:   payload.Phone,
		Message: payload.Message,
	}
	if err := c.sender.SendContactConfirmation(ctx, form); err != nil {
		c.logg.Error(logCtx, "contact confirmation failed", err)
		_ = c.idempotency.Delete(ctx, contactConfirmationConsumer, eventID)
		return processResult{nack: true}
	}

	if err := c.contacts.MarkConfirmationSent(ctx, payload.ContactQueryID, c.now().UTC()); err != nil {
		c.logg.WarnErr(logCtx, "failed to record contact confirmation", err)
	}
	c.logg.Info(logCtx, "contact confirmation sent")
	return processResult{ack: true}
}
