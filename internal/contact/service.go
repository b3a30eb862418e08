package contact

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const maxMessageLength = 5000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubmitInput is a contact form submission.
type SubmitInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Message string `json:"message" validate:"required"`
}

// Receipt acknowledges a stored submission.
type Receipt struct {
	ID          uuid.UUID `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Service stores contact queries and queues their confirmation emails.
type Service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
}

// NewService builds the contact service.
func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact repository is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	return &Service{repo: repo, tx: tx, outbox: emitter}, nil
}

// Submit stores the query and emits contact.submitted in the same transaction.
func (s *Service) Submit(ctx context.Context, userID *uuid.UUID, input SubmitInput) (*Receipt, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	message := strings.TrimSpace(input.Message)
	phone := strings.TrimSpace(input.Phone)

	fields := pkgerrors.FieldErrors{}
	if name == "" {
		fields["name"] = "is required"
	}
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		fields["email"] = "must be a valid email"
	}
	if message == "" {
		fields["message"] = "is required"
	} else if len(message) > maxMessageLength {
		fields["message"] = "is too long"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid contact form", fields)
	}

	query := &models.ContactQuery{
		ID:      uuid.New(),
		UserID:  userID,
		Name:    name,
		Email:   email,
		Message: message,
	}
	if phone != "" {
		query.Phone = &phone
	}

	submittedAt := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, query); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store contact query")
		}
		var actor *outbox.ActorRef
		if userID != nil {
			actor = &outbox.ActorRef{UserID: *userID, Role: string(enums.UserRoleCustomer)}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContactSubmitted,
			AggregateType: enums.AggregateContactQuery,
			AggregateID:   query.ID,
			Actor:         actor,
			OccurredAt:    submittedAt,
			Data: payloads.ContactSubmittedEvent{
				ContactQueryID: query.ID,
				Name:           name,
				Email:          email,
				Phone:          phone,
				Message:        message,
				SubmittedAt:    submittedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &Receipt{ID: query.ID, SubmittedAt: submittedAt}, nil
}
