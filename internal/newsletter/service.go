package newsletter

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// SubscribeRequest is the newsletter signup payload.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Subscription reports the outcome of a signup.
type Subscription struct {
	Email      string `json:"email"`
	Subscribed bool   `json:"subscribed"`
	Existing   bool   `json:"existing"`
}

// Service manages newsletter subscribers.
type Service struct {
	db *gorm.DB
}

// NewService builds the newsletter service over db.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db is required")
	}
	return &Service{db: db}, nil
}

// Subscribe adds email to the list. Repeating a signup is not an error.
func (s *Service) Subscribe(ctx context.Context, email string) (*Subscription, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(normalized); normalized == "" || err != nil {
		return nil, pkgerrors.Validation("invalid email", pkgerrors.FieldErrors{"email": "must be a valid email"})
	}

	row := models.NewsletterSubscriber{ID: uuid.New(), Email: normalized}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "subscribe")
	}
	return &Subscription{Email: normalized, Subscribed: true, Existing: res.RowsAffected == 0}, nil
}
