package address

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AddressDTO is a saved address as returned to the customer.
type AddressDTO struct {
	ID uuid.UUID `json:"id"`
	types.PostalAddress
	Label     *string   `json:"label,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddressInput is the body for creating or replacing an address.
type AddressInput struct {
	Label      *string `json:"label" validate:"omitempty,max=60"`
	Address    string  `json:"address" validate:"required,max=300"`
	City       string  `json:"city" validate:"required,max=120"`
	State      string  `json:"state" validate:"required,max=120"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,max=80"`
}

// Service manages a user's saved shipping addresses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// Resolve loads an address for checkout and marks it as most recently used.
	Resolve(ctx context.Context, userID, id uuid.UUID) (types.PostalAddress, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the address service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address repo is required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	row, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	row := &models.ShippingAddress{UserID: userID}
	apply(row, input)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	row, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	apply(row, input)
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}

func (s *service) Resolve(ctx context.Context, userID, id uuid.UUID) (types.PostalAddress, error) {
	row, err := s.find(ctx, userID, id)
	if err != nil {
		return types.PostalAddress{}, err
	}
	if err := s.repo.Touch(ctx, userID, id, s.now()); err != nil {
		return types.PostalAddress{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch address")
	}
	return row.Postal(), nil
}

func (s *service) find(ctx context.Context, userID, id uuid.UUID) (*models.ShippingAddress, error) {
	row, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return row, nil
}

func validate(input AddressInput) error {
	fields := pkgerrors.FieldErrors{}
	required := map[string]string{
		"address":    input.Address,
		"city":       input.City,
		"state":      input.State,
		"postalCode": input.PostalCode,
		"country":    input.Country,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[field] = field + " is required"
		}
	}
	if len(fields) > 0 {
		return pkgerrors.Validation("invalid address", fields)
	}
	return nil
}

func apply(row *models.ShippingAddress, input AddressInput) {
	row.Label = nil
	if input.Label != nil {
		if label := strings.TrimSpace(*input.Label); label != "" {
			row.Label = &label
		}
	}
	row.Address = strings.TrimSpace(input.Address)
	row.City = strings.TrimSpace(input.City)
	row.State = strings.TrimSpace(input.State)
	row.PostalCode = strings.TrimSpace(input.PostalCode)
	row.Country = strings.TrimSpace(input.Country)
}

func toDTO(row *models.ShippingAddress) AddressDTO {
	return AddressDTO{
		ID:            row.ID,
		PostalAddress: row.Postal(),
		Label:         row.Label,
		UpdatedAt:     row.UpdatedAt,
	}
}
