package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ProfileService exposes profile reads and edits for the signed-in user.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateProfileDTO) (*UserDTO, error)
}

type profileService struct {
	repo *Repository
}

// NewProfileService builds a profile service over the users repository.
func NewProfileService(repo *Repository) (ProfileService, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "users repo is required")
	}
	return &profileService{repo: repo}, nil
}

func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return FromModel(user), nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, input UpdateProfileDTO) (*UserDTO, error) {
	if input.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields supplied")
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, pkgerrors.Validation("invalid profile", pkgerrors.FieldErrors{"name": "name must not be blank"})
		}
		input.Name = &trimmed
	}
	if input.Phone != nil {
		trimmed := strings.TrimSpace(*input.Phone)
		input.Phone = &trimmed
	}

	user, err := s.repo.UpdateProfile(ctx, userID, input)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return FromModel(user), nil
}

func mapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
