package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
)

// ReviewDTO is the public review shape.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewsPage is a page of reviews with the product's rating summary.
type ReviewsPage struct {
	Items      []ReviewDTO `json:"items"`
	Summary    Summary     `json:"summary"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// CreateReviewInput is the body accepted when posting a review.
type CreateReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// Author identifies the signed-in reviewer.
type Author struct {
	UserID uuid.UUID
	Name   string
}

// Service exposes product review operations.
type Service interface {
	List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewsPage, error)
	Create(ctx context.Context, productID uuid.UUID, author Author, input CreateReviewInput) (*ReviewDTO, error)
}

// ServiceParams groups dependencies for the review service.
type ServiceParams struct {
	Repo        *Repository
	ProductRepo product.ProductRepository
}

type service struct {
	repo     *Repository
	products product.ProductRepository
}

// NewService builds the review service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviews repo is required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	return &service{repo: params.Repo, products: params.ProductRepo}, nil
}

func (s *service) List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewsPage, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByProduct(ctx, productID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	summary, err := s.repo.SummaryByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize reviews")
	}

	page := &ReviewsPage{Summary: summary}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	page.Items = make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		page.Items = append(page.Items, toDTO(&rows[i]))
	}
	return page, nil
}

func (s *service) Create(ctx context.Context, productID uuid.UUID, author Author, input CreateReviewInput) (*ReviewDTO, error) {
	comment := strings.TrimSpace(input.Comment)
	fields := pkgerrors.FieldErrors{}
	if input.Rating < 1 || input.Rating > 5 {
		fields["rating"] = "rating must be between 1 and 5"
	}
	if comment == "" {
		fields["comment"] = "comment is required"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid review", fields)
	}
	if author.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to review")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(author.Name)
	if name == "" {
		name = "Anonymous"
	}
	review := &models.Review{
		ProductID: productID,
		UserID:    author.UserID,
		UserName:  name,
		Rating:    input.Rating,
		Comment:   comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	dto := toDTO(review)
	return &dto, nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return visibility.EnsureProductVisible(p, false)
}

func toDTO(r *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserName:  r.UserName,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}
