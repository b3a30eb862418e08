package product

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
)

const skuConstraint = "idx_products_sku"

// Service exposes catalog browsing and admin product management.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, productID uuid.UUID, isAdmin bool) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
}

type service struct {
	repo ProductRepository
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo ProductRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	sort := input.Sort
	if sort == "" {
		sort = enums.ProductSortNewest
	}
	if !sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	query := ListQuery{Sort: sort, Limit: limit + 1}

	var err error
	if sort == enums.ProductSortNewest {
		query.Cursor, err = pagination.ParseCursor(input.Pagination.Cursor)
	} else {
		query.PriceCursor, err = pagination.ParsePriceCursor(input.Pagination.Cursor)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListProducts(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ProductListResult{Items: make([]ProductDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		if sort == enums.ProductSortNewest {
			result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		} else {
			result.NextCursor = pagination.EncodePriceCursor(pagination.PriceCursor{Price: last.Price, ID: last.ID})
		}
		rows = rows[:limit]
	}
	for i := range rows {
		result.Items = append(result.Items, FromModel(&rows[i]))
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID, isAdmin bool) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsureProductVisible(product, isAdmin); err != nil {
		return nil, err
	}
	dto := FromModel(product)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validatePrices(input.Price, input.DiscountPrice); err != nil {
		return nil, err
	}
	if err := validateOptions(input.Options); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, input.toModel())
	if err != nil {
		return nil, mapWriteErr(err, "create product")
	}
	dto := FromModel(created)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.DeletedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is deleted")
	}

	applyUpdateToProduct(product, input)
	if product.Title == "" {
		return nil, pkgerrors.Validation("invalid product", pkgerrors.FieldErrors{"title": "title is required"})
	}
	if err := validatePrices(product.Price, product.DiscountPrice); err != nil {
		return nil, err
	}
	if err := validateOptions(product.Options); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, mapWriteErr(err, "update product")
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if err := s.repo.SoftDeleteProduct(ctx, productID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func validatePrices(price, discount decimal.Decimal) error {
	fields := pkgerrors.FieldErrors{}
	if price.IsNegative() {
		fields["price"] = "price must be zero or greater"
	}
	if discount.IsNegative() {
		fields["discountPrice"] = "discountPrice must be zero or greater"
	} else if discount.IsPositive() && discount.GreaterThanOrEqual(price) {
		fields["discountPrice"] = "discountPrice must be lower than price"
	}
	if len(fields) > 0 {
		return pkgerrors.Validation("invalid product pricing", fields)
	}
	return nil
}

func validateOptions(options []types.ProductOption) error {
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if opt.Name == "" || len(opt.Values) == 0 {
			return pkgerrors.Validation("invalid product options", pkgerrors.FieldErrors{"options": "each option needs a name and at least one value"})
		}
		if _, dup := seen[opt.Name]; dup {
			return pkgerrors.Validation("invalid product options", pkgerrors.FieldErrors{"options": "duplicate option " + opt.Name})
		}
		seen[opt.Name] = struct{}{}
	}
	return nil
}

func mapWriteErr(err error, msg string) error {
	if db.IsUniqueViolation(err, skuConstraint) {
		return pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
