package product

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ProductRepository defines catalog persistence operations.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindLiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID, at time.Time) error
	ListProducts(ctx context.Context, query ListQuery) ([]models.Product, error)
}

// ListQuery is a resolved keyset query over live products.
type ListQuery struct {
	Sort        enums.ProductSort
	Limit       int
	Cursor      *pagination.Cursor
	PriceCursor *pagination.PriceCursor
}

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product, including soft-deleted rows.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindLiveByIDs loads the non-deleted products among ids.
func (r *Repository) FindLiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&rows).
		Error
	return rows, err
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// SoftDeleteProduct hides a product from the catalog while keeping it for order history.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("deleted_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListProducts returns up to query.Limit live products in the requested order.
func (r *Repository) ListProducts(ctx context.Context, query ListQuery) ([]models.Product, error) {
	tx := r.db.WithContext(ctx).Model(&models.Product{}).Where("deleted_at IS NULL")

	switch query.Sort {
	case enums.ProductSortLowToHigh:
		if c := query.PriceCursor; c != nil {
			tx = tx.Where("(price > ?) OR (price = ? AND id > ?)", c.Price, c.Price, c.ID)
		}
		tx = tx.Order("price ASC").Order("id ASC")
	case enums.ProductSortHighToLow:
		if c := query.PriceCursor; c != nil {
			tx = tx.Where("(price < ?) OR (price = ? AND id < ?)", c.Price, c.Price, c.ID)
		}
		tx = tx.Order("price DESC").Order("id DESC")
	default:
		if c := query.Cursor; c != nil {
			tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
		}
		tx = tx.Order("created_at DESC").Order("id DESC")
	}

	var rows []models.Product
	if err := tx.Limit(query.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
