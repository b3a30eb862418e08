package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a reviews repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a review. The (product_id, user_id) constraint rejects a second review.
func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(review).Error
}

// ListByProduct returns up to limit reviews for the product, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	tx := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if cursor != nil {
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Review
	err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Summary is the aggregate rating for a product.
type Summary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// SummaryByProduct computes count and mean rating.
func (r *Repository) SummaryByProduct(ctx context.Context, productID uuid.UUID) (Summary, error) {
	var out Summary
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("product_id = ?", productID).
		Scan(&out).
		Error
	return out, err
}
