package address

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists saved shipping addresses.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds an address repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns the user's addresses, most recently used first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ShippingAddress, error) {
	var rows []models.ShippingAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// FindForUser loads one address owned by the user.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.ShippingAddress, error) {
	var row models.ShippingAddress
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts an address.
func (r *Repository) Create(ctx context.Context, row *models.ShippingAddress) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// Save writes every column of an existing address.
func (r *Repository) Save(ctx context.Context, row *models.ShippingAddress) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// Delete removes an address owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.ShippingAddress{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Touch bumps updated_at so the address sorts first next time.
func (r *Repository) Touch(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ShippingAddress{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("updated_at", at).
		Error
}
