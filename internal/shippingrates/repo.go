package shippingrates

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads and writes shipping rate overrides.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a shipping rates repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns every stored override.
func (r *Repository) List(ctx context.Context) ([]models.ShippingRate, error) {
	var rows []models.ShippingRate
	err := r.db.WithContext(ctx).Order("method ASC").Find(&rows).Error
	return rows, err
}

// Upsert stores the cost for a method.
func (r *Repository) Upsert(ctx context.Context, rate models.ShippingRate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "method"}},
			DoUpdates: clause.AssignmentColumns([]string{"cost", "updated_at"}),
		}).
		Create(&rate).
		Error
}
