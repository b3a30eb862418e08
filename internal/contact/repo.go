package contact

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists contact form submissions.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a contact repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, query *models.ContactQuery) error {
	if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(query).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContactQuery, error) {
	var query models.ContactQuery
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&query).Error; err != nil {
		return nil, err
	}
	return &query, nil
}

// MarkConfirmationSent stamps the first successful confirmation only.
func (r *Repository) MarkConfirmationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ContactQuery{}).
		Where("id = ? AND confirmation_sent_at IS NULL", id).
		Update("confirmation_sent_at", at).
		Error
}
