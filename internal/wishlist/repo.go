package wishlist

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a wishlist entry and ignores duplicates.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil || productID == uuid.Nil {
		return gorm.ErrInvalidValue
	}

	item := models.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&item).
		Error
}

// RemoveItem deletes the user-product like if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{}).
		Error
}

type wishlistRow struct {
	models.Product
	WishlistID        uuid.UUID `gorm:"column:wishlist_id"`
	WishlistCreatedAt time.Time `gorm:"column:wishlist_created_at"`
}

// ListItems returns a paginated list of live wishlist products for a user.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, cursor string, limit int) (WishlistItemsPageDTO, error) {
	normalizedLimit := pagination.NormalizeLimit(limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(cursor))
	if err != nil {
		return WishlistItemsPageDTO{}, err
	}

	dataQuery := r.db.WithContext(ctx).
		Table("wishlist_items wi").
		Select("p.*, wi.id AS wishlist_id, wi.created_at AS wishlist_created_at").
		Joins("JOIN products p ON p.id = wi.product_id").
		Where("wi.user_id = ? AND p.deleted_at IS NULL", userID)

	if decodedCursor != nil {
		dataQuery = dataQuery.Where("(wi.created_at < ?) OR (wi.created_at = ? AND wi.id < ?)", decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var records []wishlistRow
	if err := dataQuery.
		Order("wi.created_at DESC").
		Order("wi.id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Scan(&records).Error; err != nil {
		return WishlistItemsPageDTO{}, err
	}

	page := WishlistItemsPageDTO{}
	if len(records) > normalizedLimit {
		records = records[:normalizedLimit]
		last := records[len(records)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.WishlistCreatedAt,
			ID:        last.WishlistID,
		})
	}

	page.Items = make([]WishlistItemDTO, 0, len(records))
	for i := range records {
		page.Items = append(page.Items, WishlistItemDTO{
			Product:   product.FromModel(&records[i].Product),
			CreatedAt: records[i].WishlistCreatedAt,
		})
	}
	return page, nil
}

// ListItemIDs returns every liked product id for the user, newest first.
func (r *Repository) ListItemIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("product_id", &ids).
		Error
	return ids, err
}
