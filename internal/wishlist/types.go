package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/angelmondragon/storefront-backend/internal/products"
)

// WishlistItemDTO wraps the product included in a wishlist row.
type WishlistItemDTO struct {
	Product   product.ProductDTO `json:"product"`
	CreatedAt time.Time          `json:"createdAt"`
}

// WishlistItemsPageDTO returns a cursor-paginated wishlist view.
type WishlistItemsPageDTO struct {
	Items      []WishlistItemDTO `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// WishlistIDsDTO is a lightweight projection containing only product IDs.
type WishlistIDsDTO struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}
