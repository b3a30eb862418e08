package visibility

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// EnsureProductVisible hides soft-deleted products from everyone but admins.
func EnsureProductVisible(product *models.Product, isAdmin bool) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.DeletedAt != nil && !isAdmin {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// EnsurePurchasable rejects products that can no longer be added to a cart.
func EnsurePurchasable(product *models.Product) error {
	if err := EnsureProductVisible(product, false); err != nil {
		return err
	}
	if !product.EffectivePrice().IsPositive() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available for purchase")
	}
	return nil
}
