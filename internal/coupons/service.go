package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type couponFinder interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Resolver turns a customer supplied code into the coupon applied by pricing.
type Resolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*pricing.Coupon, error)
}

type resolver struct {
	repo couponFinder
	now  func() time.Time
}

// NewResolver builds a coupon resolver.
func NewResolver(repo couponFinder) (Resolver, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon repo is required")
	}
	return &resolver{repo: repo, now: time.Now}, nil
}

// Resolve returns nil for a blank code. Unknown, inactive, expired or
// under-minimum coupons are validation errors on the discountCode field.
func (r *resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*pricing.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	row, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("coupon code not recognised")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	now := r.now()
	switch {
	case !row.IsActive:
		return nil, invalid("coupon is no longer active")
	case row.ValidFrom != nil && now.Before(*row.ValidFrom):
		return nil, invalid("coupon is not active yet")
	case row.ExpiresAt != nil && !now.Before(*row.ExpiresAt):
		return nil, invalid("coupon has expired")
	case !row.Kind.IsValid():
		return nil, invalid("coupon is misconfigured")
	case subtotal.LessThan(row.MinOrderValue):
		return nil, invalid("order does not meet the coupon minimum of " + row.MinOrderValue.StringFixed(2))
	}

	return &pricing.Coupon{Code: row.Code, Kind: row.Kind, Value: row.Value}, nil
}

func invalid(msg string) error {
	return pkgerrors.Validation("invalid coupon", pkgerrors.FieldErrors{"discountCode": msg})
}
