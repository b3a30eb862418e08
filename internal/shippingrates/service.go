package shippingrates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type rateStore interface {
	List(ctx context.Context) ([]models.ShippingRate, error)
	Upsert(ctx context.Context, rate models.ShippingRate) error
}

// RateDTO is the admin view of a shipping method's cost.
type RateDTO struct {
	Method enums.ShippingMethod `json:"method"`
	Cost   decimal.Decimal      `json:"cost"`
}

// Provider builds pricing engines from configured defaults plus stored overrides.
type Provider struct {
	base  *pricing.Engine
	store rateStore
	logg  *logger.Logger
}

// NewProvider constructs a provider over the configured engine.
func NewProvider(base *pricing.Engine, store rateStore, logg *logger.Logger) (*Provider, error) {
	if base == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing engine is required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate store is required")
	}
	return &Provider{base: base, store: store, logg: logg}, nil
}

// Engine returns the engine to price with. A failed override lookup degrades
// to configured defaults.
func (p *Provider) Engine(ctx context.Context) *pricing.Engine {
	rows, err := p.store.List(ctx)
	if err != nil {
		if p.logg != nil {
			p.logg.WarnErr(ctx, "shipping rate overrides unavailable; using configured rates", err)
		}
		return p.base
	}
	if len(rows) == 0 {
		return p.base
	}
	overrides := make(map[enums.ShippingMethod]decimal.Decimal, len(rows))
	for _, row := range rows {
		overrides[row.Method] = row.Cost
	}
	return p.base.WithShippingRates(overrides)
}

// List returns the effective cost of every shipping method.
func (p *Provider) List(ctx context.Context) []RateDTO {
	rates := p.Engine(ctx).Rates()
	out := make([]RateDTO, 0, len(rates.Shipping))
	for _, method := range []enums.ShippingMethod{enums.ShippingMethodStandard, enums.ShippingMethodExpress} {
		if cost, ok := rates.Shipping[method]; ok {
			out = append(out, RateDTO{Method: method, Cost: cost})
		}
	}
	return out
}

// Set stores an override after validating the method and cost.
func (p *Provider) Set(ctx context.Context, method enums.ShippingMethod, cost decimal.Decimal) error {
	if !method.IsValid() {
		return pkgerrors.Validation("invalid shipping rate", pkgerrors.FieldErrors{"method": "unknown shipping method"})
	}
	if cost.IsNegative() {
		return pkgerrors.Validation("invalid shipping rate", pkgerrors.FieldErrors{"cost": "cost must be zero or greater"})
	}
	if err := p.store.Upsert(ctx, models.ShippingRate{Method: method, Cost: cost}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store shipping rate")
	}
	return nil
}
