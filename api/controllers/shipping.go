package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/shippingrates"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ShippingRates exposes the effective per-method shipping costs.
type ShippingRates interface {
	List(ctx context.Context) []shippingrates.RateDTO
	Set(ctx context.Context, method enums.ShippingMethod, cost decimal.Decimal) error
}

type setShippingRateRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

func ShippingRateList(svc ShippingRates, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping rates unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.List(r.Context()))
	}
}

// AdminSetShippingRate overrides the configured cost of one shipping method.
func AdminSetShippingRate(svc ShippingRates, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping rates unavailable"))
			return
		}

		method, err := enums.ParseShippingMethod(chi.URLParam(r, "method"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("invalid shipping method", pkgerrors.FieldErrors{"method": err.Error()}))
			return
		}

		var body setShippingRateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Set(r.Context(), method, body.Cost); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.List(r.Context()))
	}
}
