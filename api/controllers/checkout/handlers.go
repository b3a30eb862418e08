package checkout

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Start snapshots the cart into a new checkout attempt.
func Start(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.StartRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.StartAttempt(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func Get(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return attemptHandler(svc, logg, func(r *http.Request, userID, attemptID uuid.UUID) (any, error) {
		return svc.GetAttempt(r.Context(), userID, attemptID)
	})
}

// SubmitDetails records the customer block and moves the attempt to review.
func SubmitDetails(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return attemptHandler(svc, logg, func(r *http.Request, userID, attemptID uuid.UUID) (any, error) {
		var payload checkoutsvc.DetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SubmitDetails(r.Context(), userID, attemptID, payload)
	})
}

// InitiatePayment reserves the order number and opens the gateway payment order.
func InitiatePayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return attemptHandler(svc, logg, func(r *http.Request, userID, attemptID uuid.UUID) (any, error) {
		return svc.InitiatePayment(r.Context(), userID, attemptID)
	})
}

// Confirm verifies the gateway result and places the order.
func Confirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return attemptHandler(svc, logg, func(r *http.Request, userID, attemptID uuid.UUID) (any, error) {
		var payload checkoutsvc.ConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ConfirmPayment(r.Context(), userID, attemptID, payload)
	})
}

// Abandon records that the customer closed the payment sheet.
func Abandon(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return attemptHandler(svc, logg, func(r *http.Request, userID, attemptID uuid.UUID) (any, error) {
		var payload checkoutsvc.AbandonRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.AbandonPayment(r.Context(), userID, attemptID, payload)
	})
}

func attemptHandler(svc checkoutsvc.Service, logg *logger.Logger, fn func(r *http.Request, userID, attemptID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attemptID, err := validators.ParseUUIDParam(r, "attemptID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			r = r.WithContext(logg.WithAttemptID(r.Context(), attemptID.String()))
		}

		result, err := fn(r, userID, attemptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
