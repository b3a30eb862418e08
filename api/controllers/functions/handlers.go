package functions

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/validators"
	fn "github.com/angelmondragon/storefront-backend/internal/functions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// PaymentOrderCreator opens payment orders with the gateway.
type PaymentOrderCreator interface {
	CreatePaymentOrder(ctx context.Context, req fn.CreatePaymentOrderRequest) (*fn.PaymentOrder, error)
}

// InvoiceGenerator renders and stores order invoices.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order *types.OrderRecord) (*fn.InvoiceResult, error)
}

type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, order *types.OrderRecord) error
}

type ContactMailer interface {
	SendContactConfirmation(ctx context.Context, form *types.ContactForm) error
}

// CreatePaymentOrder opens a gateway payment order for the given amount and receipt.
func CreatePaymentOrder(svc PaymentOrderCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body fn.CreatePaymentOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreatePaymentOrder(r.Context(), body)
		if err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// GenerateInvoice renders the order's PDF invoice and stores it.
func GenerateInvoice(svc InvoiceGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		var body fn.OrderDetailsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), body.OrderDetails)
		if err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// SendOrderConfirmation emails the order summary to the customer.
func SendOrderConfirmation(svc OrderMailer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mailer unavailable"))
			return
		}

		var body fn.OrderDetailsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SendOrderConfirmation(r.Context(), body.OrderDetails); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}
		writeJSON(w, http.StatusOK, fn.SuccessResult{Success: true})
	}
}

// SendContactConfirmation relays a contact form to the store and the sender.
func SendContactConfirmation(svc ContactMailer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mailer unavailable"))
			return
		}

		var body fn.ContactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SendContactConfirmation(r.Context(), body.FormDetails); err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}
		writeJSON(w, http.StatusOK, fn.SuccessResult{Success: true})
	}
}

// writeError answers with the flat {"error": "..."} body the endpoint client expects.
func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "internal error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	message := typed.Message()
	if message == "" {
		message = meta.PublicMessage
	}

	if logg != nil {
		logCtx := logg.WithField(ctx, "error_code", string(typed.Code()))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(logCtx, "functions.request.error", err)
		} else {
			logg.WarnErr(logCtx, "functions.request.rejected", err)
		}
	}
	writeJSON(w, meta.HTTPStatus, fn.ErrorResult{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
