package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/contact"
	"github.com/angelmondragon/storefront-backend/internal/newsletter"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ContactSubmitter stores contact form submissions.
type ContactSubmitter interface {
	Submit(ctx context.Context, userID *uuid.UUID, input contact.SubmitInput) (*contact.Receipt, error)
}

// NewsletterSubscriber records newsletter signups.
type NewsletterSubscriber interface {
	Subscribe(ctx context.Context, email string) (*newsletter.Subscription, error)
}

// ContactSubmit stores a contact query; signed-in callers are linked to it.
func ContactSubmit(svc ContactSubmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}

		var body contact.SubmitInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var userID *uuid.UUID
		if id, ok := middleware.UserUUIDFromContext(r.Context()); ok {
			userID = &id
		}

		receipt, err := svc.Submit(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, receipt)
	}
}

func NewsletterSubscribe(svc NewsletterSubscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "newsletter service unavailable"))
			return
		}

		var body newsletter.SubscribeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Subscribe(r.Context(), body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if sub.Existing {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, sub)
	}
}
