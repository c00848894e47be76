package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CreateCheckoutSession opens a Stripe Checkout session for an unpaid order.
func CreateCheckoutSession(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("payment"))
			return
		}
		userID, err := requireUser(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		publicID := chi.URLParam(r, "orderPublicId")
		if publicID == "" {
			responses.WriteError(ctx, logg, w, validators.RequiredField("orderPublicId"))
			return
		}
		session, err := svc.CreateCheckoutSession(ctx, userID, publicID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// PaymentCompleted is Stripe's success redirect, carrying ?session_id=. Marking paid is
// idempotent so reloads and a racing webhook are harmless.
func PaymentCompleted(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("payment"))
			return
		}
		userID, err := requireUser(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		publicID := chi.URLParam(r, "orderPublicId")
		if publicID == "" {
			responses.WriteError(ctx, logg, w, validators.RequiredField("orderPublicId"))
			return
		}
		order, err := svc.Complete(ctx, userID, publicID, r.URL.Query().Get("session_id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func PaymentFailed(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("payment"))
			return
		}
		responses.WriteSuccess(w, svc.Failed(ctx))
	}
}
