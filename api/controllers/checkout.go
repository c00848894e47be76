package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type checkoutInfoRequest struct {
	FullName string `json:"full_name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone" validate:"required,max=100"`
	Address  string `json:"address" validate:"required,notblank,max=100"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=100"`
	Country  string `json:"country" validate:"required,max=100"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

// CheckoutViewDTO is the checkout page payload.
type CheckoutViewDTO struct {
	Order                *orders.OrderDTO `json:"order"`
	StripePublishableKey string           `json:"stripe_publishable_key,omitempty"`
}

// SaveCheckoutInfo turns the session cart into an order for the signed-in shopper and
// points the client at the checkout page for it.
func SaveCheckoutInfo(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("order"))
			return
		}
		userID, err := requireUser(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		session, err := requireCartSession(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutInfoRequest
		if err := validators.DecodeBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Create(ctx, orders.CreateInput{
			UserID:  userID,
			Session: session,
			Info: orders.CheckoutInfo{
				FullName: req.FullName,
				Email:    req.Email,
				Phone:    req.Phone,
				Address:  req.Address,
				City:     req.City,
				State:    req.State,
				Country:  req.Country,
			},
		})
		if err != nil {
			writeFailure(w, r, logg, err)
			return
		}

		location := "/checkout/" + order.PublicID
		if responses.WantsHTML(r) {
			responses.Redirect(w, r, location)
			return
		}
		responses.WriteCreated(w, location, order)
	}
}

// CheckoutView shows the shopper's order with its lines and applied coupons.
func CheckoutView(svc orders.Service, publishableKey string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("order"))
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
		order, err := svc.GetByPublicID(ctx, userID, publicID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, CheckoutViewDTO{Order: order, StripePublishableKey: publishableKey})
	}
}

// CheckoutApplyCoupon applies {code} to the order. Rejections are business-rule errors and
// leave the order untouched.
func CheckoutApplyCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("coupon"))
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

		var req applyCouponRequest
		if err := validators.DecodeBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		code := validators.SanitizeString(req.Code, 50)
		if code == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"code": "is required"}))
			return
		}

		result, err := svc.Apply(ctx, userID, publicID, code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
