package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// WishlistList returns the shopper's wishlist newest first, cursor paginated.
func WishlistList(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := func() (wishlist.ItemsPageDTO, error) {
			if svc == nil {
				return wishlist.ItemsPageDTO{}, unavailable("wishlist")
			}
			userID, err := requireUser(r.Context())
			if err != nil {
				return wishlist.ItemsPageDTO{}, err
			}
			params, err := paginationParams(r)
			if err != nil {
				return wishlist.ItemsPageDTO{}, err
			}
			return svc.GetWishlist(r.Context(), userID, params)
		}()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// WishlistAddItem adds ?id= to the wishlist. Adding a product twice is not an error.
func WishlistAddItem(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return wishlistMutation(svc, logg, func(ctx context.Context, userID, productID uuid.UUID) (any, error) {
		return svc.AddItem(ctx, userID, productID)
	})
}

func WishlistRemoveItem(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return wishlistMutation(svc, logg, func(ctx context.Context, userID, productID uuid.UUID) (any, error) {
		count, err := svc.RemoveItem(ctx, userID, productID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": true, "count": count}, nil
	})
}

// wishlistMutation resolves the shopper and the ?id= product before apply runs.
func wishlistMutation(svc wishlist.Service, logg *logger.Logger, apply func(context.Context, uuid.UUID, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, unavailable("wishlist"))
			return
		}
		userID, err := requireUser(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := validators.FormUUID(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := apply(ctx, userID, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
