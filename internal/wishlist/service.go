package wishlist

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

type productLookup interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductSummaryDTO, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	Products     productLookup
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (ItemsPageDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) (AddResultDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (int64, error)
}

type service struct {
	wishlistRepo *Repository
	products     productLookup
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wishlist repo is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product lookup is required")
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		products:     params.Products,
	}, nil
}

// GetWishlist returns the paginated wishlist for a user.
func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (ItemsPageDTO, error) {
	if err := ensureUser(userID); err != nil {
		return ItemsPageDTO{}, err
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return ItemsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.wishlistRepo.ListItems(ctx, userID, params)
	if err != nil {
		return ItemsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	return page, nil
}

// AddItem ensures the product exists and saves it. Adding a saved product again is a
// no-op reported with Created false.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) (AddResultDTO, error) {
	if err := ensureUser(userID); err != nil {
		return AddResultDTO{}, err
	}
	if productID == uuid.Nil {
		return AddResultDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if _, err := s.products.FindProduct(ctx, productID); err != nil {
		return AddResultDTO{}, err
	}
	created, err := s.wishlistRepo.AddItem(ctx, userID, productID)
	if err != nil {
		return AddResultDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}
	count, err := s.wishlistRepo.Count(ctx, userID)
	if err != nil {
		return AddResultDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count wishlist")
	}
	return AddResultDTO{Created: created, Count: count}, nil
}

// RemoveItem drops the wishlist entry regardless of prior state and returns the new count.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (int64, error) {
	if err := ensureUser(userID); err != nil {
		return 0, err
	}
	if err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	count, err := s.wishlistRepo.Count(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count wishlist")
	}
	return count, nil
}

func ensureUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return nil
}
