package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the read side of the storefront catalog.
type Service interface {
	Home(ctx context.Context) (*HomeDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductPageDTO, error)
	ProductDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*ProductDetailDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CategoryDetail(ctx context.Context, id uuid.UUID) (*CategoryDetailDTO, error)
	ListVendors(ctx context.Context) ([]VendorDTO, error)
	VendorDetail(ctx context.Context, id uuid.UUID) (*VendorDetailDTO, error)
	Search(ctx context.Context, q string) (*SearchResultDTO, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*ProductSummaryDTO, error)
}

// ListProductsInput carries the browse filters.
type ListProductsInput struct {
	Pagination pagination.Params
	TagSlug    string
}

// SearchBackend resolves a free-text query to product ids in relevance order.
type SearchBackend interface {
	SearchProducts(ctx context.Context, q string, size int) ([]uuid.UUID, int64, error)
}

type store interface {
	ListFeatured(ctx context.Context, limit int) ([]models.Product, error)
	ListPublished(ctx context.Context, params pagination.Params, tagSlug string) ([]models.Product, string, error)
	FindPublished(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindPublishedByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListRelated(ctx context.Context, categoryID, excludeID uuid.UUID, limit int) ([]models.Product, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
	SearchTitle(ctx context.Context, q string, limit int) ([]models.Product, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error)
	ReviewStats(ctx context.Context, productID uuid.UUID) (ReviewStats, error)
	HasReviewed(ctx context.Context, productID, userID uuid.UUID) (bool, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type service struct {
	repo   store
	search SearchBackend
	logg   *logger.Logger
}

// NewService builds the catalog service. search may be nil, in which case queries run
// against the database.
func NewService(repo store, search SearchBackend, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, search: search, logg: logg}, nil
}

func (s *service) Home(ctx context.Context) (*HomeDTO, error) {
	featured, err := s.repo.ListFeatured(ctx, featuredLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &HomeDTO{Featured: newProductSummaries(featured), Categories: categories}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductPageDTO, error) {
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListPublished(ctx, input.Pagination, input.TagSlug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ProductPageDTO{Items: newProductSummaries(rows), NextCursor: next}, nil
}

func (s *service) ProductDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*ProductDetailDTO, error) {
	product, err := s.repo.FindPublished(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	detail := newProductDetailDTO(product)

	if product.CategoryID != nil {
		related, err := s.repo.ListRelated(ctx, *product.CategoryID, product.ID, relatedLimit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list related products")
		}
		detail.Related = newProductSummaries(related)
	}

	reviews, err := s.repo.ListReviews(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	for _, review := range reviews {
		detail.Reviews = append(detail.Reviews, ReviewDTO{
			ID:        review.ID,
			UserID:    review.UserID,
			Review:    review.Review,
			Rating:    review.Rating,
			CreatedAt: review.CreatedAt,
		})
	}

	stats, err := s.repo.ReviewStats(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review stats")
	}
	detail.AverageRating = stats.Average
	detail.ReviewCount = stats.Count

	// Anonymous visitors are offered the form; signing in happens on submit.
	detail.MakeReview = true
	if viewer != nil && *viewer != uuid.Nil {
		reviewed, err := s.repo.HasReviewed(ctx, product.ID, *viewer)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
		}
		detail.MakeReview = !reviewed
	}
	return detail, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newCategoryDTO(row))
	}
	return out, nil
}

func (s *service) CategoryDetail(ctx context.Context, id uuid.UUID) (*CategoryDetailDTO, error) {
	category, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "category not found", "load category")
	}
	products, err := s.repo.ListByCategory(ctx, category.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list category products")
	}
	return &CategoryDetailDTO{Category: newCategoryDTO(*category), Products: newProductSummaries(products)}, nil
}

func (s *service) ListVendors(ctx context.Context) ([]VendorDTO, error) {
	rows, err := s.repo.ListVendors(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendors")
	}
	out := make([]VendorDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newVendorDTO(row))
	}
	return out, nil
}

func (s *service) VendorDetail(ctx context.Context, id uuid.UUID) (*VendorDetailDTO, error) {
	vendor, err := s.repo.FindVendor(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "vendor not found", "load vendor")
	}
	products, err := s.repo.ListByVendor(ctx, vendor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor products")
	}
	return &VendorDetailDTO{Vendor: newVendorDTO(*vendor), Products: newProductSummaries(products)}, nil
}

func (s *service) Search(ctx context.Context, q string) (*SearchResultDTO, error) {
	q = strings.TrimSpace(q)
	result := &SearchResultDTO{Query: q, Products: []ProductSummaryDTO{}}
	if q == "" {
		return result, nil
	}

	if s.search != nil {
		products, total, err := s.searchIndex(ctx, q)
		if err == nil {
			result.Products = products
			result.Total = total
			return result, nil
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog.search.index_unavailable")
		}
	}

	rows, err := s.repo.SearchTitle(ctx, q, searchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	result.Products = newProductSummaries(rows)
	result.Total = int64(len(rows))
	return result, nil
}

// searchIndex keeps the relevance order of the index and drops ids that are no longer
// published.
func (s *service) searchIndex(ctx context.Context, q string) ([]ProductSummaryDTO, int64, error) {
	ids, total, err := s.search.SearchProducts(ctx, q, searchLimit)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.repo.FindPublishedByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]ProductSummaryDTO, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, NewProductSummaryDTO(row))
		}
	}
	return out, total, nil
}

func (s *service) FindProduct(ctx context.Context, id uuid.UUID) (*ProductSummaryDTO, error) {
	product, err := s.repo.FindPublished(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	summary := NewProductSummaryDTO(*product)
	return &summary, nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
