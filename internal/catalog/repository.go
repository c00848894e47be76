package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	relatedLimit  = 4
	featuredLimit = 12
	searchLimit   = 50
)

// Repository reads catalog rows. Every listing is restricted to published products.
type Repository struct {
	db *gorm.DB
}

// ReviewStats aggregates the ratings left on one product.
type ReviewStats struct {
	Average float64
	Count   int64
}

// NewRepository binds the repository to the provided gorm connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) published(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("products.product_status = ?", enums.ProductStatusPublished)
}

// ListFeatured returns featured published products newest first.
func (r *Repository) ListFeatured(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = featuredLimit
	}
	var rows []models.Product
	err := r.published(ctx).
		Where("products.featured = ?", true).
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListPublished pages through published products newest first, optionally filtered by a
// tag slug. The returned cursor is empty on the last page.
func (r *Repository) ListPublished(ctx context.Context, params pagination.Params, tagSlug string) ([]models.Product, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	query := r.published(ctx)
	if slug := strings.TrimSpace(tagSlug); slug != "" {
		query = query.
			Joins("JOIN product_tags pt ON pt.product_id = products.id").
			Joins("JOIN tags t ON t.id = pt.tag_id").
			Where("t.slug = ?", slug)
	}
	if cursor != nil {
		query = query.Where("(products.created_at < ?) OR (products.created_at = ? AND products.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := query.
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return rows, next, nil
}

// FindPublished loads one published product with its gallery, tags, vendor and category.
func (r *Repository) FindPublished(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.published(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Tags").
		Preload("Vendor").
		Preload("Category").
		First(&product, "products.id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindPublishedByIDs loads the published subset of ids in no particular order.
func (r *Repository) FindPublishedByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.published(ctx).Where("products.id IN ?", ids).Find(&rows).Error
	return rows, err
}

// ListRelated returns other published products of the same category.
func (r *Repository) ListRelated(ctx context.Context, categoryID, excludeID uuid.UUID, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = relatedLimit
	}
	var rows []models.Product
	err := r.published(ctx).
		Where("products.category_id = ? AND products.id <> ?", categoryID, excludeID).
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByCategory returns the published products of a category newest first.
func (r *Repository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.published(ctx).
		Where("products.category_id = ?", categoryID).
		Order("products.created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListByVendor returns the published products of a vendor newest first.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.published(ctx).
		Where("products.vendor_id = ?", vendorID).
		Order("products.created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListIndexable pages through published products by id with category and vendor
// loaded, for the search index.
func (r *Repository) ListIndexable(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Product, error) {
	q := r.published(ctx).Preload("Category").Preload("Vendor")
	if afterID != uuid.Nil {
		q = q.Where("products.id > ?", afterID)
	}
	var rows []models.Product
	err := q.Order("products.id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListUnpublishedIDs returns the ids of products hidden from the storefront.
func (r *Repository) ListUnpublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_status <> ?", enums.ProductStatusPublished).
		Pluck("id", &ids).Error
	return ids, err
}

// SearchTitle matches published products whose title contains q, ignoring case.
func (r *Repository) SearchTitle(ctx context.Context, q string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = searchLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	var rows []models.Product
	err := r.published(ctx).
		Where(`LOWER(products.title) LIKE ? ESCAPE '\'`, pattern).
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListReviews returns the reviews of a product newest first.
func (r *Repository) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	var rows []models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ReviewStats returns the average rating and review count of a product.
func (r *Repository) ReviewStats(ctx context.Context, productID uuid.UUID) (ReviewStats, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return ReviewStats{}, err
	}
	stats := ReviewStats{Count: row.Count}
	if row.Average != nil {
		stats.Average = *row.Average
	}
	return stats, nil
}

// HasReviewed reports whether the user already reviewed the product.
func (r *Repository) HasReviewed(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListCategories returns every category alphabetically.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("title ASC").Find(&rows).Error
	return rows, err
}

// FindCategory loads a category by id.
func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListVendors returns every vendor alphabetically.
func (r *Repository) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	var rows []models.Vendor
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// FindVendor loads a vendor by id.
func (r *Repository) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
