package wishlist

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a wishlist entry and ignores duplicates. It reports whether a row was
// created.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return false, gorm.ErrInvalidValue
	}

	item := models.WishlistItem{ID: uuid.New(), UserID: userID, ProductID: productID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveItem deletes the user-product entry if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{}).
		Error
}

// Count returns how many products the user has saved.
func (r *Repository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("user_id = ?", userID).
		Count(&count).
		Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListItems returns a cursor-paginated page of saved products, newest save first.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, params pagination.Params) (ItemsPageDTO, error) {
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ItemsPageDTO{}, err
	}

	selectColumns := []string{
		"wi.id AS wishlist_id",
		"wi.created_at AS wishlist_created_at",
		"p.id AS product_id",
		"p.title",
		"p.image",
		"p.price",
		"p.old_price",
		"p.in_stock",
		"p.featured",
		"p.category_id",
		"p.vendor_id",
		"p.created_at AS product_created_at",
	}

	dataQuery := r.db.WithContext(ctx).
		Table("wishlist_items wi").
		Select(strings.Join(selectColumns, ", ")).
		Joins("JOIN products p ON p.id = wi.product_id").
		Where("wi.user_id = ?", userID)

	if decodedCursor != nil {
		dataQuery = dataQuery.Where("(wi.created_at < ?) OR (wi.created_at = ? AND wi.id < ?)", decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	dataQuery = dataQuery.Order("wi.created_at DESC").Order("wi.id DESC").Limit(pagination.LimitWithBuffer(params.Limit))

	var records []wishlistProductRecord
	if err := dataQuery.Scan(&records).Error; err != nil {
		return ItemsPageDTO{}, err
	}

	resultRows, nextCursor := pagination.Trim(records, params.Limit, func(rec wishlistProductRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rec.WishlistCreatedAt, ID: rec.WishlistID}
	})

	items := make([]ItemDTO, 0, len(resultRows))
	for _, record := range resultRows {
		items = append(items, record.toDTO())
	}

	total, err := r.Count(ctx, userID)
	if err != nil {
		return ItemsPageDTO{}, err
	}

	return ItemsPageDTO{
		Items:      items,
		Total:      int(total),
		NextCursor: nextCursor,
	}, nil
}

type wishlistProductRecord struct {
	WishlistID        uuid.UUID       `gorm:"column:wishlist_id"`
	WishlistCreatedAt time.Time       `gorm:"column:wishlist_created_at"`
	ID                uuid.UUID       `gorm:"column:product_id"`
	Title             string          `gorm:"column:title"`
	Image             string          `gorm:"column:image"`
	Price             decimal.Decimal `gorm:"column:price"`
	OldPrice          decimal.Decimal `gorm:"column:old_price"`
	InStock           bool            `gorm:"column:in_stock"`
	Featured          bool            `gorm:"column:featured"`
	CategoryID        *uuid.UUID      `gorm:"column:category_id"`
	VendorID          *uuid.UUID      `gorm:"column:vendor_id"`
	CreatedAt         time.Time       `gorm:"column:product_created_at"`
}

func (r wishlistProductRecord) toDTO() ItemDTO {
	return ItemDTO{
		Product: catalog.NewProductSummaryDTO(models.Product{
			ID:         r.ID,
			Title:      r.Title,
			Image:      r.Image,
			Price:      r.Price,
			OldPrice:   r.OldPrice,
			InStock:    r.InStock,
			Featured:   r.Featured,
			CategoryID: r.CategoryID,
			VendorID:   r.VendorID,
			CreatedAt:  r.CreatedAt,
		}),
		CreatedAt: r.WishlistCreatedAt,
	}
}
