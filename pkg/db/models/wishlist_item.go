package models

import (
	"time"

	"github.com/google/uuid"
)

// WishlistItem is one saved product. A shopper saves a product at most once;
// wishlist_items_user_product_key enforces it.
type WishlistItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }
