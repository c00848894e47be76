package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductReview is a 1..5 star rating with text.
type ProductReview struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:product_reviews_product_id_idx"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Review    string    `gorm:"column:review;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
