package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products for browsing.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title     string    `gorm:"column:title;not null"`
	Image     string    `gorm:"column:image;not null;default:'category.jpg'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
