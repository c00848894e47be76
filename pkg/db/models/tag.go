package models

import "github.com/google/uuid"

// Tag is a free-form label attached to products through product_tags.
type Tag struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
	Slug string    `gorm:"column:slug;not null;uniqueIndex:tags_slug_key"`
}

type ProductTag struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	TagID     uuid.UUID `gorm:"column:tag_id;type:uuid;primaryKey"`
}
