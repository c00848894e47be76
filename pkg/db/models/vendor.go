package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the storefront profile of a seller.
type Vendor struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID `gorm:"column:user_id;type:uuid"`
	Name            string     `gorm:"column:name;not null"`
	Image           string     `gorm:"column:image;not null;default:'vendors.jpg'"`
	CoverImage      string     `gorm:"column:cover_image;not null;default:'vendors.jpg'"`
	Description     *string    `gorm:"column:description"`
	Address         string     `gorm:"column:address;not null;default:''"`
	Contact         string     `gorm:"column:contact;not null;default:''"`
	ChatRespTime    string     `gorm:"column:chat_resp_time;not null;default:'100'"`
	ShippingOnTime  string     `gorm:"column:shipping_on_time;not null;default:'100'"`
	AuthenticRating string     `gorm:"column:authentic_rating;not null;default:'100'"`
	DaysReturn      string     `gorm:"column:days_return;not null;default:'100'"`
	WarrantyPeriod  string     `gorm:"column:warranty_period;not null;default:'100'"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
