package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing. OldPrice is the strike-through price used to
// derive the advertised discount.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string              `gorm:"column:title;not null"`
	Image         string              `gorm:"column:image;not null;default:'products.jpg'"`
	Description   *string             `gorm:"column:description"`
	Specification *string             `gorm:"column:specification"`
	CategoryID    *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	VendorID      *uuid.UUID          `gorm:"column:vendor_id;type:uuid"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	OldPrice      decimal.Decimal     `gorm:"column:old_price;type:numeric(12,2);not null;default:0"`
	ProductStatus enums.ProductStatus `gorm:"column:product_status;type:text;not null;default:'in_review'"`
	Status        bool                `gorm:"column:status;not null;default:true"`
	InStock       bool                `gorm:"column:in_stock;not null;default:true"`
	Featured      bool                `gorm:"column:featured;not null;default:false"`
	Digital       bool                `gorm:"column:digital;not null;default:false"`
	SKU           string              `gorm:"column:sku;not null;uniqueIndex:products_sku_key"`
	Category      *Category           `gorm:"foreignKey:CategoryID"`
	Vendor        *Vendor             `gorm:"foreignKey:VendorID"`
	Images        []ProductImage      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Tags          []Tag               `gorm:"many2many:product_tags;joinForeignKey:ProductID;joinReferences:TagID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     *time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountPercentage returns the whole-number markdown from OldPrice to Price.
// Listings without a positive OldPrice report 0.
func (p Product) DiscountPercentage() int {
	if !p.OldPrice.IsPositive() {
		return 0
	}
	pct := p.OldPrice.Sub(p.Price).Div(p.OldPrice).Mul(decimal.NewFromInt(100))
	return int(pct.IntPart())
}

// ProductImage is an additional gallery image for a product.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:product_images_product_id_idx"`
	Image     string    `gorm:"column:image;not null;default:'product.jpg'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
