package catalog

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ProductSummaryDTO is the card shape used by listings.
type ProductSummaryDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Image              string     `json:"image"`
	Price              string     `json:"price"`
	OldPrice           string     `json:"old_price"`
	DiscountPercentage int        `json:"discount_percentage"`
	InStock            bool       `json:"in_stock"`
	Featured           bool       `json:"featured"`
	CategoryID         *uuid.UUID `json:"category_id,omitempty"`
	VendorID           *uuid.UUID `json:"vendor_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CategoryDTO is a browsable category.
type CategoryDTO struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Image string    `json:"image"`
}

// VendorDTO is the public vendor profile.
type VendorDTO struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Image           string    `json:"image"`
	CoverImage      string    `json:"cover_image"`
	Description     *string   `json:"description,omitempty"`
	Address         string    `json:"address"`
	Contact         string    `json:"contact"`
	ChatRespTime    string    `json:"chat_resp_time"`
	ShippingOnTime  string    `json:"shipping_on_time"`
	AuthenticRating string    `json:"authentic_rating"`
	DaysReturn      string    `json:"days_return"`
	WarrantyPeriod  string    `json:"warranty_period"`
}

// TagDTO is a product label.
type TagDTO struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ReviewDTO is one customer review.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Review    string    `json:"review"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductDetailDTO is the full product page payload.
type ProductDetailDTO struct {
	ProductSummaryDTO
	Description   *string             `json:"description,omitempty"`
	Specification *string             `json:"specification,omitempty"`
	SKU           string              `json:"sku"`
	Digital       bool                `json:"digital"`
	Images        []string            `json:"images"`
	Tags          []TagDTO            `json:"tags"`
	Category      *CategoryDTO        `json:"category,omitempty"`
	Vendor        *VendorDTO          `json:"vendor,omitempty"`
	Related       []ProductSummaryDTO `json:"related"`
	Reviews       []ReviewDTO         `json:"reviews"`
	AverageRating float64             `json:"average_rating"`
	ReviewCount   int64               `json:"review_count"`
	MakeReview    bool                `json:"make_review"`
}

// HomeDTO is the storefront landing payload.
type HomeDTO struct {
	Featured   []ProductSummaryDTO `json:"featured"`
	Categories []CategoryDTO       `json:"categories"`
}

// ProductPageDTO is one page of the product listing.
type ProductPageDTO struct {
	Items      []ProductSummaryDTO `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// CategoryDetailDTO is a category and its products.
type CategoryDetailDTO struct {
	Category CategoryDTO         `json:"category"`
	Products []ProductSummaryDTO `json:"products"`
}

// VendorDetailDTO is a vendor and its products.
type VendorDetailDTO struct {
	Vendor   VendorDTO           `json:"vendor"`
	Products []ProductSummaryDTO `json:"products"`
}

// SearchResultDTO answers a search query.
type SearchResultDTO struct {
	Query    string              `json:"query"`
	Products []ProductSummaryDTO `json:"products"`
	Total    int64               `json:"total"`
}

// NewProductSummaryDTO maps a product row to its listing card.
func NewProductSummaryDTO(p models.Product) ProductSummaryDTO {
	return ProductSummaryDTO{
		ID:                 p.ID,
		Title:              p.Title,
		Image:              p.Image,
		Price:              p.Price.StringFixed(2),
		OldPrice:           p.OldPrice.StringFixed(2),
		DiscountPercentage: p.DiscountPercentage(),
		InStock:            p.InStock,
		Featured:           p.Featured,
		CategoryID:         p.CategoryID,
		VendorID:           p.VendorID,
		CreatedAt:          p.CreatedAt,
	}
}

func newProductSummaries(rows []models.Product) []ProductSummaryDTO {
	out := make([]ProductSummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewProductSummaryDTO(row))
	}
	return out
}

func newCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Title: c.Title, Image: c.Image}
}

func newVendorDTO(v models.Vendor) VendorDTO {
	return VendorDTO{
		ID:              v.ID,
		Name:            v.Name,
		Image:           v.Image,
		CoverImage:      v.CoverImage,
		Description:     v.Description,
		Address:         v.Address,
		Contact:         v.Contact,
		ChatRespTime:    v.ChatRespTime,
		ShippingOnTime:  v.ShippingOnTime,
		AuthenticRating: v.AuthenticRating,
		DaysReturn:      v.DaysReturn,
		WarrantyPeriod:  v.WarrantyPeriod,
	}
}

func newProductDetailDTO(p *models.Product) *ProductDetailDTO {
	detail := &ProductDetailDTO{
		ProductSummaryDTO: NewProductSummaryDTO(*p),
		Description:       p.Description,
		Specification:     p.Specification,
		SKU:               p.SKU,
		Digital:           p.Digital,
		Images:            make([]string, 0, len(p.Images)),
		Tags:              make([]TagDTO, 0, len(p.Tags)),
		Related:           []ProductSummaryDTO{},
		Reviews:           []ReviewDTO{},
	}
	for _, img := range p.Images {
		detail.Images = append(detail.Images, img.Image)
	}
	for _, tag := range p.Tags {
		detail.Tags = append(detail.Tags, TagDTO{Name: tag.Name, Slug: tag.Slug})
	}
	if p.Category != nil {
		category := newCategoryDTO(*p.Category)
		detail.Category = &category
	}
	if p.Vendor != nil {
		vendor := newVendorDTO(*p.Vendor)
		detail.Vendor = &vendor
	}
	return detail
}
