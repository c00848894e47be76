package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// CheckoutInfo is the shipping contact captured before an order is created.
type CheckoutInfo struct {
	FullName string
	Email    string
	Phone    string
	Address  string
	City     string
	State    string
	Country  string
}

// CreateInput materializes the session's cart for the user.
type CreateInput struct {
	UserID  uuid.UUID
	Session string
	Info    CheckoutInfo
}

// LineItemDTO is an order line as returned to clients.
type LineItemDTO struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	InvoiceNo     string     `json:"invoice_no"`
	ProductStatus string     `json:"product_status"`
	Item          string     `json:"item"`
	Image         string     `json:"image"`
	Quantity      int        `json:"qty"`
	Price         string     `json:"price"`
	Total         string     `json:"total"`
}

// AppliedCouponDTO is a coupon already applied to an order.
type AppliedCouponDTO struct {
	Code     string `json:"code"`
	Discount int    `json:"discount"`
}

// OrderDTO is the order payload shared by checkout, dashboard and payment responses.
type OrderDTO struct {
	ID              uuid.UUID          `json:"id"`
	PublicID        string             `json:"public_id"`
	FullName        string             `json:"full_name"`
	Email           string             `json:"email"`
	Phone           string             `json:"phone"`
	Address         string             `json:"address"`
	City            string             `json:"city"`
	State           string             `json:"state"`
	Country         string             `json:"country"`
	Price           string             `json:"price"`
	Saved           string             `json:"saved"`
	Paid            bool               `json:"paid"`
	Status          string             `json:"status"`
	StripeSessionID *string            `json:"stripe_session_id,omitempty"`
	LineItems       []LineItemDTO      `json:"line_items"`
	Coupons         []AppliedCouponDTO `json:"coupons"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NewOrderDTO maps a loaded order, including whatever associations were preloaded.
func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		PublicID:        order.PublicID,
		FullName:        order.FullName,
		Email:           order.Email,
		Phone:           order.Phone,
		Address:         order.Address,
		City:            order.City,
		State:           order.State,
		Country:         order.Country,
		Price:           order.Price.StringFixed(2),
		Saved:           order.Saved.StringFixed(2),
		Paid:            order.Paid,
		Status:          order.Status.String(),
		StripeSessionID: order.StripeSessionID,
		LineItems:       make([]LineItemDTO, 0, len(order.LineItems)),
		Coupons:         make([]AppliedCouponDTO, 0, len(order.Coupons)),
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.LineItems {
		dto.LineItems = append(dto.LineItems, LineItemDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			InvoiceNo:     item.InvoiceNo,
			ProductStatus: item.ProductStatus,
			Item:          item.Item,
			Image:         item.Image,
			Quantity:      item.Quantity,
			Price:         item.Price.StringFixed(2),
			Total:         item.Total.StringFixed(2),
		})
	}
	for _, coupon := range order.Coupons {
		dto.Coupons = append(dto.Coupons, AppliedCouponDTO{Code: coupon.Code, Discount: coupon.Discount})
	}
	return dto
}
