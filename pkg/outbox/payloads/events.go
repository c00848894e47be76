package payloads

import (
	"errors"

	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once a cart has been materialized into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	PublicID      string    `json:"public_id"`
	UserID        uuid.UUID `json:"user_id"`
	Total         string    `json:"total"`
	LineItemCount int       `json:"line_item_count"`
}

// OrderPaidEvent is emitted on the unpaid -> paid transition. Source is "redirect" or
// "webhook".
type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PublicID        string    `json:"public_id"`
	UserID          uuid.UUID `json:"user_id"`
	Amount          string    `json:"amount"`
	Source          string    `json:"source"`
	StripeSessionID string    `json:"stripe_session_id,omitempty"`
}

// CouponAppliedEvent records a discount applied to an order.
type CouponAppliedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	CouponID uuid.UUID `json:"coupon_id"`
	Code     string    `json:"code"`
	Discount string    `json:"discount"`
	Price    string    `json:"price"`
	Saved    string    `json:"saved"`
}

// ReviewCreatedEvent is emitted when a customer reviews a product.
type ReviewCreatedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
}

var (
	errMissingOrder   = errors.New("order_id is required")
	errMissingPublic  = errors.New("public_id is required")
	errMissingCoupon  = errors.New("coupon_id is required")
	errMissingReview  = errors.New("review_id is required")
	errRatingOutOfRng = errors.New("rating must be between 1 and 5")
)

func (e OrderCreatedEvent) Validate() error {
	switch {
	case e.OrderID == uuid.Nil:
		return errMissingOrder
	case e.PublicID == "":
		return errMissingPublic
	}
	return nil
}

func (e OrderPaidEvent) Validate() error {
	switch {
	case e.OrderID == uuid.Nil:
		return errMissingOrder
	case e.PublicID == "":
		return errMissingPublic
	}
	return nil
}

func (e CouponAppliedEvent) Validate() error {
	switch {
	case e.OrderID == uuid.Nil:
		return errMissingOrder
	case e.CouponID == uuid.Nil:
		return errMissingCoupon
	}
	return nil
}

func (e ReviewCreatedEvent) Validate() error {
	switch {
	case e.ReviewID == uuid.Nil:
		return errMissingReview
	case e.Rating < 1 || e.Rating > 5:
		return errRatingOutOfRng
	}
	return nil
}
