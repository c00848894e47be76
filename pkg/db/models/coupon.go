package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon grants a whole-percent discount on an order.
type Coupon struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:coupons_code_key"`
	Discount  int       `gorm:"column:discount;not null;default:1"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderCoupon records that a coupon was applied to an order. The composite key
// makes a second application of the same coupon impossible.
type OrderCoupon struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
