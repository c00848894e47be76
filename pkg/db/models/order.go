package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a materialized cart with shipping and payment state. Price is the amount
// due after coupons; Saved accumulates every coupon discount.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PublicID        string            `gorm:"column:public_id;not null;uniqueIndex:orders_public_id_key"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:orders_user_id_idx"`
	FullName        string            `gorm:"column:full_name;not null"`
	Email           string            `gorm:"column:email;not null"`
	Phone           string            `gorm:"column:phone;not null"`
	Address         string            `gorm:"column:address;not null"`
	City            string            `gorm:"column:city;not null"`
	State           string            `gorm:"column:state;not null"`
	Country         string            `gorm:"column:country;not null"`
	Price           decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Saved           decimal.Decimal   `gorm:"column:saved;type:numeric(12,2);not null;default:0"`
	Paid            bool              `gorm:"column:paid;not null;default:false"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'processing'"`
	StripeSessionID *string           `gorm:"column:stripe_session_id"`
	LineItems       []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Coupons         []Coupon          `gorm:"many2many:order_coupons;joinForeignKey:OrderID;joinReferences:CouponID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
