package coupons

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads coupons and records their application to orders.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveByCode returns the active coupon with the exact code.
func (r *Repository) FindActiveByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IsApplied reports whether the coupon is already in the order's applied set.
func (r *Repository) IsApplied(ctx context.Context, orderID, couponID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderCoupon{}).
		Where("order_id = ? AND coupon_id = ?", orderID, couponID).
		Count(&count).Error
	return count > 0, err
}

// Attach adds the coupon to the order's applied set. The composite primary key rejects
// a second insert for the same pair.
func (r *Repository) Attach(ctx context.Context, orderID, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&models.OrderCoupon{OrderID: orderID, CouponID: couponID}).Error
}
