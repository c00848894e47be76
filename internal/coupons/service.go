package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	msgCouponMissing   = "coupon does not exist"
	msgCouponActivated = "coupon already activated"
	msgOrderPaid       = "order already paid"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponCounter interface {
	IncCoupon(result string)
}

type orderReader interface {
	GetByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*orders.OrderDTO, error)
}

// Service applies percentage coupons to unpaid orders.
type Service interface {
	Apply(ctx context.Context, userID uuid.UUID, orderPublicID, code string) (*ApplyResult, error)
}

// ApplyResult is the discounted order plus the amount taken off by this coupon.
type ApplyResult struct {
	Order    *orders.OrderDTO `json:"order"`
	Code     string           `json:"code"`
	Discount string           `json:"discount"`
}

// ServiceParams wires the coupon service.
type ServiceParams struct {
	Repo    *Repository
	Orders  *orders.Repository
	Reader  orderReader
	Tx      txRunner
	Outbox  outbox.Emitter
	Metrics couponCounter
}

type service struct {
	repo    *Repository
	orders  *orders.Repository
	reader  orderReader
	tx      txRunner
	outbox  outbox.Emitter
	metrics couponCounter
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		reader:  params.Reader,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
	}, nil
}

// Apply discounts the order by the coupon's percentage of its current price, so a
// second distinct coupon compounds on the already reduced amount. The order row stays
// locked for the whole read-check-write sequence.
func (s *service) Apply(ctx context.Context, userID uuid.UUID, orderPublicID, code string) (*ApplyResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required").
			WithDetails(map[string]string{"code": "is required"})
	}

	var discount decimal.Decimal
	outcome := metrics.CouponRejected
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		couponRepo := s.repo.WithTx(tx)

		order, err := orderRepo.LockByPublicID(ctx, userID, strings.TrimSpace(orderPublicID))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Paid {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, msgOrderPaid)
		}

		coupon, err := couponRepo.FindActiveByCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = metrics.CouponUnknown
			return pkgerrors.New(pkgerrors.CodeBusinessRule, msgCouponMissing)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}

		applied, err := couponRepo.IsApplied(ctx, order.ID, coupon.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check applied coupons")
		}
		if applied {
			outcome = metrics.CouponRepeated
			return pkgerrors.New(pkgerrors.CodeBusinessRule, msgCouponActivated)
		}

		discount = Discount(order.Price, coupon.Discount)
		price := order.Price.Sub(discount)
		saved := order.Saved.Add(discount)

		if err := couponRepo.Attach(ctx, order.ID, coupon.ID); err != nil {
			if db.IsUniqueViolation(err, "") {
				outcome = metrics.CouponRepeated
				return pkgerrors.New(pkgerrors.CodeBusinessRule, msgCouponActivated)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
		}
		if err := orderRepo.UpdateAmounts(ctx, order.ID, price, saved); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order amounts")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCouponApplied,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Source: "checkout"},
			Data: payloads.CouponAppliedEvent{
				OrderID:  order.ID,
				CouponID: coupon.ID,
				Code:     coupon.Code,
				Discount: discount.StringFixed(2),
				Price:    price.StringFixed(2),
				Saved:    saved.StringFixed(2),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit coupon applied")
		}
		outcome = metrics.CouponApplied
		return nil
	})
	s.count(outcome, err)
	if err != nil {
		return nil, err
	}

	order, err := s.reader.GetByPublicID(ctx, userID, orderPublicID)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{Order: order, Code: code, Discount: discount.StringFixed(2)}, nil
}

func (s *service) count(outcome string, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil && outcome == metrics.CouponApplied {
		outcome = metrics.CouponRejected
	}
	// Lookup failures are not coupon outcomes.
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule) {
		return
	}
	s.metrics.IncCoupon(outcome)
}

// Discount is percent of price rounded to cents.
func Discount(price decimal.Decimal, percent int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
}
