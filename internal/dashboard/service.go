package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

type orderLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]orders.OrderDTO, error)
}

type addressLister interface {
	List(ctx context.Context, userID uuid.UUID) ([]address.AddressDTO, error)
}

// MonthCount is one bar of the orders-per-month chart.
type MonthCount struct {
	Month int `json:"month"`
	Count int `json:"count"`
}

// OverviewDTO is the customer dashboard payload.
type OverviewDTO struct {
	Orders    []orders.OrderDTO    `json:"orders"`
	Addresses []address.AddressDTO `json:"addresses"`
	Months    []MonthCount         `json:"months"`
}

type Service interface {
	Overview(ctx context.Context, userID uuid.UUID) (*OverviewDTO, error)
}

type service struct {
	orders    orderLister
	addresses addressLister
}

func NewService(orders orderLister, addresses addressLister) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order lister required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address lister required")
	}
	return &service{orders: orders, addresses: addresses}, nil
}

func (s *service) Overview(ctx context.Context, userID uuid.UUID) (*OverviewDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	list, err := s.orders.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	addrs, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &OverviewDTO{
		Orders:    list,
		Addresses: addrs,
		Months:    countByMonth(list),
	}, nil
}

// countByMonth groups orders by calendar month across years, ascending, omitting
// months without orders.
func countByMonth(list []orders.OrderDTO) []MonthCount {
	var counts [12]int
	for _, order := range list {
		counts[order.CreatedAt.UTC().Month()-time.January]++
	}
	out := make([]MonthCount, 0, 12)
	for i, n := range counts {
		if n == 0 {
			continue
		}
		out = append(out, MonthCount{Month: i + 1, Count: n})
	}
	return out
}
