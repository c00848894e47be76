package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type productLookup interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductSummaryDTO, error)
}

type sessionStore interface {
	Load(ctx context.Context, session string) (*Snapshot, error)
	Mutate(ctx context.Context, session string, fn func(*Snapshot) error) (*Snapshot, error)
	Clear(ctx context.Context, session string) error
}

type conflictCounter interface {
	IncCartConflict()
}

// Service manages the session-keyed shopping cart.
type Service interface {
	Add(ctx context.Context, session string, productID uuid.UUID, qty int) (*View, error)
	Remove(ctx context.Context, session string, productID uuid.UUID) (*View, error)
	UpdateQuantity(ctx context.Context, session string, productID uuid.UUID, qty int) (*View, error)
	Get(ctx context.Context, session string) (*View, error)
	Snapshot(ctx context.Context, session string) (*Snapshot, error)
	Total(ctx context.Context, session string) (decimal.Decimal, error)
	Clear(ctx context.Context, session string) error
}

type service struct {
	store    sessionStore
	products productLookup
	metrics  conflictCounter
}

// NewService builds the cart service. metrics may be nil.
func NewService(store sessionStore, products productLookup, metrics conflictCounter) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{store: store, products: products, metrics: metrics}, nil
}

// Add puts the product in the cart with the given quantity. An existing line for the
// product has its quantity replaced, not incremented.
func (s *service) Add(ctx context.Context, session string, productID uuid.UUID, qty int) (*View, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]string{"qty": "min"})
	}
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(product.Price)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse product price")
	}
	line := Line{
		ProductID: product.ID,
		Title:     product.Title,
		Quantity:  qty,
		Price:     price,
		Image:     product.Image,
	}
	return s.mutate(ctx, session, func(snap *Snapshot) error {
		snap.Put(line)
		return nil
	})
}

func (s *service) Remove(ctx context.Context, session string, productID uuid.UUID) (*View, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.mutate(ctx, session, func(snap *Snapshot) error {
		snap.Remove(productID)
		return nil
	})
}

// UpdateQuantity only touches products already in the cart. Zero is allowed and keeps
// the line; such lines are skipped when the order is created.
func (s *service) UpdateQuantity(ctx context.Context, session string, productID uuid.UUID, qty int) (*View, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative").
			WithDetails(map[string]string{"qty": "min"})
	}
	return s.mutate(ctx, session, func(snap *Snapshot) error {
		snap.SetQuantity(productID, qty)
		return nil
	})
}

func (s *service) Get(ctx context.Context, session string) (*View, error) {
	snap, err := s.Snapshot(ctx, session)
	if err != nil {
		return nil, err
	}
	return NewView(snap), nil
}

func (s *service) Snapshot(ctx context.Context, session string) (*Snapshot, error) {
	if strings.TrimSpace(session) == "" {
		return newSnapshot(), nil
	}
	snap, err := s.store.Load(ctx, session)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return snap, nil
}

func (s *service) Total(ctx context.Context, session string) (decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx, session)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Total(), nil
}

func (s *service) Clear(ctx context.Context, session string) error {
	if strings.TrimSpace(session) == "" {
		return nil
	}
	if err := s.store.Clear(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) mutate(ctx context.Context, session string, fn func(*Snapshot) error) (*View, error) {
	snap, err := s.store.Mutate(ctx, session, fn)
	if errors.Is(err, ErrConflict) {
		if s.metrics != nil {
			s.metrics.IncCartConflict()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently, please retry")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return NewView(snap), nil
}

func requireSession(session string) error {
	if strings.TrimSpace(session) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return nil
}
