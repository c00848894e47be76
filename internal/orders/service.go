package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/shortid"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	invoicePrefix    = "INVOICE_NO-"
	publicIDAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Snapshot(ctx context.Context, session string) (*cart.Snapshot, error)
	Clear(ctx context.Context, session string) error
}

type orderCounter interface {
	IncOrderCreated()
}

type orderStore interface {
	PublicIDExists(ctx context.Context, publicID string) (bool, error)
	Create(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*models.Order, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

// Service turns carts into orders and reads them back.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderDTO, error)
	GetByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*OrderDTO, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Cart    cartReader
	Outbox  outbox.Emitter
	Metrics orderCounter
	Logger  *logger.Logger
	// NewPublicID overrides public id generation in tests.
	NewPublicID func() (string, error)
}

type service struct {
	repo        *Repository
	reader      orderStore
	tx          txRunner
	cart        cartReader
	outbox      outbox.Emitter
	metrics     orderCounter
	logg        *logger.Logger
	newPublicID func() (string, error)
}

// NewService validates dependencies and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	newPublicID := params.NewPublicID
	if newPublicID == nil {
		newPublicID = shortid.New
	}
	return &service{
		repo:        params.Repo,
		reader:      params.Repo,
		tx:          params.Tx,
		cart:        params.Cart,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		newPublicID: newPublicID,
	}, nil
}

// Create writes the order and one line item per purchasable cart line in a single
// transaction, then clears the cart. Lines with quantity 0 are skipped.
func (s *service) Create(ctx context.Context, input CreateInput) (*OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to check out")
	}
	info := normalizeInfo(input.Info)

	snap, err := s.cart.Snapshot(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	lines := snap.Purchasable()
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "cart is empty").
			WithRedirect("/")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		publicID, err := s.uniquePublicID(ctx, repo)
		if err != nil {
			return err
		}

		order := &models.Order{
			PublicID: publicID,
			UserID:   input.UserID,
			FullName: info.FullName,
			Email:    info.Email,
			Phone:    info.Phone,
			Address:  info.Address,
			City:     info.City,
			State:    info.State,
			Country:  info.Country,
			Price:    total,
			Saved:    decimal.Zero,
			Status:   enums.OrderStatusProcessing,
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderLineItem, 0, len(lines))
		for _, line := range lines {
			productID := line.ProductID
			items = append(items, models.OrderLineItem{
				OrderID:       order.ID,
				ProductID:     &productID,
				InvoiceNo:     invoicePrefix + publicID,
				ProductStatus: order.Status.String(),
				Item:          line.Title,
				Image:         line.Image,
				Quantity:      line.Quantity,
				Price:         line.Price,
				Total:         line.Total(),
			})
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
		}
		order.LineItems = items

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Source: "checkout"},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				PublicID:      order.PublicID,
				UserID:        order.UserID,
				Total:         order.Price.StringFixed(2),
				LineItemCount: len(items),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrderCreated()
	}

	if err := s.cart.Clear(ctx, input.Session); err != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, created.ID.String())
		s.logg.Error(logCtx, "orders.create.clear_cart_failed", err)
	}

	return NewOrderDTO(created), nil
}

func (s *service) uniquePublicID(ctx context.Context, repo *Repository) (string, error) {
	for attempt := 0; attempt < publicIDAttempts; attempt++ {
		candidate, err := s.newPublicID()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
		}
		taken, err := repo.PublicIDExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order id")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate order id")
}

func (s *service) GetByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*OrderDTO, error) {
	order, err := s.reader.FindByPublicID(ctx, userID, strings.TrimSpace(publicID))
	if err != nil {
		return nil, mapFindError(err)
	}
	return NewOrderDTO(order), nil
}

func (s *service) GetByID(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.reader.FindByID(ctx, userID, id)
	if err != nil {
		return nil, mapFindError(err)
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.reader.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewOrderDTO(&rows[i]))
	}
	return out, nil
}

func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func normalizeInfo(info CheckoutInfo) CheckoutInfo {
	return CheckoutInfo{
		FullName: strings.TrimSpace(info.FullName),
		Email:    strings.TrimSpace(info.Email),
		Phone:    strings.TrimSpace(info.Phone),
		Address:  strings.TrimSpace(info.Address),
		City:     strings.TrimSpace(info.City),
		State:    strings.TrimSpace(info.State),
		Country:  strings.TrimSpace(info.Country),
	}
}
