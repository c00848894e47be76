package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sources recorded on order_paid events.
const (
	SourceRedirect = "redirect"
	SourceWebhook  = "webhook"
)

const (
	stripeAttempts     = 2
	failedMessage      = "payment was not completed; your order is saved unpaid and you can retry checkout"
	dependencyMessage  = "payment provider unavailable, please try again"
	sessionPlaceholder = "{CHECKOUT_SESSION_ID}"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paidCounter interface {
	IncPaid(source string)
}

// Service bridges orders and the hosted Stripe Checkout page.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, orderPublicID string) (*CheckoutSessionDTO, error)
	Complete(ctx context.Context, userID uuid.UUID, orderPublicID, stripeSessionID string) (*orders.OrderDTO, error)
	Failed(ctx context.Context) *FailedDTO
	MarkPaidFromWebhook(ctx context.Context, orderPublicID, stripeSessionID string) error
}

// CheckoutSessionDTO is what the browser needs to redirect to Stripe.
type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// FailedDTO answers the cancel redirect.
type FailedDTO struct {
	Paid    bool   `json:"paid"`
	Message string `json:"message"`
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Orders        *orders.Repository
	Tx            txRunner
	Checkout      stripeclient.CheckoutClient
	Outbox        outbox.Emitter
	Metrics       paidCounter
	Logger        *logger.Logger
	PublicBaseURL string
	Currency      string
}

type service struct {
	orders   *orders.Repository
	tx       txRunner
	checkout stripeclient.CheckoutClient
	outbox   outbox.Emitter
	metrics  paidCounter
	logg     *logger.Logger
	baseURL  string
	currency string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("stripe checkout client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		orders:   params.Orders,
		tx:       params.Tx,
		checkout: params.Checkout,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		baseURL:  strings.TrimRight(params.PublicBaseURL, "/"),
		currency: currency,
	}, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, orderPublicID string) (*CheckoutSessionDTO, error) {
	order, err := s.orders.FindByPublicID(ctx, userID, strings.TrimSpace(orderPublicID))
	if err != nil {
		return nil, mapFindError(err)
	}
	if order.Paid {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "order already paid")
	}

	input := stripeclient.CheckoutSessionInput{
		ClientReferenceID: order.PublicID,
		CustomerEmail:     order.Email,
		ProductName:       "Order " + order.PublicID,
		Currency:          s.currency,
		AmountCents:       toCents(order.Price),
		SuccessURL:        fmt.Sprintf("%s/payment-completed/%s?session_id=%s", s.baseURL, order.PublicID, sessionPlaceholder),
		CancelURL:         s.baseURL + "/payment-failed",
	}

	session, err := s.createWithRetry(ctx, order, input)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetStripeSession(ctx, order.ID, session.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stripe session")
	}
	return &CheckoutSessionDTO{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) createWithRetry(ctx context.Context, order *models.Order, input stripeclient.CheckoutSessionInput) (*stripeclient.CheckoutSession, error) {
	var lastErr error
	for attempt := 1; attempt <= stripeAttempts; attempt++ {
		session, err := s.checkout.CreateCheckoutSession(ctx, input)
		if err == nil {
			return session, nil
		}
		lastErr = err
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.logg.Warn(logCtx, "payments.stripe.create_session_failed")
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, dependencyMessage).
		WithDetails(map[string]any{"retryable": true})
}

// Complete marks the order paid once stripeSessionID is confirmed to be the order's
// recorded session and Stripe reports it paid. Only the call that flips the flag emits
// order_paid; later calls return the already paid order unchanged.
func (s *service) Complete(ctx context.Context, userID uuid.UUID, orderPublicID, stripeSessionID string) (*orders.OrderDTO, error) {
	order, err := s.orders.FindByPublicID(ctx, userID, strings.TrimSpace(orderPublicID))
	if err != nil {
		return nil, mapFindError(err)
	}
	if !order.Paid {
		stripeSessionID = strings.TrimSpace(stripeSessionID)
		if err := s.confirmSession(ctx, order, stripeSessionID); err != nil {
			return nil, err
		}
		if err := s.markPaid(ctx, order, SourceRedirect, stripeSessionID); err != nil {
			return nil, err
		}
		order, err = s.orders.FindByPublicID(ctx, userID, order.PublicID)
		if err != nil {
			return nil, mapFindError(err)
		}
	}
	return orders.NewOrderDTO(order), nil
}

func (s *service) confirmSession(ctx context.Context, order *models.Order, stripeSessionID string) error {
	if stripeSessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session_id is required").
			WithDetails(map[string]any{"field": "session_id"})
	}
	if order.StripeSessionID == nil || *order.StripeSessionID != stripeSessionID {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, "checkout session does not match order")
	}
	session, err := s.checkout.RetrieveCheckoutSession(ctx, stripeSessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dependencyMessage).
			WithDetails(map[string]any{"retryable": true})
	}
	if session.PaymentStatus != stripeclient.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, "payment not completed").
			WithDetails(map[string]any{"payment_status": session.PaymentStatus})
	}
	return nil
}

func (s *service) Failed(ctx context.Context) *FailedDTO {
	return &FailedDTO{Paid: false, Message: failedMessage}
}

func (s *service) MarkPaidFromWebhook(ctx context.Context, orderPublicID, stripeSessionID string) error {
	order, err := s.orders.FindByPublicIDAnyUser(ctx, strings.TrimSpace(orderPublicID))
	if err != nil {
		return mapFindError(err)
	}
	if order.Paid {
		return nil
	}
	return s.markPaid(ctx, order, SourceWebhook, stripeSessionID)
}

func (s *service) markPaid(ctx context.Context, order *models.Order, source, stripeSessionID string) error {
	transitioned := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.orders.WithTx(tx).MarkPaid(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if rows == 0 {
			return nil
		}
		transitioned = true

		if stripeSessionID == "" && order.StripeSessionID != nil {
			stripeSessionID = *order.StripeSessionID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: source},
			Data: payloads.OrderPaidEvent{
				OrderID:         order.ID,
				PublicID:        order.PublicID,
				UserID:          order.UserID,
				Amount:          order.Price.StringFixed(2),
				Source:          source,
				StripeSessionID: stripeSessionID,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order paid")
		}
		return err
	}
	if transitioned && s.metrics != nil {
		s.metrics.IncPaid(source)
	}
	return nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
