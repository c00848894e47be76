package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/stripe/stripe-go/v84"
)

type paymentMarker interface {
	MarkPaidFromWebhook(ctx context.Context, orderPublicID, stripeSessionID string) error
}

type ServiceParams struct {
	Payments paymentMarker
}

// Service turns verified Stripe events into order state changes.
type Service struct {
	payments paymentMarker
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{payments: params.Payments}, nil
}

// HandleEvent reacts to completed checkout sessions. Other event types are acknowledged
// and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.completeSession(ctx, &session)
	default:
		return nil
	}
}

func (s *Service) completeSession(ctx context.Context, session *stripe.CheckoutSession) error {
	// Delayed payment methods complete the session before the money arrives; the
	// async_payment_succeeded event follows with status paid.
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}
	publicID := strings.TrimSpace(session.ClientReferenceID)
	if publicID == "" {
		publicID = strings.TrimSpace(session.Metadata["order_public_id"])
	}
	if publicID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no order reference")
	}
	return s.payments.MarkPaidFromWebhook(ctx, publicID, session.ID)
}
