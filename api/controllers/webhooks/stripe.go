package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Stripe documents event payloads well below this.
const maxWebhookBody = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// EventGuard deduplicates Stripe event ids.
type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type SigningSecretProvider interface {
	SigningSecret() string
}

type stripeWebhook struct {
	svc     StripeWebhookService
	secrets SigningSecretProvider
	guard   EventGuard
	logg    *logger.Logger
}

// StripeWebhook verifies the Stripe-Signature header, acknowledges replayed
// event ids without side effects and hands the rest to svc. When svc fails
// the event id is released so Stripe's retry is processed again.
func StripeWebhook(svc StripeWebhookService, secrets SigningSecretProvider, guard EventGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, secrets: secrets, guard: guard, logg: logg}
	if h.logg == nil {
		h.logg = logger.Nop()
	}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.secrets == nil || h.guard == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
		return
	}
	event, err := h.verify(w, r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	seen, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check stripe event id"))
		return
	}
	if seen {
		h.logg.Info(ctx, "stripe.webhook.duplicate")
		responses.WriteSuccess(w, map[string]bool{"duplicate": true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if relErr := h.guard.Release(ctx, event.ID); relErr != nil {
			h.logg.Error(ctx, "stripe.webhook.release_failed", relErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	h.logg.Info(ctx, "stripe.webhook.processed")
	responses.WriteSuccess(w, map[string]bool{"received": true})
}

func (h *stripeWebhook) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read stripe payload")
	}
	// Events are decoded only for id, type and the checkout session object, so
	// an account on a newer API version is still accepted.
	event, err := webhook.ConstructEventWithOptions(payload, signature, h.secrets.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}
