package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// CheckoutSessionInput describes a one-line hosted checkout for an order.
type CheckoutSessionInput struct {
	ClientReferenceID string
	CustomerEmail     string
	ProductName       string
	Currency          string
	AmountCents       int64
	SuccessURL        string
	CancelURL         string
}

// PaymentStatusPaid is the payment_status of a session whose funds are captured.
const PaymentStatusPaid = string(stripe.CheckoutSessionPaymentStatusPaid)

// CheckoutSession is the subset of the Stripe session the storefront keeps.
type CheckoutSession struct {
	ID                string
	URL               string
	ClientReferenceID string
	PaymentStatus     string
}

// CheckoutClient creates and reads back Stripe Checkout sessions.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

type checkoutClient struct {
	create   func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	retrieve func(ctx context.Context, id string, params *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error)
}

// NewCheckoutClient returns a CheckoutClient on the environment's API handle.
func NewCheckoutClient(c *Client) CheckoutClient {
	if c == nil || c.api == nil {
		return nil
	}
	return &checkoutClient{
		create:   c.api.V1CheckoutSessions.Create,
		retrieve: c.api.V1CheckoutSessions.Retrieve,
	}
}

func (c *checkoutClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params, err := buildCheckoutParams(in)
	if err != nil {
		return nil, err
	}
	created, err := c.create(ctx, params)
	if err != nil {
		return nil, err
	}
	if created == nil || created.ID == "" {
		return nil, errors.New("stripe returned an empty checkout session")
	}
	return toSession(created), nil
}

func (c *checkoutClient) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("checkout session id is required")
	}
	found, err := c.retrieve(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if found == nil || found.ID == "" {
		return nil, errors.New("stripe returned an empty checkout session")
	}
	return toSession(found), nil
}

func toSession(cs *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:                cs.ID,
		URL:               cs.URL,
		ClientReferenceID: cs.ClientReferenceID,
		PaymentStatus:     string(cs.PaymentStatus),
	}
}

func buildCheckoutParams(in CheckoutSessionInput) (*stripe.CheckoutSessionCreateParams, error) {
	if strings.TrimSpace(in.ClientReferenceID) == "" {
		return nil, errors.New("client reference id is required")
	}
	if in.AmountCents <= 0 {
		return nil, errors.New("amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(in.ClientReferenceID),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
					UnitAmount: stripe.Int64(in.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("order_public_id", in.ClientReferenceID)
	return params, nil
}
