package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestBuildCheckoutParams(t *testing.T) {
	params, err := buildCheckoutParams(CheckoutSessionInput{
		ClientReferenceID: "ab12cd34ef",
		CustomerEmail:     "buyer@example.com",
		ProductName:       "Order ab12cd34ef",
		Currency:          "USD",
		AmountCents:       2500,
		SuccessURL:        "https://shop.example/payment-completed/ab12cd34ef",
		CancelURL:         "https://shop.example/payment-failed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *params.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %s", *params.Mode)
	}
	if *params.ClientReferenceID != "ab12cd34ef" {
		t.Fatalf("unexpected reference %s", *params.ClientReferenceID)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(params.LineItems))
	}
	price := params.LineItems[0].PriceData
	if *price.UnitAmount != 2500 || *price.Currency != "usd" {
		t.Fatalf("unexpected price data %d %s", *price.UnitAmount, *price.Currency)
	}
	if *params.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected email %s", *params.CustomerEmail)
	}
}

func TestBuildCheckoutParamsRejectsInvalidInput(t *testing.T) {
	if _, err := buildCheckoutParams(CheckoutSessionInput{AmountCents: 100}); err == nil {
		t.Fatal("expected error without reference id")
	}
	if _, err := buildCheckoutParams(CheckoutSessionInput{ClientReferenceID: "x"}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestCreateCheckoutSessionUsesContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "req")
	var seen context.Context
	client := &checkoutClient{create: func(got context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
		seen = got
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
	}}

	out, err := client.CreateCheckoutSession(ctx, CheckoutSessionInput{ClientReferenceID: "ref", AmountCents: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "cs_test_1" || out.URL == "" {
		t.Fatalf("unexpected session %+v", out)
	}
	if seen != ctx {
		t.Fatal("expected the request context to reach stripe")
	}
}

func TestCreateCheckoutSessionPropagatesError(t *testing.T) {
	boom := errors.New("card_declined")
	client := &checkoutClient{create: func(context.Context, *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
		return nil, boom
	}}
	if _, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionInput{ClientReferenceID: "ref", AmountCents: 100}); !errors.Is(err, boom) {
		t.Fatalf("expected stripe error, got %v", err)
	}
}

func TestRetrieveCheckoutSession(t *testing.T) {
	var asked string
	client := &checkoutClient{retrieve: func(_ context.Context, id string, _ *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error) {
		asked = id
		return &stripe.CheckoutSession{
			ID:                id,
			ClientReferenceID: "ab12cd34ef",
			PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		}, nil
	}}

	out, err := client.RetrieveCheckoutSession(context.Background(), " cs_test_9 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asked != "cs_test_9" {
		t.Fatalf("expected trimmed id, got %q", asked)
	}
	if out.PaymentStatus != PaymentStatusPaid || out.ClientReferenceID != "ab12cd34ef" {
		t.Fatalf("unexpected session %+v", out)
	}
	if _, err := client.RetrieveCheckoutSession(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}
