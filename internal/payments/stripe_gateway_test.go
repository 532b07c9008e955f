package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"

	domain "github.com/lumenmarket/api/internal/domain"
)

type fakeIntentAPI struct {
	lastParams *stripe.PaymentIntentParams
	intent     *stripe.PaymentIntent
	err        error
}

func (f *fakeIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeRefundAPI struct {
	lastParams *stripe.RefundParams
	err        error
}

func (f *fakeRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Refund{ID: "re_test"}, nil
}

func newTestGateway(t *testing.T, intents *fakeIntentAPI, refunds *fakeRefundAPI) *StripeGateway {
	t.Helper()
	gw, err := NewStripeGateway(StripeGatewayConfig{
		Clients: &stripeClients{intents: intents, refunds: refunds},
		Clock:   func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func TestStripeGatewayChargeSucceeds(t *testing.T) {
	intents := &fakeIntentAPI{intent: &stripe.PaymentIntent{
		ID:     "pi_123",
		Status: stripe.PaymentIntentStatusSucceeded,
		Amount: 12000,
	}}
	gw := newTestGateway(t, intents, &fakeRefundAPI{})

	ref, err := gw.Charge(context.Background(), ChargeRequest{
		CustomerID:     "cus_42",
		Amount:         domain.MustMoney("120.00", "EUR"),
		IdempotencyKey: "checkout-abc",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ref != "pi_123" {
		t.Fatalf("expected payment ref pi_123, got %s", ref)
	}
	if intents.lastParams == nil {
		t.Fatalf("expected intent params to be captured")
	}
	if got := *intents.lastParams.Amount; got != 12000 {
		t.Fatalf("expected minor units 12000, got %d", got)
	}
	if got := *intents.lastParams.Currency; got != "eur" {
		t.Fatalf("expected lowercase currency, got %s", got)
	}
	if intents.lastParams.Customer == nil || *intents.lastParams.Customer != "cus_42" {
		t.Fatalf("expected customer to be forwarded")
	}
	if !*intents.lastParams.Confirm || !*intents.lastParams.OffSession {
		t.Fatalf("expected confirmed off-session intent")
	}
}

func TestStripeGatewayChargeCardDecline(t *testing.T) {
	intents := &fakeIntentAPI{err: &stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeCardDeclined,
		Msg:  "Your card was declined.",
	}}
	gw := newTestGateway(t, intents, &fakeRefundAPI{})

	_, err := gw.Charge(context.Background(), ChargeRequest{
		Amount: domain.MustMoney("10.00", "EUR"),
	})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
}

func TestStripeGatewayChargeUnconfirmedIntent(t *testing.T) {
	intents := &fakeIntentAPI{intent: &stripe.PaymentIntent{
		ID:     "pi_456",
		Status: stripe.PaymentIntentStatusRequiresAction,
	}}
	gw := newTestGateway(t, intents, &fakeRefundAPI{})

	_, err := gw.Charge(context.Background(), ChargeRequest{
		Amount: domain.MustMoney("10.00", "EUR"),
	})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined for unconfirmed intent, got %v", err)
	}
}

func TestStripeGatewayChargeInfrastructureError(t *testing.T) {
	intents := &fakeIntentAPI{err: &stripe.Error{
		Type: stripe.ErrorTypeAPI,
		Msg:  "service unavailable",
	}}
	gw := newTestGateway(t, intents, &fakeRefundAPI{})

	_, err := gw.Charge(context.Background(), ChargeRequest{
		Amount: domain.MustMoney("10.00", "EUR"),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("infrastructure failures must not map to a decline: %v", err)
	}
}

func TestStripeGatewayRefund(t *testing.T) {
	refunds := &fakeRefundAPI{}
	gw := newTestGateway(t, &fakeIntentAPI{}, refunds)

	err := gw.Refund(context.Background(), RefundRequest{
		PaymentRef:     "pi_123",
		Amount:         domain.MustMoney("120.00", "EUR"),
		Reason:         "requested_by_customer",
		IdempotencyKey: "refund-abc",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunds.lastParams == nil {
		t.Fatalf("expected refund params to be captured")
	}
	if got := *refunds.lastParams.PaymentIntent; got != "pi_123" {
		t.Fatalf("expected payment intent pi_123, got %s", got)
	}
	if got := *refunds.lastParams.Amount; got != 12000 {
		t.Fatalf("expected refund minor units 12000, got %d", got)
	}
	if refunds.lastParams.Reason == nil || *refunds.lastParams.Reason != string(stripe.RefundReasonRequestedByCustomer) {
		t.Fatalf("expected mapped refund reason")
	}
}

func TestStripeGatewayRefundRequiresReference(t *testing.T) {
	gw := newTestGateway(t, &fakeIntentAPI{}, &fakeRefundAPI{})
	if err := gw.Refund(context.Background(), RefundRequest{}); err == nil {
		t.Fatalf("expected error for missing payment reference")
	}
}
