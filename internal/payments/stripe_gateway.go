package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/lumenmarket/api/internal/platform/textutil"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   Logger
	Clock    func() time.Time
	Clients  *stripeClients
}

// StripeGateway implements the Gateway interface using Stripe Payment Intents.
type StripeGateway struct {
	api    stripeClients
	clock  func() time.Time
	logger Logger
}

// NewStripeGateway constructs a Stripe-backed Gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Charge creates and confirms a Payment Intent for the customer's saved
// payment method. The intent ID is the payment reference used for refunds.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if g == nil {
		return "", errors.New("stripe: gateway is nil")
	}
	if req.Amount.IsZero() {
		return "", errors.New("stripe: charge amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:     stripe.Int64(req.Amount.MinorUnits()),
		Currency:   stripe.String(strings.ToLower(req.Amount.Currency())),
		Confirm:    stripe.Bool(true),
		OffSession: stripe.Bool(true),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if customer := strings.TrimSpace(req.CustomerID); customer != "" {
		params.Customer = stripe.String(customer)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	if metadata := textutil.NormalizeStringMap(req.Metadata); metadata != nil {
		params.Metadata = metadata
	}

	intent, err := g.api.intents.New(params)
	if err != nil {
		if isStripeDecline(err) {
			g.logger(ctx, "payments.stripe.charge.declined", map[string]any{
				"customerId": req.CustomerID,
				"amount":     req.Amount.String(),
			})
			return "", fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
		return "", fmt.Errorf("stripe: create payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		g.logger(ctx, "payments.stripe.charge.declined", map[string]any{
			"paymentIntent": intent.ID,
			"status":        intent.Status,
		})
		return "", fmt.Errorf("%w: intent status %s", ErrPaymentDeclined, intent.Status)
	}

	g.logger(ctx, "payments.stripe.charge.succeeded", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})
	return intent.ID, nil
}

// Refund returns the captured amount for the given payment reference.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) error {
	if g == nil {
		return errors.New("stripe: gateway is nil")
	}
	ref := strings.TrimSpace(req.PaymentRef)
	if ref == "" {
		return errors.New("stripe: payment reference is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(ref),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if !req.Amount.IsZero() {
		params.Amount = stripe.Int64(req.Amount.MinorUnits())
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	if _, err := g.api.refunds.New(params); err != nil {
		return fmt.Errorf("stripe: refund payment intent: %w", err)
	}
	g.logger(ctx, "payments.stripe.refund.succeeded", map[string]any{
		"paymentIntent": ref,
		"amount":        req.Amount.String(),
	})
	return nil
}

// ParseWebhook verifies the Stripe signature header and extracts the fields
// the API reacts to. The raw payload must be the unmodified request body.
func ParseWebhook(payload []byte, signatureHeader string, secret string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: verify webhook signature: %w", err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	var intent struct {
		ID string `json:"id"`
	}
	if len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &intent); err == nil {
			out.PaymentRef = intent.ID
		}
	}
	return out, nil
}

func isStripeDecline(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	if stripeErr.Type == stripe.ErrorTypeCard {
		return true
	}
	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectCVC, stripe.ErrorCodeInsufficientFunds:
		return true
	}
	return false
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}

var _ Gateway = (*StripeGateway)(nil)
