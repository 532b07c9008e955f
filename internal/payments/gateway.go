package payments

import (
	"context"
	"errors"

	domain "github.com/lumenmarket/api/internal/domain"
)

// ErrPaymentDeclined is returned when the PSP rejects the charge for a
// customer-facing reason (card declined, insufficient funds, expired card).
var ErrPaymentDeclined = errors.New("payments: payment declined")

// Logger defines the logging contract for gateway operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ChargeRequest captures the payload required to charge a customer.
type ChargeRequest struct {
	CustomerID     string
	Amount         domain.Money
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest asks the PSP to return a previously captured amount.
type RefundRequest struct {
	PaymentRef     string
	Amount         domain.Money
	Reason         string
	IdempotencyKey string
}

// Gateway is the PSP boundary the checkout and order flows depend on.
// Implementations return an opaque payment reference on success and wrap
// customer-facing rejections in ErrPaymentDeclined.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, req RefundRequest) error
}

// WebhookEvent normalises the PSP notification fields the API reacts to.
type WebhookEvent struct {
	ID         string
	Type       string
	PaymentRef string
}
