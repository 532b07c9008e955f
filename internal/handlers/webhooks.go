package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/payments"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// webhookVerifier abstracts signature verification so tests can bypass Stripe.
type webhookVerifier func(payload []byte, signatureHeader string, secret string) (payments.WebhookEvent, error)

// WebhookHandlers receives PSP notifications. Signature verification happens
// before any payload field is trusted.
type WebhookHandlers struct {
	signingSecret string
	publisher     services.OrderEventPublisher
	verify        webhookVerifier
	clock         func() time.Time
	logger        payments.Logger
}

// WebhookOption customises webhook handler construction.
type WebhookOption func(*WebhookHandlers)

// WithWebhookVerifier overrides the Stripe signature check.
func WithWebhookVerifier(verify webhookVerifier) WebhookOption {
	return func(h *WebhookHandlers) {
		if verify != nil {
			h.verify = verify
		}
	}
}

// WithWebhookClock overrides the time source.
func WithWebhookClock(clock func() time.Time) WebhookOption {
	return func(h *WebhookHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithWebhookLogger overrides the handler logger.
func WithWebhookLogger(logger payments.Logger) WebhookOption {
	return func(h *WebhookHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewWebhookHandlers constructs the webhook surface.
func NewWebhookHandlers(signingSecret string, publisher services.OrderEventPublisher, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		signingSecret: signingSecret,
		publisher:     publisher,
		verify:        payments.ParseWebhook,
		clock:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the webhook endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripe)
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.signingSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_not_configured", "webhook signing secret is not configured", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	event, err := h.verify(payload, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		h.log(r, "webhooks.stripe.signature_rejected", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	// Payment settlement already happened synchronously during confirm, so
	// Stripe events are forwarded for reconciliation rather than acted on.
	if h.publisher != nil {
		if _, err := h.publisher.PublishOrderEvent(ctx, services.OrderEvent{
			Type:       "payment." + event.Type,
			OrderID:    event.PaymentRef,
			OccurredAt: h.clock(),
		}); err != nil {
			h.log(r, "webhooks.stripe.publish_failed", map[string]any{
				"eventId": event.ID,
				"error":   err.Error(),
			})
			httpx.WriteError(ctx, w, httpx.NewError("webhook_publish_failed", "failed to enqueue webhook event", http.StatusInternalServerError))
			return
		}
	}

	h.log(r, "webhooks.stripe.received", map[string]any{
		"eventId":    event.ID,
		"type":       event.Type,
		"paymentRef": event.PaymentRef,
	})
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func (h *WebhookHandlers) log(r *http.Request, event string, fields map[string]any) {
	if h.logger == nil {
		return
	}
	h.logger(r.Context(), event, fields)
}
