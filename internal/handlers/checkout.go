package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

// CheckoutHandlers exposes the preview projection and the confirm saga.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	limiter  rateLimiter
}

const maxCheckoutBodySize = 8 * 1024

// CheckoutOption customises the checkout handlers.
type CheckoutOption func(*CheckoutHandlers)

// WithConfirmRateLimit throttles confirm attempts per customer.
func WithConfirmRateLimit(limit int, window time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewCheckoutHandlers constructs handlers for the /checkout group.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleCustomer, auth.RoleAdmin))
	}
	r.Get("/preview", h.preview)
	r.Post("/confirm", h.confirm)
}

func (h *CheckoutHandlers) preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.requireCustomer(ctx, w)
	if !ok {
		return
	}

	preview, err := h.checkout.Preview(ctx, customerID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPreviewPayload(preview))
}

type confirmRequest struct {
	PreviewToken string `json:"preview_token"`
}

func (h *CheckoutHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.requireCustomer(ctx, w)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(customerID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts; try again shortly", http.StatusTooManyRequests))
		return
	}

	// The body is optional: a preview token is advisory, confirm re-prices.
	var req confirmRequest
	if body, err := readLimitedBody(r, maxCheckoutBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	order, err := h.checkout.Confirm(ctx, services.ConfirmCheckoutCommand{
		CustomerID:     customerID,
		PreviewToken:   strings.TrimSpace(req.PreviewToken),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"order": buildOrderPayload(order)})
}

func (h *CheckoutHandlers) requireCustomer(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var conflict *services.StockConflictError
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNoItemsOrderable):
		httpx.WriteError(ctx, w, httpx.NewError("no_items_orderable", "no cart items can be ordered", http.StatusBadRequest))
	case errors.As(err, &conflict):
		rejected := make([]map[string]any, 0, len(conflict.Rejected))
		for _, row := range conflict.Rejected {
			rejected = append(rejected, map[string]any{
				"product_id": row.ProductID,
				"requested":  row.Requested,
				"available":  row.Available,
				"reason":     string(row.Reason),
			})
		}
		httpx.WriteError(ctx, w, httpx.NewError("stock_changed", "stock changed since preview; review your cart", http.StatusConflict).
			WithDetails(map[string]any{"rejected": rejected}))
	case errors.Is(err, services.ErrPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment was declined", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}
