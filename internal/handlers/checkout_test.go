package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/repositories"
	"github.com/lumenmarket/api/internal/services"
)

func newCheckoutRequest(method, target, body, uid string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleCustomer}}))
	}
	return req
}

func TestCheckoutHandlersPreview(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	service := &stubCheckoutService{
		previewFunc: func(ctx context.Context, customerID string) (services.CheckoutPreview, error) {
			if customerID != "cust-7" {
				t.Fatalf("unexpected customer id %q", customerID)
			}
			return services.CheckoutPreview{
				Token: "pv_abc",
				ValidRows: []services.PreviewRow{
					{
						ProductID: "prod_lamp",
						Name:      "Desk Lamp",
						UnitPrice: domain.MustMoney("40.00", "EUR"),
						Quantity:  2,
						Subtotal:  domain.MustMoney("80.00", "EUR"),
					},
				},
				Discarded: []services.DiscardedRow{
					{ProductID: "prod_retired", Name: "Retired Vase", Reason: "not available"},
				},
				Total:       domain.MustMoney("80.00", "EUR"),
				GeneratedAt: now,
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodGet, "/checkout/preview", "", "cust-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp previewPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "pv_abc" {
		t.Fatalf("expected preview token pv_abc, got %q", resp.Token)
	}
	if len(resp.Items) != 1 || resp.Items[0].Subtotal.String() != "80.00 EUR" {
		t.Fatalf("unexpected preview items %+v", resp.Items)
	}
	if len(resp.Discarded) != 1 || resp.Discarded[0].Reason != "not available" {
		t.Fatalf("unexpected discarded rows %+v", resp.Discarded)
	}
}

func TestCheckoutHandlersConfirmCreated(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			if cmd.CustomerID != "cust-7" {
				t.Fatalf("unexpected customer id %q", cmd.CustomerID)
			}
			if cmd.PreviewToken != "pv_abc" {
				t.Fatalf("expected preview token forwarded, got %q", cmd.PreviewToken)
			}
			if cmd.IdempotencyKey != "idem-123" {
				t.Fatalf("expected idempotency key forwarded, got %q", cmd.IdempotencyKey)
			}
			return services.Order{
				ID:          "ord_1",
				OrderNumber: "LM-2025-000001",
				CustomerID:  "cust-7",
				Status:      domain.OrderStatusPaid,
				Total:       domain.MustMoney("80.00", "EUR"),
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := newCheckoutRequest(http.MethodPost, "/checkout/confirm", `{"preview_token":"pv_abc"}`, "cust-7")
	req.Header.Set("Idempotency-Key", "idem-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Order orderPayload `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.OrderNumber != "LM-2025-000001" || resp.Order.Status != "paid" {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
}

func TestCheckoutHandlersConfirmWithoutBody(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			if cmd.PreviewToken != "" {
				t.Fatalf("expected empty preview token, got %q", cmd.PreviewToken)
			}
			return services.Order{ID: "ord_2", Status: domain.OrderStatusPaid}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for bodyless confirm, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutHandlersConfirmStockConflict(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			return services.Order{}, &services.StockConflictError{
				Rejected: []repositories.StockRejection{
					{
						ProductID: "prod_lamp",
						Requested: 5,
						Available: 2,
						Reason:    repositories.StockRejectionInsufficient,
					},
				},
			}
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Error    string `json:"error"`
		Rejected []struct {
			ProductID string `json:"product_id"`
			Requested int    `json:"requested"`
			Available int    `json:"available"`
			Reason    string `json:"reason"`
		} `json:"rejected"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error != "stock_changed" {
		t.Fatalf("expected stock_changed, got %q", body.Error)
	}
	if len(body.Rejected) != 1 {
		t.Fatalf("expected 1 rejected row, got %d", len(body.Rejected))
	}
	row := body.Rejected[0]
	if row.ProductID != "prod_lamp" || row.Requested != 5 || row.Available != 2 || row.Reason != "insufficient" {
		t.Fatalf("unexpected rejected row %+v", row)
	}
}

func TestCheckoutHandlersConfirmPaymentDeclined(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			return services.Order{}, services.ErrPaymentFailed
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "payment_failed" {
		t.Fatalf("expected payment_failed, got %v", body["error"])
	}
}

func TestCheckoutHandlersConfirmNoItemsOrderable(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			return services.Order{}, services.ErrNoItemsOrderable
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "no_items_orderable" {
		t.Fatalf("expected no_items_orderable, got %v", body["error"])
	}
}

func TestCheckoutHandlersConfirmRateLimited(t *testing.T) {
	confirms := 0
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
			confirms++
			return services.Order{ID: "ord_1", Status: domain.OrderStatusPaid}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, WithConfirmRateLimit(2, time.Minute))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected status 201, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-7"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 on third attempt, got %d", rr.Code)
	}
	if confirms != 2 {
		t.Fatalf("expected 2 confirms to reach the service, got %d", confirms)
	}

	// A different customer is throttled independently.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", "cust-8"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for other customer, got %d", rr.Code)
	}
}

func TestCheckoutHandlersUnauthenticated(t *testing.T) {
	handler := NewCheckoutHandlers(nil, &stubCheckoutService{})
	rr := httptest.NewRecorder()
	handler.confirm(rr, newCheckoutRequest(http.MethodPost, "/checkout/confirm", "", ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
