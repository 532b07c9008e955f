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
	"github.com/lumenmarket/api/internal/services"
)

func newOrderRequest(method, target, body, uid string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleCustomer}}))
	}
	return req
}

func TestOrderHandlersListScopedToCustomer(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		listFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			if filter.CustomerID != "cust-7" {
				t.Fatalf("expected listing scoped to cust-7, got %q", filter.CustomerID)
			}
			if len(filter.Status) != 1 || filter.Status[0] != "paid" {
				t.Fatalf("expected status filter [paid], got %v", filter.Status)
			}
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{
						ID:          "ord_1",
						OrderNumber: "LM-2025-000042",
						CustomerID:  "cust-7",
						Status:      domain.OrderStatusPaid,
						Total:       domain.MustMoney("80.00", "EUR"),
						CreatedAt:   now,
					},
				},
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodGet, "/orders?status=paid", "", "cust-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Orders []orderPayload `json:"orders"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].OrderNumber != "LM-2025-000042" {
		t.Fatalf("unexpected orders payload %+v", resp.Orders)
	}
}

func TestOrderHandlersListRejectsUnknownStatus(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodGet, "/orders?status=refunded", "", "cust-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
			if cmd.OrderID != "ord_1" || cmd.CustomerID != "cust-7" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Order{
				ID:         "ord_1",
				CustomerID: "cust-7",
				Status:     domain.OrderStatusShipped,
				Total:      domain.MustMoney("80.00", "EUR"),
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodGet, "/orders/ord_1", "", "cust-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Order orderPayload `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "shipped" {
		t.Fatalf("expected shipped order, got %+v", resp.Order)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodGet, "/orders/ord_other", "", "cust-7"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "order_not_found" {
		t.Fatalf("expected order_not_found, got %v", body["error"])
	}
}

func TestOrderHandlersCancelWithReason(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.OrderID != "ord_1" || cmd.CustomerID != "cust-7" || cmd.Reason != "changed my mind" {
				t.Fatalf("unexpected cancel command %+v", cmd)
			}
			return services.Order{
				ID:           "ord_1",
				CustomerID:   "cust-7",
				Status:       domain.OrderStatusCancelled,
				CancelReason: cmd.Reason,
				CancelledAt:  &now,
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodDelete, "/orders/ord_1", `{"reason":"changed my mind"}`, "cust-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Order orderPayload `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "cancelled" || resp.Order.CancelReason != "changed my mind" {
		t.Fatalf("unexpected cancelled order %+v", resp.Order)
	}
	if resp.Order.CancelledAt == "" {
		t.Fatalf("expected cancelled_at to be set")
	}
}

func TestOrderHandlersCancelWithoutBody(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.Reason != "" {
				t.Fatalf("expected empty reason, got %q", cmd.Reason)
			}
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodDelete, "/orders/ord_1", "", "cust-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for bodyless cancel, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestOrderHandlersCancelConflict(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderCannotCancel
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newOrderRequest(http.MethodDelete, "/orders/ord_1", "", "cust-7"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "cannot_cancel" {
		t.Fatalf("expected cannot_cancel, got %v", body["error"])
	}
}

func TestOrderHandlersUnauthenticated(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	rr := httptest.NewRecorder()
	handler.listOrders(rr, newOrderRequest(http.MethodGet, "/orders", "", ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
