package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

// AdminHandlers exposes the back-office surface: catalog management, order
// lifecycle transitions, force-cancellation, and system utilities.
type AdminHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	orders  services.OrderService
	system  services.SystemService
}

const maxAdminBodySize = 32 * 1024

// NewAdminHandlers constructs handlers restricted to the admin role.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService, system services.SystemService) *AdminHandlers {
	return &AdminHandlers{
		authn:   authn,
		catalog: catalog,
		orders:  orders,
		system:  system,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}

	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.listProducts)
		pr.Post("/", h.createProduct)
		pr.Get("/{productId}", h.getProduct)
		pr.Put("/{productId}", h.updateProduct)
		pr.Delete("/{productId}", h.deactivateProduct)
		pr.Post("/{productId}/stock", h.adjustStock)
	})

	r.Route("/orders", func(or chi.Router) {
		or.Get("/", h.listOrders)
		or.Get("/{orderId}", h.getOrder)
		or.Put("/{orderId}/processing", h.markProcessing)
		or.Put("/{orderId}/shipped", h.markShipped)
		or.Delete("/{orderId}", h.forceCancel)
		or.Delete("/{orderId}/hard", h.hardDelete)
	})

	r.Route("/system", func(sr chi.Router) {
		sr.Get("/health", h.systemHealth)
		sr.Post("/counters/next", h.nextCounterValue)
	})
}

// Catalog ---------------------------------------------------------------------

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	paging, err := paginationFromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid pagination parameters", http.StatusBadRequest))
		return
	}

	// Admins see retired products too unless they filter explicitly.
	activeOnly := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true")
	page, err := h.catalog.ListProducts(ctx, services.ProductListFilter{
		ActiveOnly: activeOnly,
		Pagination: paging,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"products":        items,
		"next_page_token": page.NextPageToken,
	})
}

func (h *AdminHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

type upsertProductRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Price             *string `json:"price"`
	Currency          string  `json:"currency"`
	AvailableQuantity int     `json:"available_quantity"`
	Active            *bool   `json:"active"`
}

func (req upsertProductRequest) command(productID, actorID string) (services.UpsertProductCommand, error) {
	cmd := services.UpsertProductCommand{
		ProductID:         productID,
		Name:              req.Name,
		Description:       req.Description,
		AvailableQuantity: req.AvailableQuantity,
		Active:            req.Active,
		ActorID:           actorID,
	}
	if req.Price != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*req.Price))
		if err != nil {
			return cmd, errors.New("price must be a decimal string")
		}
		currency := strings.TrimSpace(req.Currency)
		if currency == "" {
			currency = domain.DefaultCurrency
		}
		price, err := domain.NewMoney(amount, currency)
		if err != nil {
			return cmd, err
		}
		cmd.Price = price
	}
	return cmd, nil
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	var req upsertProductRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	cmd, err := req.command("", adminActorID(ctx))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, cmd)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	var req upsertProductRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	cmd, err := req.command(chi.URLParam(r, "productId"), adminActorID(ctx))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, cmd)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	product, err := h.catalog.DeactivateProduct(ctx, chi.URLParam(r, "productId"), adminActorID(ctx))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

func (h *AdminHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	var req adjustStockRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	product, err := h.catalog.AdjustStock(ctx, services.AdjustStockCommand{
		ProductID: chi.URLParam(r, "productId"),
		Delta:     req.Delta,
		ActorID:   adminActorID(ctx),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

// Orders ----------------------------------------------------------------------

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	paging, err := paginationFromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid pagination parameters", http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		CustomerID: strings.TrimSpace(r.URL.Query().Get("customer_id")),
		Pagination: paging,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
			return
		}
		filter.Status = []string{string(status)}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("created_after")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be RFC3339", http.StatusBadRequest))
			return
		}
		filter.DateRange.From = &from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("created_before")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be RFC3339", http.StatusBadRequest))
			return
		}
		filter.DateRange.To = &to
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orders":          items,
		"next_page_token": page.NextPageToken,
	})
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{OrderID: chi.URLParam(r, "orderId")})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *AdminHandlers) markProcessing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
		return h.orders.MarkProcessing(ctx, cmd)
	})
}

func (h *AdminHandlers) markShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
		return h.orders.MarkShipped(ctx, cmd)
	})
}

func (h *AdminHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, services.OrderTransitionCommand) (services.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	order, err := apply(ctx, services.OrderTransitionCommand{
		OrderID: chi.URLParam(r, "orderId"),
		ActorID: adminActorID(ctx),
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type forceCancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandlers) forceCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	var req forceCancelRequest
	if body, err := readLimitedBody(r, maxAdminBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	order, err := h.orders.ForceCancel(ctx, services.ForceCancelOrderCommand{
		OrderID: chi.URLParam(r, "orderId"),
		ActorID: adminActorID(ctx),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *AdminHandlers) hardDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	if err := h.orders.HardDelete(ctx, services.HardDeleteOrderCommand{
		OrderID: chi.URLParam(r, "orderId"),
		ActorID: adminActorID(ctx),
	}); err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// System ----------------------------------------------------------------------

func (h *AdminHandlers) systemHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_error", "failed to collect health report", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}

type nextCounterRequest struct {
	CounterID string `json:"counter_id"`
	Step      int64  `json:"step"`
}

func (h *AdminHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	var req nextCounterRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{CounterID: req.CounterID, Step: req.Step})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"counter_id": req.CounterID,
		"value":      value,
	})
}

// Shared ----------------------------------------------------------------------

func (h *AdminHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *AdminHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "product was modified concurrently", http.StatusConflict))
	case errors.Is(err, services.ErrStockAdjustmentRejected):
		httpx.WriteError(ctx, w, httpx.NewError("stock_adjustment_rejected", "adjustment would push stock below zero", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

func writeAdminUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("admin_service_unavailable", "admin service is unavailable", http.StatusServiceUnavailable))
}

func adminActorID(ctx context.Context) string {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil {
		return ""
	}
	return strings.TrimSpace(identity.UID)
}
