package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Money              = domain.Money
	Product            = domain.Product
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService manages products for public browsing and admin maintenance.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeactivateProduct(ctx context.Context, productID string, actorID string) (Product, error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error)
}

// CartService manages mutable cart state with price snapshots taken at add time.
type CartService interface {
	GetCart(ctx context.Context, customerID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	ChangeQuantity(ctx context.Context, cmd ChangeCartQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, customerID string) error
}

// CheckoutService coordinates the preview projection and the confirm saga.
type CheckoutService interface {
	Preview(ctx context.Context, customerID string) (CheckoutPreview, error)
	Confirm(ctx context.Context, cmd ConfirmCheckoutCommand) (Order, error)
}

// OrderService encapsulates order reads, the lifecycle state machine, and
// the cancellation/refund flows.
type OrderService interface {
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	MarkProcessing(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	MarkShipped(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	ForceCancel(ctx context.Context, cmd ForceCancelOrderCommand) (Order, error)
	HardDelete(ctx context.Context, cmd HardDeleteOrderCommand) error
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// CounterService issues monotonically increasing sequence values and the
// formatted identifiers built from them.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	Prefix       string
	Suffix       string
	PadLength    int
	MaxValue     *int64
	InitialValue *int64
	Formatter    func(now time.Time, value int64) string
}

// CounterValue is a raw sequence value together with its formatted rendering.
type CounterValue struct {
	Value     int64
	Formatted string
}

// OrderEvent is the lifecycle notification published after order mutations.
type OrderEvent struct {
	Type        string
	OrderID     string
	OrderNumber string
	CustomerID  string
	Status      string
	OccurredAt  time.Time
}

// OrderEventPublisher accepts order lifecycle notifications for downstream processing.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// ErrChargeDeclined is wrapped by PaymentGateway implementations when the
// PSP rejects the charge itself. Any other Charge error is an infrastructure
// fault and must not be reported to the customer as a decline.
var ErrChargeDeclined = errors.New("services: charge declined")

// PaymentGateway mirrors payments.Gateway so services can be tested with stubs.
type PaymentGateway interface {
	Charge(ctx context.Context, req GatewayChargeRequest) (string, error)
	Refund(ctx context.Context, req GatewayRefundRequest) error
}

// GatewayChargeRequest is the charge payload forwarded to the PSP boundary.
type GatewayChargeRequest struct {
	CustomerID     string
	Amount         Money
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// GatewayRefundRequest is the refund payload forwarded to the PSP boundary.
type GatewayRefundRequest struct {
	PaymentRef     string
	Amount         Money
	Reason         string
	IdempotencyKey string
}

// Command and DTO definitions ------------------------------------------------

type ProductListFilter struct {
	ActiveOnly bool
	Pagination Pagination
}

type UpsertProductCommand struct {
	ProductID         string
	Name              string
	Description       string
	Price             Money
	AvailableQuantity int
	Active            *bool
	ActorID           string
}

type AdjustStockCommand struct {
	ProductID string
	Delta     int
	ActorID   string
}

type AddCartItemCommand struct {
	CustomerID string
	ProductID  string
	Quantity   int
}

type ChangeCartQuantityCommand struct {
	CustomerID string
	ProductID  string
	Quantity   int
}

type RemoveCartItemCommand struct {
	CustomerID string
	ProductID  string
}

// CheckoutPreview projects the live cart against the live catalog.
type CheckoutPreview struct {
	Token       string
	ValidRows   []PreviewRow
	Discarded   []DiscardedRow
	Total       Money
	GeneratedAt time.Time
}

// PreviewRow is an orderable cart line priced at the current product price.
type PreviewRow struct {
	ProductID string
	Name      string
	UnitPrice Money
	Quantity  int
	Subtotal  Money
}

// DiscardedRow explains why a cart line cannot be ordered right now.
type DiscardedRow struct {
	ProductID string
	Name      string
	Reason    string
}

type ConfirmCheckoutCommand struct {
	CustomerID string
	// PreviewToken is accepted but not validated; confirm always re-prices.
	PreviewToken   string
	IdempotencyKey string
}

type OrderListFilter = repositories.OrderListFilter

type GetOrderCommand struct {
	OrderID string
	// CustomerID scopes the read; empty means an admin read without ownership check.
	CustomerID string
}

type CancelOrderCommand struct {
	OrderID    string
	CustomerID string
	Reason     string
}

type OrderTransitionCommand struct {
	OrderID string
	ActorID string
}

type ForceCancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

type HardDeleteOrderCommand struct {
	OrderID string
	ActorID string
}

type CounterCommand struct {
	CounterID string
	Step      int64
}
