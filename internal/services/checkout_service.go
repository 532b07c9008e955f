package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutCartNotFound indicates the customer has no cart to check out.
	ErrCheckoutCartNotFound = errors.New("checkout: cart not found")
	// ErrNoItemsOrderable indicates no cart line survived validation.
	ErrNoItemsOrderable = errors.New("checkout: no items orderable")
	// ErrPaymentFailed indicates the payment gateway declined the charge.
	ErrPaymentFailed = errors.New("checkout: payment failed")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// Discard reasons surfaced on preview rows that cannot be ordered.
const (
	discardReasonMissing  = "product not found"
	discardReasonInactive = "not available"
)

// StockConflictError reports which reservation lines were rejected when stock
// changed between preview and confirmation.
type StockConflictError struct {
	Rejected []repositories.StockRejection
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("checkout: stock changed for %d item(s)", len(e.Rejected))
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Orders      repositories.OrderRepository
	Counters    CounterService
	Gateway     PaymentGateway
	Publisher   OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts     repositories.CartRepository
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	counters  CounterService
	gateway   PaymentGateway
	publisher OrderEventPublisher
	now       func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter service is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "ord_" + strings.ToLower(ulid.Make().String())
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:     deps.Carts,
		products:  deps.Products,
		orders:    deps.Orders,
		counters:  deps.Counters,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Preview validates the customer's cart against the live catalog. Rows priced
// at the current product price survive; missing, inactive, or short-stocked
// lines are reported as discarded with a human readable reason.
func (s *checkoutService) Preview(ctx context.Context, customerID string) (CheckoutPreview, error) {
	if s == nil || s.carts == nil {
		return CheckoutPreview{}, ErrCheckoutUnavailable
	}
	customer := strings.TrimSpace(customerID)
	if customer == "" {
		return CheckoutPreview{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.Get(ctx, customer)
	if err != nil {
		if isNotFound(err) {
			return CheckoutPreview{}, ErrCheckoutCartNotFound
		}
		return CheckoutPreview{}, ErrCheckoutUnavailable
	}

	preview, err := s.buildPreview(ctx, cart)
	if err != nil {
		return CheckoutPreview{}, err
	}
	return preview, nil
}

func (s *checkoutService) buildPreview(ctx context.Context, cart Cart) (CheckoutPreview, error) {
	preview := CheckoutPreview{
		Token:       strings.ToLower(ulid.Make().String()),
		Total:       domain.ZeroMoney(domain.DefaultCurrency),
		GeneratedAt: s.now(),
	}

	for _, line := range cart.Items {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if isNotFound(err) {
				preview.Discarded = append(preview.Discarded, DiscardedRow{
					ProductID: line.ProductID,
					Reason:    discardReasonMissing,
				})
				continue
			}
			return CheckoutPreview{}, ErrCheckoutUnavailable
		}
		if !product.Active {
			preview.Discarded = append(preview.Discarded, DiscardedRow{
				ProductID: product.ID,
				Name:      product.Name,
				Reason:    discardReasonInactive,
			})
			continue
		}
		if product.AvailableQuantity < line.Quantity {
			preview.Discarded = append(preview.Discarded, DiscardedRow{
				ProductID: product.ID,
				Name:      product.Name,
				Reason:    fmt.Sprintf("only %d available", product.AvailableQuantity),
			})
			continue
		}

		subtotal, err := product.Price.Mul(line.Quantity)
		if err != nil {
			return CheckoutPreview{}, ErrCheckoutUnavailable
		}
		preview.ValidRows = append(preview.ValidRows, PreviewRow{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		total, err := preview.Total.Add(subtotal)
		if err != nil {
			return CheckoutPreview{}, ErrCheckoutUnavailable
		}
		preview.Total = total
	}

	return preview, nil
}

// Confirm turns the customer's cart into a paid order. The preview token on
// the command is accepted for client convenience but never trusted: the cart
// is re-priced from the live catalog immediately before reserving stock, so a
// stale token can never charge stale prices.
func (s *checkoutService) Confirm(ctx context.Context, cmd ConfirmCheckoutCommand) (Order, error) {
	if s == nil || s.carts == nil {
		return Order{}, ErrCheckoutUnavailable
	}
	customer := strings.TrimSpace(cmd.CustomerID)
	if customer == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.Get(ctx, customer)
	if err != nil {
		if isNotFound(err) {
			return Order{}, ErrCheckoutCartNotFound
		}
		return Order{}, ErrCheckoutUnavailable
	}

	preview, err := s.buildPreview(ctx, cart)
	if err != nil {
		return Order{}, err
	}
	if len(preview.ValidRows) == 0 {
		return Order{}, ErrNoItemsOrderable
	}

	lines := make([]repositories.StockLine, 0, len(preview.ValidRows))
	for _, row := range preview.ValidRows {
		lines = append(lines, repositories.StockLine{ProductID: row.ProductID, Quantity: row.Quantity})
	}

	if err := s.products.DecrementStock(ctx, lines, s.now()); err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			return Order{}, &StockConflictError{Rejected: stockErr.Rejected}
		}
		return Order{}, ErrCheckoutUnavailable
	}

	paymentRef, err := s.gateway.Charge(ctx, GatewayChargeRequest{
		CustomerID:     customer,
		Amount:         preview.Total,
		Description:    fmt.Sprintf("Lumen Market order for %s", customer),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		s.restoreStock(ctx, lines, "payment failed")
		if errors.Is(err, ErrChargeDeclined) {
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		return Order{}, ErrCheckoutUnavailable
	}

	order, err := s.createOrder(ctx, customer, preview, paymentRef)
	if err != nil {
		s.refundCharge(ctx, paymentRef, preview.Total, "order creation failed")
		s.restoreStock(ctx, lines, "order creation failed")
		return Order{}, ErrCheckoutUnavailable
	}

	s.removeOrderedLines(ctx, cart, preview.ValidRows)
	s.publishEvent(ctx, OrderEvent{
		Type:        "order.created",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  order.CreatedAt,
	})

	s.logger(ctx, "checkout.confirmed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"customerId":  customer,
		"total":       order.Total.String(),
	})
	return order, nil
}

func (s *checkoutService) createOrder(ctx context.Context, customerID string, preview CheckoutPreview, paymentRef string) (Order, error) {
	now := s.now()

	number, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, err
	}

	items := make([]OrderItem, 0, len(preview.ValidRows))
	for _, row := range preview.ValidRows {
		items = append(items, OrderItem{
			ProductID:   row.ProductID,
			ProductName: row.Name,
			UnitPrice:   row.UnitPrice,
			Quantity:    row.Quantity,
			Subtotal:    row.Subtotal,
		})
	}

	order := Order{
		ID:          s.newID(),
		OrderNumber: number,
		CustomerID:  customerID,
		Status:      domain.OrderStatusPaid,
		Total:       preview.Total,
		Items:       items,
		PaymentRef:  paymentRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// removeOrderedLines drops the lines that became order items while keeping
// discarded lines in the cart for the customer to resolve. Failures here are
// logged and swallowed; the order is already placed.
func (s *checkoutService) removeOrderedLines(ctx context.Context, cart Cart, rows []PreviewRow) {
	ordered := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		ordered[row.ProductID] = struct{}{}
	}

	remaining := make([]CartItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		if _, ok := ordered[line.ProductID]; !ok {
			remaining = append(remaining, line)
		}
	}
	cart.Items = remaining
	cart.UpdatedAt = s.now()

	if _, err := s.carts.Save(ctx, cart); err != nil {
		s.logger(ctx, "checkout.cart_cleanup_failed", map[string]any{
			"customerId": cart.CustomerID,
			"error":      err.Error(),
		})
	}
}

func (s *checkoutService) restoreStock(ctx context.Context, lines []repositories.StockLine, cause string) {
	if err := s.products.RestoreStock(ctx, lines, s.now()); err != nil {
		s.logger(ctx, "checkout.stock_restore_failed", map[string]any{
			"cause": cause,
			"error": err.Error(),
		})
	}
}

func (s *checkoutService) refundCharge(ctx context.Context, paymentRef string, amount Money, cause string) {
	if err := s.gateway.Refund(ctx, GatewayRefundRequest{
		PaymentRef: paymentRef,
		Amount:     amount,
		Reason:     cause,
	}); err != nil {
		s.logger(ctx, "checkout.refund_failed", map[string]any{
			"paymentRef": paymentRef,
			"cause":      cause,
			"error":      err.Error(),
		})
	}
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"orderId": event.OrderID,
			"type":    event.Type,
			"error":   err.Error(),
		})
	}
}

var _ CheckoutService = (*checkoutService)(nil)
