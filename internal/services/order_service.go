package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid input parameters.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrOrderCannotCancel indicates the order is not in a cancellable state.
	ErrOrderCannotCancel = errors.New("orders: cannot cancel")
	// ErrOrderCannotHardDelete indicates a paid order may not be removed.
	ErrOrderCannotHardDelete = errors.New("orders: cannot hard delete")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("orders: invalid status transition")
	// ErrOrderUnavailable indicates order dependencies are currently unavailable.
	ErrOrderUnavailable = errors.New("orders: unavailable")
)

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Products  repositories.ProductRepository
	Gateway   PaymentGateway
	Publisher OrderEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	products  repositories.ProductRepository
	gateway   PaymentGateway
	publisher OrderEventPublisher
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		products:  deps.Products,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateOrderError(err)
	}
	return page, nil
}

// GetOrder loads an order. A non-empty CustomerID scopes the read to that
// customer; orders owned by somebody else read as not found rather than
// leaking their existence.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if customer := strings.TrimSpace(cmd.CustomerID); customer != "" && order.CustomerID != customer {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// Cancel is the customer-facing cancellation: only the owner may cancel and
// only while the order sits in paid. The charge is refunded and stock returns
// to the shelf.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	customer := strings.TrimSpace(cmd.CustomerID)
	if orderID == "" || customer == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.CustomerID != customer {
		return Order{}, ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPaid {
		return Order{}, ErrOrderCannotCancel
	}

	return s.cancelOrder(ctx, order, cmd.Reason, customer)
}

// ForceCancel is the back-office escape hatch. It cancels from any status and
// always compensates, including orders already handed to the carrier. An order
// that is already cancelled is returned as-is so the refund never runs twice.
func (s *orderService) ForceCancel(ctx context.Context, cmd ForceCancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "cancelled by operator"
	}
	return s.cancelOrder(ctx, order, reason, strings.TrimSpace(cmd.ActorID))
}

func (s *orderService) cancelOrder(ctx context.Context, order Order, reason string, actorID string) (Order, error) {
	if order.PaymentRef != "" {
		if err := s.gateway.Refund(ctx, GatewayRefundRequest{
			PaymentRef: order.PaymentRef,
			Amount:     order.Total,
			Reason:     reason,
		}); err != nil {
			return Order{}, ErrOrderUnavailable
		}
	}

	s.restoreOrderStock(ctx, order)

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.CancelReason = strings.TrimSpace(reason)
	order.CancelledAt = &now
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:        "order.cancelled",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  now,
	})
	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": order.ID,
		"actorId": actorID,
		"reason":  order.CancelReason,
	})
	return order, nil
}

// restoreOrderStock puts cancelled quantities back on the shelf. Products
// retired since the purchase are skipped by the repository, so cancellation
// of old orders cannot fail on catalog churn.
func (s *orderService) restoreOrderStock(ctx context.Context, order Order) {
	lines := make([]repositories.StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, repositories.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		return
	}
	if err := s.products.RestoreStock(ctx, lines, s.now()); err != nil {
		s.logger(ctx, "order.stock_restore_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) MarkProcessing(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderStatusPaid, domain.OrderStatusProcessing, "order.processing")
}

func (s *orderService) MarkShipped(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderStatusProcessing, domain.OrderStatusShipped, "order.shipped")
}

func (s *orderService) transition(ctx context.Context, cmd OrderTransitionCommand, from, to OrderStatus, event string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.Status != from {
		return Order{}, ErrOrderInvalidTransition
	}

	now := s.now()
	order.Status = to
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:        event,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  now,
	})
	s.logger(ctx, event, map[string]any{
		"orderId": order.ID,
		"actorId": strings.TrimSpace(cmd.ActorID),
	})
	return order, nil
}

// HardDelete removes an order document entirely. Paid orders are protected:
// they either ship or get cancelled first, so the money trail always resolves
// before the record disappears.
func (s *orderService) HardDelete(ctx context.Context, cmd HardDeleteOrderCommand) error {
	if s == nil || s.orders == nil {
		return ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.translateOrderError(err)
	}
	if order.Status == domain.OrderStatusPaid {
		return ErrOrderCannotHardDelete
	}

	if err := s.orders.HardDelete(ctx, orderID); err != nil {
		return s.translateOrderError(err)
	}
	s.publishEvent(ctx, OrderEvent{
		Type:        "order.deleted",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  s.now(),
	})
	s.logger(ctx, "order.hard_deleted", map[string]any{
		"orderId": orderID,
		"actorId": strings.TrimSpace(cmd.ActorID),
	})
	return nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": event.OrderID,
			"type":    event.Type,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return ErrOrderNotFound
	}
	return ErrOrderUnavailable
}

var _ OrderService = (*orderService)(nil)
