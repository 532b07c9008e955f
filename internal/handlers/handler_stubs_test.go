package handlers

import (
	"context"
	"errors"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/services"
)

var errStubFailure = errors.New("stub failure")

type stubCatalogService struct {
	listFunc       func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error)
	getFunc        func(ctx context.Context, productID string) (services.Product, error)
	createFunc     func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	updateFunc     func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	deactivateFunc func(ctx context.Context, productID, actorID string) (services.Product, error)
	adjustFunc     func(ctx context.Context, cmd services.AdjustStockCommand) (services.Product, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Product]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFunc == nil {
		return services.Product{}, services.ErrProductNotFound
	}
	return s.getFunc(ctx, productID)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createFunc == nil {
		return services.Product{}, errStubFailure
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateFunc == nil {
		return services.Product{}, errStubFailure
	}
	return s.updateFunc(ctx, cmd)
}

func (s *stubCatalogService) DeactivateProduct(ctx context.Context, productID, actorID string) (services.Product, error) {
	if s.deactivateFunc == nil {
		return services.Product{}, errStubFailure
	}
	return s.deactivateFunc(ctx, productID, actorID)
}

func (s *stubCatalogService) AdjustStock(ctx context.Context, cmd services.AdjustStockCommand) (services.Product, error) {
	if s.adjustFunc == nil {
		return services.Product{}, errStubFailure
	}
	return s.adjustFunc(ctx, cmd)
}

type stubCartService struct {
	getFunc    func(ctx context.Context, customerID string) (services.Cart, error)
	addFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	changeFunc func(ctx context.Context, cmd services.ChangeCartQuantityCommand) (services.Cart, error)
	removeFunc func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error)
	clearFunc  func(ctx context.Context, customerID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, customerID string) (services.Cart, error) {
	if s.getFunc == nil {
		return services.Cart{}, errStubFailure
	}
	return s.getFunc(ctx, customerID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFunc == nil {
		return services.Cart{}, errStubFailure
	}
	return s.addFunc(ctx, cmd)
}

func (s *stubCartService) ChangeQuantity(ctx context.Context, cmd services.ChangeCartQuantityCommand) (services.Cart, error) {
	if s.changeFunc == nil {
		return services.Cart{}, errStubFailure
	}
	return s.changeFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeFunc == nil {
		return services.Cart{}, errStubFailure
	}
	return s.removeFunc(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, customerID string) error {
	if s.clearFunc == nil {
		return errStubFailure
	}
	return s.clearFunc(ctx, customerID)
}

type stubCheckoutService struct {
	previewFunc func(ctx context.Context, customerID string) (services.CheckoutPreview, error)
	confirmFunc func(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error)
}

func (s *stubCheckoutService) Preview(ctx context.Context, customerID string) (services.CheckoutPreview, error) {
	if s.previewFunc == nil {
		return services.CheckoutPreview{}, errStubFailure
	}
	return s.previewFunc(ctx, customerID)
}

func (s *stubCheckoutService) Confirm(ctx context.Context, cmd services.ConfirmCheckoutCommand) (services.Order, error) {
	if s.confirmFunc == nil {
		return services.Order{}, errStubFailure
	}
	return s.confirmFunc(ctx, cmd)
}

type stubOrderService struct {
	listFunc           func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	getFunc            func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error)
	cancelFunc         func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	markProcessingFunc func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error)
	markShippedFunc    func(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error)
	forceCancelFunc    func(ctx context.Context, cmd services.ForceCancelOrderCommand) (services.Order, error)
	hardDeleteFunc     func(ctx context.Context, cmd services.HardDeleteOrderCommand) error
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
	if s.getFunc == nil {
		return services.Order{}, services.ErrOrderNotFound
	}
	return s.getFunc(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc == nil {
		return services.Order{}, errStubFailure
	}
	return s.cancelFunc(ctx, cmd)
}

func (s *stubOrderService) MarkProcessing(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.markProcessingFunc == nil {
		return services.Order{}, errStubFailure
	}
	return s.markProcessingFunc(ctx, cmd)
}

func (s *stubOrderService) MarkShipped(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	if s.markShippedFunc == nil {
		return services.Order{}, errStubFailure
	}
	return s.markShippedFunc(ctx, cmd)
}

func (s *stubOrderService) ForceCancel(ctx context.Context, cmd services.ForceCancelOrderCommand) (services.Order, error) {
	if s.forceCancelFunc == nil {
		return services.Order{}, errStubFailure
	}
	return s.forceCancelFunc(ctx, cmd)
}

func (s *stubOrderService) HardDelete(ctx context.Context, cmd services.HardDeleteOrderCommand) error {
	if s.hardDeleteFunc == nil {
		return errStubFailure
	}
	return s.hardDeleteFunc(ctx, cmd)
}

type stubSystemService struct {
	report      services.SystemHealthReport
	reportErr   error
	counterFunc func(ctx context.Context, cmd services.CounterCommand) (int64, error)
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.reportErr
}

func (s *stubSystemService) NextCounterValue(ctx context.Context, cmd services.CounterCommand) (int64, error) {
	if s.counterFunc == nil {
		return 0, errStubFailure
	}
	return s.counterFunc(ctx, cmd)
}

type stubEventPublisher struct {
	events []services.OrderEvent
	err    error
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.events = append(s.events, event)
	return "msg-1", nil
}

var (
	_ services.CatalogService      = (*stubCatalogService)(nil)
	_ services.CartService         = (*stubCartService)(nil)
	_ services.CheckoutService     = (*stubCheckoutService)(nil)
	_ services.OrderService        = (*stubOrderService)(nil)
	_ services.SystemService       = (*stubSystemService)(nil)
	_ services.OrderEventPublisher = (*stubEventPublisher)(nil)
)
