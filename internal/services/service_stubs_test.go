package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

// stubRepoError is the in-memory stand-in for persistence failures.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return &stubRepoError{msg: msg, notFound: true} }

type stubProductRepository struct {
	products map[string]domain.Product

	insertErr    error
	findErr      error
	decrementErr error
	restoreErr   error
	adjustFn     func(ctx context.Context, productID string, delta int, now time.Time) (domain.Product, error)
	listPage     domain.CursorPage[domain.Product]
	listErr      error

	decrementCalls [][]repositories.StockLine
	restoreCalls   [][]repositories.StockLine
	saved          []domain.Product
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.saved = append(s.saved, product)
	return nil
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.products == nil {
		s.products = map[string]domain.Product{}
	}
	s.products[product.ID] = product
	s.saved = append(s.saved, product)
	return nil
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error { return nil }

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findErr != nil {
		return domain.Product{}, s.findErr
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product missing")
	}
	return product, nil
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	return s.listPage, s.listErr
}

func (s *stubProductRepository) DecrementStock(ctx context.Context, lines []repositories.StockLine, now time.Time) error {
	s.decrementCalls = append(s.decrementCalls, lines)
	if s.decrementErr != nil {
		return s.decrementErr
	}
	for _, line := range lines {
		product := s.products[line.ProductID]
		product.AvailableQuantity -= line.Quantity
		s.products[line.ProductID] = product
	}
	return nil
}

func (s *stubProductRepository) RestoreStock(ctx context.Context, lines []repositories.StockLine, now time.Time) error {
	s.restoreCalls = append(s.restoreCalls, lines)
	if s.restoreErr != nil {
		return s.restoreErr
	}
	for _, line := range lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			continue
		}
		product.AvailableQuantity += line.Quantity
		s.products[line.ProductID] = product
	}
	return nil
}

func (s *stubProductRepository) AdjustStock(ctx context.Context, productID string, delta int, now time.Time) (domain.Product, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, productID, delta, now)
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product missing")
	}
	product.AvailableQuantity += delta
	s.products[productID] = product
	return product, nil
}

type stubCartRepository struct {
	carts   map[string]domain.Cart
	getErr  error
	saveErr error

	saveCalls []domain.Cart
}

func (s *stubCartRepository) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	if s.getErr != nil {
		return domain.Cart{}, s.getErr
	}
	cart, ok := s.carts[customerID]
	if !ok {
		return domain.Cart{}, notFoundErr("cart missing")
	}
	return cart, nil
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveErr != nil {
		return domain.Cart{}, s.saveErr
	}
	if s.carts == nil {
		s.carts = map[string]domain.Cart{}
	}
	s.carts[cart.CustomerID] = cart
	s.saveCalls = append(s.saveCalls, cart)
	return cart, nil
}

func (s *stubCartRepository) Delete(ctx context.Context, customerID string) error {
	delete(s.carts, customerID)
	return nil
}

type stubOrderRepository struct {
	orders    map[string]domain.Order
	insertErr error
	updateErr error
	listPage  domain.CursorPage[domain.Order]
	listErr   error

	inserted []domain.Order
	updated  []domain.Order
	deleted  []string
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.orders == nil {
		s.orders = map[string]domain.Order{}
	}
	s.orders[order.ID] = order
	s.inserted = append(s.inserted, order)
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.orders[order.ID] = order
	s.updated = append(s.updated, order)
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("order missing")
	}
	return order, nil
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return s.listPage, s.listErr
}

func (s *stubOrderRepository) HardDelete(ctx context.Context, orderID string) error {
	delete(s.orders, orderID)
	s.deleted = append(s.deleted, orderID)
	return nil
}

type stubGateway struct {
	chargeRef  string
	chargeErr  error
	refundErr  error
	charges    []GatewayChargeRequest
	refunds    []GatewayRefundRequest
	chargeSeen int
}

func (s *stubGateway) Charge(ctx context.Context, req GatewayChargeRequest) (string, error) {
	s.chargeSeen++
	s.charges = append(s.charges, req)
	if s.chargeErr != nil {
		return "", s.chargeErr
	}
	if s.chargeRef == "" {
		return "pi_test", nil
	}
	return s.chargeRef, nil
}

func (s *stubGateway) Refund(ctx context.Context, req GatewayRefundRequest) error {
	s.refunds = append(s.refunds, req)
	return s.refundErr
}

type stubPublisher struct {
	events     []OrderEvent
	publishErr error
}

func (s *stubPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	s.events = append(s.events, event)
	if s.publishErr != nil {
		return "", s.publishErr
	}
	return "msg-1", nil
}

type stubOrderCounter struct {
	next    int64
	nextErr error
}

func (s *stubOrderCounter) Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
	if s.nextErr != nil {
		return CounterValue{}, s.nextErr
	}
	s.next++
	return CounterValue{Value: s.next}, nil
}

func (s *stubOrderCounter) NextOrderNumber(ctx context.Context) (string, error) {
	if s.nextErr != nil {
		return "", s.nextErr
	}
	s.next++
	return "LM-2025-" + padSeq(s.next), nil
}

func padSeq(v int64) string {
	digits := []byte{'0', '0', '0', '0', '0', '0'}
	for i := len(digits) - 1; i >= 0 && v > 0; i-- {
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits)
}

var (
	errStubUnavailable = errors.New("stub: backend unavailable")

	_ repositories.ProductRepository = (*stubProductRepository)(nil)
	_ repositories.CartRepository    = (*stubCartRepository)(nil)
	_ repositories.OrderRepository   = (*stubOrderRepository)(nil)
	_ PaymentGateway                 = (*stubGateway)(nil)
	_ OrderEventPublisher            = (*stubPublisher)(nil)
	_ CounterService                 = (*stubOrderCounter)(nil)
)
