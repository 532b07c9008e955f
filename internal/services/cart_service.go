package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input parameters.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartNotFound indicates the customer has no cart.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartProductNotFound indicates the referenced product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartProductInactive indicates the referenced product is retired from sale.
	ErrCartProductInactive = errors.New("cart: product inactive")
	// ErrCartUnavailable indicates cart dependencies are currently unavailable.
	ErrCartUnavailable = errors.New("cart: unavailable")
)

// CartServiceDeps wires the dependencies required by the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCartService constructs a CartService validating required dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetCart returns the customer's cart, creating an empty one on first access.
func (s *cartService) GetCart(ctx context.Context, customerID string) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	customer := strings.TrimSpace(customerID)
	if customer == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, customer)
	if err != nil {
		if isNotFound(err) {
			return s.createEmptyCart(ctx, customer)
		}
		return Cart{}, s.translateCartError(err)
	}
	return cart, nil
}

// AddItem upserts a cart line. An existing line for the product gains the
// added quantity and has its price snapshot refreshed to the current price.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.carts == nil || s.products == nil {
		return Cart{}, ErrCartUnavailable
	}
	customer := strings.TrimSpace(cmd.CustomerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if customer == "" || productID == "" || cmd.Quantity <= 0 {
		return Cart{}, ErrCartInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, ErrCartProductNotFound
		}
		return Cart{}, ErrCartUnavailable
	}
	if !product.Active {
		return Cart{}, ErrCartProductInactive
	}

	cart, err := s.loadOrCreateCart(ctx, customer)
	if err != nil {
		return Cart{}, err
	}

	if idx := cart.Find(productID); idx >= 0 {
		cart.Items[idx].Quantity += cmd.Quantity
		cart.Items[idx].UnitPrice = product.Price
	} else {
		cart.Items = append(cart.Items, CartItem{
			ProductID: productID,
			Quantity:  cmd.Quantity,
			UnitPrice: product.Price,
		})
	}
	cart.UpdatedAt = s.now()

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.translateCartError(err)
	}
	s.logger(ctx, "cart.item.added", map[string]any{
		"customerId": customer,
		"productId":  productID,
		"quantity":   cmd.Quantity,
	})
	return saved, nil
}

// ChangeQuantity overwrites a line's quantity; zero or negative removes the line.
func (s *cartService) ChangeQuantity(ctx context.Context, cmd ChangeCartQuantityCommand) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	customer := strings.TrimSpace(cmd.CustomerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if customer == "" || productID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, customer)
	if err != nil {
		return Cart{}, s.translateCartError(err)
	}

	idx := cart.Find(productID)
	if idx < 0 {
		return Cart{}, ErrCartProductNotFound
	}
	if cmd.Quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		cart.Items[idx].Quantity = cmd.Quantity
	}
	cart.UpdatedAt = s.now()

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.translateCartError(err)
	}
	return saved, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	return s.ChangeQuantity(ctx, ChangeCartQuantityCommand{
		CustomerID: cmd.CustomerID,
		ProductID:  cmd.ProductID,
		Quantity:   0,
	})
}

func (s *cartService) ClearCart(ctx context.Context, customerID string) error {
	if s == nil || s.carts == nil {
		return ErrCartUnavailable
	}
	customer := strings.TrimSpace(customerID)
	if customer == "" {
		return ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, customer)
	if err != nil {
		return s.translateCartError(err)
	}
	cart.Items = nil
	cart.UpdatedAt = s.now()
	if _, err := s.carts.Save(ctx, cart); err != nil {
		return s.translateCartError(err)
	}
	return nil
}

func (s *cartService) loadOrCreateCart(ctx context.Context, customerID string) (Cart, error) {
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		if isNotFound(err) {
			return s.createEmptyCart(ctx, customerID)
		}
		return Cart{}, s.translateCartError(err)
	}
	return cart, nil
}

func (s *cartService) createEmptyCart(ctx context.Context, customerID string) (Cart, error) {
	now := s.now()
	cart := Cart{
		ID:         customerID,
		CustomerID: customerID,
		Items:      []CartItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.translateCartError(err)
	}
	return saved, nil
}

func (s *cartService) translateCartError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return ErrCartNotFound
	}
	return ErrCartUnavailable
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
