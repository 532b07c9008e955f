package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid input parameters.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogConflict indicates a concurrent modification or duplicate identifier.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUnavailable indicates catalog dependencies are currently unavailable.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
	// ErrStockAdjustmentRejected indicates the adjustment would push stock below zero.
	ErrStockAdjustmentRejected = errors.New("catalog: stock adjustment rejected")
)

// CatalogServiceDeps wires the dependencies required by the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	IDGen    func() string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	now      func() time.Time
	idGen    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return "prod_" + strings.ToLower(ulid.Make().String()) }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products: deps.Products,
		now: func() time.Time {
			return clock().UTC()
		},
		idGen:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateProductError(err)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateProductError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.AvailableQuantity < 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	if !cmd.Price.IsSet() {
		return Product{}, ErrCatalogInvalidInput
	}

	now := s.now()
	product := Product{
		ID:                strings.TrimSpace(cmd.ProductID),
		Name:              name,
		Description:       strings.TrimSpace(cmd.Description),
		Price:             cmd.Price,
		AvailableQuantity: cmd.AvailableQuantity,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if product.ID == "" {
		product.ID = s.idGen()
	}
	if cmd.Active != nil {
		product.Active = *cmd.Active
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.translateProductError(err)
	}
	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": product.ID,
		"actorId":   cmd.ActorID,
	})
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(cmd.ProductID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.AvailableQuantity < 0 {
		return Product{}, ErrCatalogInvalidInput
	}

	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateProductError(err)
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		current.Name = name
	}
	if desc := strings.TrimSpace(cmd.Description); desc != "" {
		current.Description = desc
	}
	if cmd.Price.IsSet() {
		current.Price = cmd.Price
	}
	current.AvailableQuantity = cmd.AvailableQuantity
	if cmd.Active != nil {
		current.Active = *cmd.Active
	}
	current.UpdatedAt = s.now()

	if err := s.products.Update(ctx, current); err != nil {
		return Product{}, s.translateProductError(err)
	}
	s.logger(ctx, "catalog.product.updated", map[string]any{
		"productId": current.ID,
		"actorId":   cmd.ActorID,
	})
	return current, nil
}

// DeactivateProduct retires a product from sale. Products referenced by orders
// are never deleted physically; deactivation is the only destructive catalog
// operation checkout relies on.
func (s *catalogService) DeactivateProduct(ctx context.Context, productID string, actorID string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateProductError(err)
	}
	if !current.Active {
		return current, nil
	}
	current.Active = false
	current.UpdatedAt = s.now()
	if err := s.products.Update(ctx, current); err != nil {
		return Product{}, s.translateProductError(err)
	}
	s.logger(ctx, "catalog.product.deactivated", map[string]any{
		"productId": id,
		"actorId":   actorID,
	})
	return current, nil
}

func (s *catalogService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(cmd.ProductID)
	if id == "" || cmd.Delta == 0 {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.AdjustStock(ctx, id, cmd.Delta, s.now())
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			return Product{}, ErrStockAdjustmentRejected
		}
		return Product{}, s.translateProductError(err)
	}
	s.logger(ctx, "catalog.stock.adjusted", map[string]any{
		"productId": id,
		"delta":     cmd.Delta,
		"actorId":   cmd.ActorID,
	})
	return product, nil
}

func (s *catalogService) translateProductError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrProductNotFound
		case repoErr.IsConflict():
			return ErrCatalogConflict
		default:
			return ErrCatalogUnavailable
		}
	}
	return ErrCatalogUnavailable
}
