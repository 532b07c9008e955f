package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists per-customer carts within Firestore. The customer ID
// doubles as the document ID so each customer owns exactly one cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

// Get loads the cart for the given customer ID.
func (r *CartRepository) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(customerID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: customer id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// Save writes the entire cart document, lines included.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cart.CustomerID)
	if id == "" {
		id = strings.TrimSpace(cart.ID)
	}
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: customer id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := newCartDocument(cart, createdAt, now)
	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved, err := doc.toDomain(id)
	if err != nil {
		return domain.Cart{}, err
	}
	if !result.UpdateTime.IsZero() {
		saved.UpdatedAt = result.UpdateTime
	}
	return saved, nil
}

// Delete removes the customer's cart document.
func (r *CartRepository) Delete(ctx context.Context, customerID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(customerID)
	if id == "" {
		return errors.New("cart repository: customer id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

// Helper structures ---------------------------------------------------------

type cartDocument struct {
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductRef        string `firestore:"productRef"`
	Quantity          int    `firestore:"qty"`
	UnitPriceAmount   string `firestore:"unitPriceAmount"`
	UnitPriceCurrency string `firestore:"unitPriceCurrency"`
}

func newCartDocument(cart domain.Cart, createdAt, updatedAt time.Time) cartDocument {
	items := make([]cartItemDocument, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemDocument{
			ProductRef:        strings.TrimSpace(item.ProductID),
			Quantity:          item.Quantity,
			UnitPriceAmount:   item.UnitPrice.Amount().String(),
			UnitPriceCurrency: item.UnitPrice.Currency(),
		}
	}
	return cartDocument{
		Items:      items,
		ItemsCount: len(items),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func (d cartDocument) toDomain(id string) (domain.Cart, error) {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		price, err := decodeMoney(item.UnitPriceAmount, item.UnitPriceCurrency)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("decode cart %s line %s: %w", id, item.ProductRef, err)
		}
		items[i] = domain.CartItem{
			ProductID: strings.TrimSpace(item.ProductRef),
			Quantity:  item.Quantity,
			UnitPrice: price,
		}
	}
	return domain.Cart{
		ID:         id,
		CustomerID: id,
		Items:      items,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)
