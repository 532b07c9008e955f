package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/platform/pagination"
	"github.com/lumenmarket/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{provider: provider, base: base}, nil
}

// Insert creates the product document, failing when the ID already exists.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newProductDocument(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update replaces the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	if _, err := r.base.Set(ctx, id, newProductDocument(product)); err != nil {
		return err
	}
	return nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns a page of products ordered by creation time, newest first.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	query := client.Collection(productCollection).Query
	if filter.ActiveOnly {
		query = query.Where("active", "==", true)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, lastID, err := decodeCreatedAtToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		query = query.StartAfter(createdAt, lastID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		product, err := doc.toDomain(snap.Ref.ID)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		products = append(products, product)
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeCreatedAtToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

// DecrementStock subtracts every requested quantity in one transaction. When
// any line cannot be honoured no stock changes and the returned StockError
// lists all rejected lines.
func (r *ProductRepository) DecrementStock(ctx context.Context, lines []repositories.StockLine, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if len(lines) == 0 {
		return errors.New("product repository: at least one stock line is required")
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return errors.New("product repository: stock line product id is required")
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("product repository: quantity for %s must be > 0", line.ProductID)
		}
	}

	ts := now.UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type pendingWrite struct {
			ref *firestore.DocumentRef
			doc productDocument
		}

		// All reads happen before any write so a partial decrement never commits.
		var (
			rejected []repositories.StockRejection
			writes   []pendingWrite
		)
		for _, line := range lines {
			id := strings.TrimSpace(line.ProductID)
			ref, err := r.base.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					rejected = append(rejected, repositories.StockRejection{
						ProductID: id,
						Requested: line.Quantity,
						Reason:    repositories.StockRejectionNotFound,
					})
					continue
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", id, err)
			}
			if !doc.Active {
				rejected = append(rejected, repositories.StockRejection{
					ProductID: id,
					Requested: line.Quantity,
					Available: doc.AvailableQuantity,
					Reason:    repositories.StockRejectionInactive,
				})
				continue
			}
			if doc.AvailableQuantity < line.Quantity {
				rejected = append(rejected, repositories.StockRejection{
					ProductID: id,
					Requested: line.Quantity,
					Available: doc.AvailableQuantity,
					Reason:    repositories.StockRejectionInsufficient,
				})
				continue
			}
			doc.AvailableQuantity -= line.Quantity
			doc.UpdatedAt = ts
			writes = append(writes, pendingWrite{ref: ref, doc: doc})
		}

		if len(rejected) > 0 {
			return repositories.NewStockError("stock decrement rejected", rejected, nil)
		}
		for _, w := range writes {
			if err := tx.Set(w.ref, w.doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			if stockErr.Op == "" {
				stockErr.Op = "products.decrementStock"
			}
			return stockErr
		}
		return pfirestore.WrapError("products.decrementStock", err)
	}
	return nil
}

// RestoreStock adds previously decremented quantities back. Missing products
// are skipped so compensation never fails a saga that already charged.
func (r *ProductRepository) RestoreStock(ctx context.Context, lines []repositories.StockLine, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if len(lines) == 0 {
		return nil
	}

	ts := now.UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type pendingWrite struct {
			ref *firestore.DocumentRef
			doc productDocument
		}
		var writes []pendingWrite
		for _, line := range lines {
			id := strings.TrimSpace(line.ProductID)
			if id == "" || line.Quantity <= 0 {
				continue
			}
			ref, err := r.base.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					continue
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", id, err)
			}
			doc.AvailableQuantity += line.Quantity
			doc.UpdatedAt = ts
			writes = append(writes, pendingWrite{ref: ref, doc: doc})
		}
		for _, w := range writes {
			if err := tx.Set(w.ref, w.doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pfirestore.WrapError("products.restoreStock", err)
	}
	return nil
}

// AdjustStock applies a signed delta to a single product's availability.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int, now time.Time) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	ts := now.UTC()
	var updated domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", id, err)
		}
		next := doc.AvailableQuantity + delta
		if next < 0 {
			return repositories.NewStockError("stock adjustment rejected", []repositories.StockRejection{{
				ProductID: id,
				Requested: -delta,
				Available: doc.AvailableQuantity,
				Reason:    repositories.StockRejectionInsufficient,
			}}, nil)
		}
		doc.AvailableQuantity = next
		doc.UpdatedAt = ts
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		product, err := doc.toDomain(id)
		if err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			if stockErr.Op == "" {
				stockErr.Op = "products.adjustStock"
			}
			return domain.Product{}, stockErr
		}
		return domain.Product{}, pfirestore.WrapError("products.adjustStock", err)
	}
	return updated, nil
}

// Helper structures ---------------------------------------------------------

type productDocument struct {
	Name              string    `firestore:"name"`
	Description       string    `firestore:"description,omitempty"`
	PriceAmount       string    `firestore:"priceAmount"`
	PriceCurrency     string    `firestore:"priceCurrency"`
	AvailableQuantity int       `firestore:"availableQuantity"`
	Active            bool      `firestore:"active"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		Name:              strings.TrimSpace(product.Name),
		Description:       strings.TrimSpace(product.Description),
		PriceAmount:       product.Price.Amount().String(),
		PriceCurrency:     product.Price.Currency(),
		AvailableQuantity: product.AvailableQuantity,
		Active:            product.Active,
		CreatedAt:         product.CreatedAt.UTC(),
		UpdatedAt:         product.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) (domain.Product, error) {
	price, err := decodeMoney(d.PriceAmount, d.PriceCurrency)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s price: %w", id, err)
	}
	return domain.Product{
		ID:                id,
		Name:              strings.TrimSpace(d.Name),
		Description:       strings.TrimSpace(d.Description),
		Price:             price,
		AvailableQuantity: d.AvailableQuantity,
		Active:            d.Active,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

func decodeMoney(amount string, currency string) (domain.Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return domain.Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return domain.NewMoney(value, currency)
}

func encodeCreatedAtToken(createdAt time.Time, id string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), id},
	})
}

func decodeCreatedAtToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	return createdAt, id, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
