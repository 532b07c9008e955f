package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists order headers within Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Set(ctx, id, newOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns a page of orders, newest first, optionally scoped to one
// customer and a status/date filter.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
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
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(orderCollection).Query
	if customer := strings.TrimSpace(filter.CustomerID); customer != "" {
		query = query.Where("customerRef", "==", customer)
	}
	if len(filter.Status) == 1 {
		query = query.Where("status", "==", filter.Status[0])
	} else if len(filter.Status) > 1 {
		query = query.Where("status", "in", filter.Status)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, lastID, err := decodeCreatedAtToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		query = query.StartAfter(createdAt, lastID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		order, err := doc.toDomain(snap.Ref.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		orders = append(orders, order)
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeCreatedAtToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// HardDelete removes the order document permanently. Status guards live in
// the service layer.
func (r *OrderRepository) HardDelete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("orders.hardDelete", err)
	}
	return nil
}

// Helper structures ---------------------------------------------------------

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	CustomerRef   string              `firestore:"customerRef"`
	Status        string              `firestore:"status"`
	TotalAmount   string              `firestore:"totalAmount"`
	TotalCurrency string              `firestore:"totalCurrency"`
	Items         []orderItemDocument `firestore:"items"`
	PaymentRef    string              `firestore:"paymentRef,omitempty"`
	CancelReason  string              `firestore:"cancelReason,omitempty"`
	CancelledAt   *time.Time          `firestore:"cancelledAt,omitempty"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef        string `firestore:"productRef"`
	ProductName       string `firestore:"productName"`
	Quantity          int    `firestore:"qty"`
	UnitPriceAmount   string `firestore:"unitPriceAmount"`
	UnitPriceCurrency string `firestore:"unitPriceCurrency"`
	SubtotalAmount    string `firestore:"subtotalAmount"`
	SubtotalCurrency  string `firestore:"subtotalCurrency"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductRef:        strings.TrimSpace(item.ProductID),
			ProductName:       strings.TrimSpace(item.ProductName),
			Quantity:          item.Quantity,
			UnitPriceAmount:   item.UnitPrice.Amount().String(),
			UnitPriceCurrency: item.UnitPrice.Currency(),
			SubtotalAmount:    item.Subtotal.Amount().String(),
			SubtotalCurrency:  item.Subtotal.Currency(),
		}
	}
	return orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		CustomerRef:   strings.TrimSpace(order.CustomerID),
		Status:        string(order.Status),
		TotalAmount:   order.Total.Amount().String(),
		TotalCurrency: order.Total.Currency(),
		Items:         items,
		PaymentRef:    strings.TrimSpace(order.PaymentRef),
		CancelReason:  strings.TrimSpace(order.CancelReason),
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	total, err := decodeMoney(d.TotalAmount, d.TotalCurrency)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s total: %w", id, err)
	}
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		unitPrice, err := decodeMoney(item.UnitPriceAmount, item.UnitPriceCurrency)
		if err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s line %s: %w", id, item.ProductRef, err)
		}
		subtotal, err := decodeMoney(item.SubtotalAmount, item.SubtotalCurrency)
		if err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s line %s: %w", id, item.ProductRef, err)
		}
		items[i] = domain.OrderItem{
			ProductID:   strings.TrimSpace(item.ProductRef),
			ProductName: strings.TrimSpace(item.ProductName),
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
		}
	}
	status, ok := domain.ParseOrderStatus(d.Status)
	if !ok {
		return domain.Order{}, fmt.Errorf("decode order %s: unknown status %q", id, d.Status)
	}
	return domain.Order{
		ID:           id,
		OrderNumber:  strings.TrimSpace(d.OrderNumber),
		CustomerID:   strings.TrimSpace(d.CustomerRef),
		Status:       status,
		Total:        total,
		Items:        items,
		PaymentRef:   strings.TrimSpace(d.PaymentRef),
		CancelReason: strings.TrimSpace(d.CancelReason),
		CancelledAt:  d.CancelledAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
