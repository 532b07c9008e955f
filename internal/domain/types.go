package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus normalises a raw status string, reporting whether it is a
// known lifecycle state.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled:
		return status, true
	default:
		return "", false
	}
}

// Product is a sellable catalog entry carrying its own stock level.
type Product struct {
	ID                string
	Name              string
	Description       string
	Price             Money
	AvailableQuantity int
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Orderable reports whether the product can satisfy a request for qty units.
func (p Product) Orderable(qty int) bool {
	return p.Active && qty > 0 && p.AvailableQuantity >= qty
}

// CartItem is a single line in a customer's cart. UnitPrice is the price
// snapshot taken when the line was added or last merged; checkout always
// reprices against the live catalog.
type CartItem struct {
	ProductID string
	Quantity  int
	UnitPrice Money
}

// Cart holds a customer's open cart. A customer has at most one.
type Cart struct {
	ID         string
	CustomerID string
	Items      []CartItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Find returns the index of the line for productID, or -1.
func (c Cart) Find(productID string) int {
	id := strings.TrimSpace(productID)
	for i, item := range c.Items {
		if item.ProductID == id {
			return i
		}
	}
	return -1
}

// SnapshotTotal sums UnitPrice x Quantity over all lines using the snapshot
// prices. Lines with mismatched currencies are skipped rather than summed.
func (c Cart) SnapshotTotal() Money {
	total := ZeroMoney(DefaultCurrency)
	for _, item := range c.Items {
		line, err := item.UnitPrice.Mul(item.Quantity)
		if err != nil {
			continue
		}
		if sum, err := total.Add(line); err == nil {
			total = sum
		}
	}
	return total
}

// OrderItem is a denormalized order line. Name and price are copied at
// checkout so history survives later catalog edits.
type OrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   Money
	Quantity    int
	Subtotal    Money
}

// Order is a placed, paid order.
type Order struct {
	ID           string
	OrderNumber  string
	CustomerID   string
	Status       OrderStatus
	Total        Money
	Items        []OrderItem
	PaymentRef   string
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
}

// Pagination captures cursor-based list parameters.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is a single page of results plus the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery bounds a field between two optional values.
type RangeQuery[T any] struct {
	From *T
	To   *T
}
