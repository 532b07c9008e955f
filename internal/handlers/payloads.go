package handlers

import (
	"strings"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/services"
)

type productPayload struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Price             domain.Money  `json:"price"`
	AvailableQuantity int           `json:"available_quantity"`
	Active            bool          `json:"active"`
	CreatedAt         string        `json:"created_at,omitempty"`
	UpdatedAt         string        `json:"updated_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:                product.ID,
		Name:              product.Name,
		Description:       product.Description,
		Price:             product.Price,
		AvailableQuantity: product.AvailableQuantity,
		Active:            product.Active,
		CreatedAt:         formatTime(product.CreatedAt),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
}

type cartPayload struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	Items      []cartItemPayload `json:"items"`
	ItemsCount int               `json:"items_count"`
	Total      domain.Money      `json:"total_snapshot"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice domain.Money `json:"unit_price"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return cartPayload{
		ID:         strings.TrimSpace(cart.ID),
		CustomerID: strings.TrimSpace(cart.CustomerID),
		Items:      items,
		ItemsCount: len(items),
		Total:      cart.SnapshotTotal(),
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
}

type orderPayload struct {
	ID           string             `json:"id"`
	OrderNumber  string             `json:"order_number"`
	CustomerID   string             `json:"customer_id"`
	Status       string             `json:"status"`
	Total        domain.Money       `json:"total"`
	Items        []orderItemPayload `json:"items"`
	PaymentRef   string             `json:"payment_ref,omitempty"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	CancelledAt  string             `json:"cancelled_at,omitempty"`
	CreatedAt    string             `json:"created_at,omitempty"`
	UpdatedAt    string             `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	UnitPrice   domain.Money `json:"unit_price"`
	Quantity    int          `json:"quantity"`
	Subtotal    domain.Money `json:"subtotal"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal,
		})
	}
	payload := orderPayload{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		Total:        order.Total,
		Items:        items,
		PaymentRef:   order.PaymentRef,
		CancelReason: order.CancelReason,
		CreatedAt:    formatTime(order.CreatedAt),
		UpdatedAt:    formatTime(order.UpdatedAt),
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	return payload
}

type previewPayload struct {
	Token       string                `json:"preview_token"`
	Items       []previewRowPayload   `json:"items"`
	Discarded   []discardedRowPayload `json:"discarded"`
	Total       domain.Money          `json:"total"`
	GeneratedAt string                `json:"generated_at"`
}

type previewRowPayload struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice domain.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	Subtotal  domain.Money `json:"subtotal"`
}

type discardedRowPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason"`
}

func buildPreviewPayload(preview services.CheckoutPreview) previewPayload {
	items := make([]previewRowPayload, 0, len(preview.ValidRows))
	for _, row := range preview.ValidRows {
		items = append(items, previewRowPayload{
			ProductID: row.ProductID,
			Name:      row.Name,
			UnitPrice: row.UnitPrice,
			Quantity:  row.Quantity,
			Subtotal:  row.Subtotal,
		})
	}
	discarded := make([]discardedRowPayload, 0, len(preview.Discarded))
	for _, row := range preview.Discarded {
		discarded = append(discarded, discardedRowPayload{
			ProductID: row.ProductID,
			Name:      row.Name,
			Reason:    row.Reason,
		})
	}
	return previewPayload{
		Token:       preview.Token,
		Items:       items,
		Discarded:   discarded,
		Total:       preview.Total,
		GeneratedAt: formatTime(preview.GeneratedAt),
	}
}
