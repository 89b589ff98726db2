package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
)

// OrderItemDTO is a frozen order line.
type OrderItemDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderDTO is an order as shown to its buyer.
type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	PaymentMethodLabel string              `json:"payment_method_label"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Shipping           decimal.Decimal     `json:"shipping"`
	Total              decimal.Decimal     `json:"total"`
	ShippingAddress    string              `json:"shipping_address"`
	PostalCode         string              `json:"postal_code"`
	PrescriptionRef    *string             `json:"prescription_ref,omitempty"`
	Cancellable        bool                `json:"cancellable"`
	Items              []OrderItemDTO      `json:"items"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// OrderList is one page of a buyer's orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor"`
}

// ToOrderDTO maps a persisted order.
func ToOrderDTO(order models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return OrderDTO{
		ID:                 order.ID,
		Status:             order.Status,
		PaymentMethod:      order.PaymentMethod,
		PaymentMethodLabel: order.PaymentMethod.Label(),
		Subtotal:           order.Subtotal,
		Shipping:           order.Shipping,
		Total:              order.Total,
		ShippingAddress:    order.ShippingAddress,
		PostalCode:         order.PostalCode,
		PrescriptionRef:    order.PrescriptionRef,
		Cancellable:        order.Status.Cancellable(),
		Items:              items,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}
