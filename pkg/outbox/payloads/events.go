package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/enums"
)

// OrderLine is one frozen cart line inside an order event.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCreatedEvent is emitted when checkout stages a new order.
type OrderCreatedEvent struct {
	OrderID              uuid.UUID           `json:"order_id"`
	UserID               uuid.UUID           `json:"user_id"`
	Status               enums.OrderStatus   `json:"status"`
	PaymentMethod        enums.PaymentMethod `json:"payment_method"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	Shipping             decimal.Decimal     `json:"shipping"`
	Total                decimal.Decimal     `json:"total"`
	Items                []OrderLine         `json:"items"`
	RequiresPrescription bool                `json:"requires_prescription"`
}

// OrderCancelledEvent is emitted when a buyer cancels before shipment.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// PrescriptionRequestedEvent notifies the pharmacy desk of a new quote
// request.
type PrescriptionRequestedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Message     *string   `json:"message,omitempty"`
	FilePath    *string   `json:"file_path,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
