package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/internal/cart"
	"github.com/substractum/storefront/internal/orders"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/outbox"
	"github.com/substractum/storefront/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns an authenticated cart into a staged order.
type Service interface {
	Execute(ctx context.Context, c *cart.Cart, input Input) (orders.OrderDTO, error)
}

// Input captures the buyer's checkout form.
type Input struct {
	PaymentMethod   enums.PaymentMethod
	ShippingAddress string
	PostalCode      string
	PrescriptionRef *string
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	products productLoader
	outbox   outboxPublisher
	shipping decimal.Decimal
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	products productLoader,
	publisher outboxPublisher,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	shipping, err := decimal.NewFromString(strings.TrimSpace(cfg.ShippingFee))
	if err != nil {
		return nil, fmt.Errorf("invalid shipping fee %q: %w", cfg.ShippingFee, err)
	}
	if shipping.IsNegative() {
		return nil, fmt.Errorf("shipping fee must not be negative")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       tx,
		orders:   ordersRepo,
		products: products,
		outbox:   publisher,
		shipping: shipping,
		logg:     logg,
	}, nil
}

// Execute stages the order and its outbox event in one transaction, then
// clears the cart. The cart is left untouched when staging fails.
func (s *service) Execute(ctx context.Context, c *cart.Cart, input Input) (orders.OrderDTO, error) {
	if c == nil || !c.Identity().IsAuthenticated() {
		return orders.OrderDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires an authenticated user")
	}
	if err := validateInput(input); err != nil {
		return orders.OrderDTO{}, err
	}

	items := c.Items()
	if len(items) == 0 {
		return orders.OrderDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items, requiresPrescription, err := s.priceLines(ctx, items)
	if err != nil {
		return orders.OrderDTO{}, err
	}
	if requiresPrescription && (input.PrescriptionRef == nil || strings.TrimSpace(*input.PrescriptionRef) == "") {
		return orders.OrderDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "prescription reference required").
			WithDetails(map[string]any{"field": "prescription_ref"})
	}

	userID := c.Identity().UserID
	totals := cart.ComputeTotals(items)
	order := &models.Order{
		UserID:          userID,
		Subtotal:        totals.TotalPrice,
		Shipping:        s.shipping,
		Total:           totals.TotalPrice.Add(s.shipping),
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		PostalCode:      strings.TrimSpace(input.PostalCode),
		PrescriptionRef: input.PrescriptionRef,
		Items:           make([]models.OrderItem, 0, len(items)),
	}
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.orders.WithTx(tx).CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleUser.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:              created.ID,
				UserID:               userID,
				Status:               created.Status,
				PaymentMethod:        created.PaymentMethod,
				Subtotal:             created.Subtotal,
				Shipping:             created.Shipping,
				Total:                created.Total,
				Items:                lines,
				RequiresPrescription: requiresPrescription,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage order_created event")
		}
		return nil
	})
	if err != nil {
		return orders.OrderDTO{}, err
	}

	c.Clear(ctx)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"total":    order.Total.StringFixed(2),
		"items":    len(order.Items),
	}), "order staged")
	return orders.ToOrderDTO(*order), nil
}

func validateInput(input Input) error {
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"field": "payment_method"})
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required").
			WithDetails(map[string]any{"field": "shipping_address"})
	}
	if strings.TrimSpace(input.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "postal code is required").
			WithDetails(map[string]any{"field": "postal_code"})
	}
	return nil
}

// priceLines re-reads every line from the catalog. Orders are charged at the
// catalog price and name, never the cart snapshot. Lines that are not in the
// catalog or are out of stock fail the checkout.
func (s *service) priceLines(ctx context.Context, items []cart.LineItem) ([]cart.LineItem, bool, error) {
	priced := make([]cart.LineItem, 0, len(items))
	requiresPrescription := false
	for _, item := range items {
		unavailable := pkgerrors.New(pkgerrors.CodeStateConflict, "product no longer available").
			WithDetails(map[string]any{"product_id": item.ProductID})

		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, false, unavailable
		}
		product, err := s.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, unavailable
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.InStock {
			return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "product out of stock").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}

		line := cart.LineItem{
			ProductID: item.ProductID,
			Name:      product.Name,
			ImageURL:  item.ImageURL,
			Price:     product.Price,
			Quantity:  item.Quantity,
		}
		if product.ImageURL != nil {
			line.ImageURL = *product.ImageURL
		}
		priced = append(priced, line)
		requiresPrescription = requiresPrescription || product.RequiresPrescription
	}
	return priced, requiresPrescription, nil
}
