package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/substractum/storefront/internal/cart"
	"github.com/substractum/storefront/internal/orders"
	product "github.com/substractum/storefront/internal/products"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/outbox"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type memoryPersister struct {
	mu     sync.Mutex
	items  []cart.LineItem
	clears int
}

func (p *memoryPersister) Hydrate(context.Context) []cart.LineItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]cart.LineItem(nil), p.items...)
}

func (p *memoryPersister) Sync(_ context.Context, _ cart.LineItem, items []cart.LineItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
}

func (p *memoryPersister) Clear(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
	p.clears++
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func setupCheckoutDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.OutboxEvent{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newCheckoutService(t *testing.T, conn *gorm.DB, publisher outboxPublisher) Service {
	t.Helper()
	if publisher == nil {
		publisher = outbox.NewService(outbox.NewRepository(conn), nil)
	}
	svc, err := NewService(
		db.NewFromGorm(conn),
		orders.NewRepository(conn),
		product.NewRepository(conn),
		publisher,
		config.CheckoutConfig{ShippingFee: "10.00"},
		nil,
	)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, name, price string, rx bool) models.Product {
	t.Helper()
	p, err := product.NewRepository(conn).CreateProduct(context.Background(), &models.Product{
		Name:                 name,
		Price:                decimal.RequireFromString(price),
		Category:             "medicamentos",
		Stock:                10,
		InStock:              true,
		RequiresPrescription: rx,
	})
	require.NoError(t, err)
	return *p
}

func authenticatedCart(t *testing.T, userID uuid.UUID, products ...models.Product) (*cart.Cart, *memoryPersister) {
	t.Helper()
	p := &memoryPersister{}
	c := cart.Open(context.Background(), cart.AuthenticatedIdentity(userID), p)
	for i, prod := range products {
		require.NoError(t, c.AddItem(context.Background(), cart.ProductRefFromModel(prod), i+1))
	}
	return c, p
}

func validInput() Input {
	return Input{
		PaymentMethod:   enums.PaymentMethodPix,
		ShippingAddress: "Rua das Flores, 100",
		PostalCode:      "01001-000",
	}
}

func TestExecuteStagesOrderAndEvent(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	userID := uuid.New()

	dipirona := seedProduct(t, conn, "Dipirona", "12.50", false)
	vitamina := seedProduct(t, conn, "Vitamina C", "20.00", false)
	c, persister := authenticatedCart(t, userID, dipirona, vitamina)

	dto, err := svc.Execute(ctx, c, validInput())
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	assert.True(t, dto.Subtotal.Equal(decimal.RequireFromString("52.50")))
	assert.True(t, dto.Shipping.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, dto.Total.Equal(decimal.RequireFromString("62.50")))
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "PIX", dto.PaymentMethodLabel)

	stored, err := orders.NewRepository(conn).FindForUser(ctx, dto.ID, userID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, "01001-000", stored.PostalCode)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Equal(t, dto.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var data map[string]any
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, false, data["requires_prescription"])

	assert.Empty(t, c.Items())
	assert.Equal(t, 1, persister.clears)
}

func TestExecuteRejectsGuestAndEmptyCarts(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()

	guest := cart.Open(ctx, cart.GuestIdentity("g1"), &memoryPersister{})
	_, err := svc.Execute(ctx, guest, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	empty, _ := authenticatedCart(t, uuid.New())
	_, err = svc.Execute(ctx, empty, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteValidatesInput(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	c, _ := authenticatedCart(t, uuid.New(), seedProduct(t, conn, "Dipirona", "12.50", false))

	cases := map[string]func(*Input){
		"payment_method":   func(in *Input) { in.PaymentMethod = "cash" },
		"shipping_address": func(in *Input) { in.ShippingAddress = "  " },
		"postal_code":      func(in *Input) { in.PostalCode = "" },
	}
	for field, mutate := range cases {
		input := validInput()
		mutate(&input)
		_, err := svc.Execute(ctx, c, input)
		require.Error(t, err, field)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, field)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), field)
		assert.Equal(t, field, typed.Details().(map[string]any)["field"])
	}
	assert.Len(t, c.Items(), 1)
}

func TestExecuteRequiresPrescriptionReference(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	c, _ := authenticatedCart(t, uuid.New(), seedProduct(t, conn, "Amoxicilina", "35.00", true))

	_, err := svc.Execute(ctx, c, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input := validInput()
	ref := "RX-2025-0042"
	input.PrescriptionRef = &ref
	dto, err := svc.Execute(ctx, c, input)
	require.NoError(t, err)
	require.NotNil(t, dto.PrescriptionRef)
	assert.Equal(t, ref, *dto.PrescriptionRef)
}

func TestExecuteChargesCatalogPrice(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	dipirona := seedProduct(t, conn, "Dipirona", "12.50", false)

	c, _ := authenticatedCart(t, uuid.New())
	require.NoError(t, c.AddItem(ctx, cart.ProductRef{ID: dipirona.ID.String()}, 2))
	require.True(t, c.Items()[0].Price.IsZero())

	dto, err := svc.Execute(ctx, c, validInput())
	require.NoError(t, err)
	assert.True(t, dto.Subtotal.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, dto.Total.Equal(decimal.RequireFromString("35.00")))
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "Dipirona", dto.Items[0].Name)
	assert.True(t, dto.Items[0].Price.Equal(decimal.RequireFromString("12.50")))
}

func TestExecuteRejectsLinesMissingFromCatalog(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	dipirona := seedProduct(t, conn, "Dipirona", "12.50", false)

	for _, missing := range []string{uuid.NewString(), "legacy-sku-7"} {
		c, persister := authenticatedCart(t, uuid.New(), dipirona)
		c.UpdateQuantity(ctx, missing, 5)

		_, err := svc.Execute(ctx, c, validInput())
		require.Error(t, err, missing)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, missing)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code(), missing)
		assert.Equal(t, missing, typed.Details().(map[string]any)["product_id"])
		assert.Len(t, c.Items(), 2, missing)
		assert.Zero(t, persister.clears, missing)
	}

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteRejectsOutOfStockLines(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, nil)
	ctx := context.Background()
	soldOut, err := product.NewRepository(conn).CreateProduct(ctx, &models.Product{
		Name:     "Loratadina",
		Price:    decimal.RequireFromString("18.90"),
		Category: "medicamentos",
		InStock:  false,
	})
	require.NoError(t, err)
	c, _ := authenticatedCart(t, uuid.New(), *soldOut)

	_, err = svc.Execute(ctx, c, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Len(t, c.Items(), 1)
}

func TestExecuteKeepsCartWhenStagingFails(t *testing.T) {
	conn := setupCheckoutDB(t)
	svc := newCheckoutService(t, conn, failingEmitter{})
	ctx := context.Background()
	c, persister := authenticatedCart(t, uuid.New(), seedProduct(t, conn, "Dipirona", "12.50", false))

	_, err := svc.Execute(ctx, c, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Len(t, c.Items(), 1)
	assert.Zero(t, persister.clears)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNewServiceRejectsBadShippingFee(t *testing.T) {
	conn := setupCheckoutDB(t)
	_, err := NewService(
		db.NewFromGorm(conn),
		orders.NewRepository(conn),
		product.NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		config.CheckoutConfig{ShippingFee: "ten"},
		nil,
	)
	require.Error(t, err)
}
