package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/substractum/storefront/api/middleware"
	cartsvc "github.com/substractum/storefront/internal/cart"
	checkoutsvc "github.com/substractum/storefront/internal/checkout"
	"github.com/substractum/storefront/internal/orders"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
)

type stubCheckoutService struct {
	order     orders.OrderDTO
	err       error
	lastInput checkoutsvc.Input
	lastCart  *cartsvc.Cart
}

func (s *stubCheckoutService) Execute(ctx context.Context, c *cartsvc.Cart, input checkoutsvc.Input) (orders.OrderDTO, error) {
	s.lastInput = input
	s.lastCart = c
	return s.order, s.err
}

type nopPersister struct{}

func (nopPersister) Hydrate(context.Context) []cartsvc.LineItem { return nil }

func (nopPersister) Sync(context.Context, cartsvc.LineItem, []cartsvc.LineItem) {}

func (nopPersister) Clear(context.Context) {}

type stubCartOpener struct{}

func (stubCartOpener) Open(ctx context.Context, identity cartsvc.Identity) *cartsvc.Cart {
	return cartsvc.Open(ctx, identity, nopPersister{})
}

func checkoutRequestFor(identity cartsvc.Identity, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), identity, "guest-1"))
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	orderID := uuid.New()
	stub := &stubCheckoutService{order: orders.OrderDTO{
		ID:     orderID,
		Status: enums.OrderStatusPending,
		Total:  decimal.RequireFromString("62.50"),
	}}

	body := `{"payment_method":"pix","shipping_address":"  Rua das Flores, 100 ","postal_code":"01001-000","prescription_ref":"RX-1"}`
	rec := httptest.NewRecorder()
	Checkout(stub, stubCartOpener{}, nil).ServeHTTP(rec, checkoutRequestFor(cartsvc.AuthenticatedIdentity(userID), body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastInput.PaymentMethod != enums.PaymentMethodPix {
		t.Fatalf("unexpected payment method %s", stub.lastInput.PaymentMethod)
	}
	if stub.lastInput.ShippingAddress != "Rua das Flores, 100" {
		t.Fatalf("expected trimmed address, got %q", stub.lastInput.ShippingAddress)
	}
	if stub.lastInput.PrescriptionRef == nil || *stub.lastInput.PrescriptionRef != "RX-1" {
		t.Fatalf("expected prescription ref, got %v", stub.lastInput.PrescriptionRef)
	}
	if stub.lastCart == nil || stub.lastCart.Identity().UserID != userID {
		t.Fatalf("expected the caller's cart to be opened")
	}

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID != orderID {
		t.Fatalf("unexpected order id %s", envelope.Data.ID)
	}
}

func TestCheckoutRejectsGuests(t *testing.T) {
	t.Parallel()

	stub := &stubCheckoutService{}
	rec := httptest.NewRecorder()
	Checkout(stub, stubCartOpener{}, nil).ServeHTTP(rec, checkoutRequestFor(cartsvc.GuestIdentity("guest-1"), `{}`))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if stub.lastCart != nil {
		t.Fatal("checkout should not run for guests")
	}
}

func TestCheckoutValidatesBody(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"payment_method":"cash","shipping_address":"Rua A","postal_code":"01001-000"}`,
		`{"payment_method":"pix","postal_code":"01001-000"}`,
		`{"payment_method":"pix","shipping_address":"Rua A"}`,
		`not json`,
	}
	for _, body := range bodies {
		rec := httptest.NewRecorder()
		Checkout(&stubCheckoutService{}, stubCartOpener{}, nil).ServeHTTP(rec, checkoutRequestFor(cartsvc.AuthenticatedIdentity(uuid.New()), body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", body, rec.Code)
		}
	}
}

func TestCheckoutSurfacesServiceErrors(t *testing.T) {
	t.Parallel()

	stub := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	body := `{"payment_method":"boleto","shipping_address":"Rua A","postal_code":"01001-000"}`
	rec := httptest.NewRecorder()
	Checkout(stub, stubCartOpener{}, nil).ServeHTTP(rec, checkoutRequestFor(cartsvc.AuthenticatedIdentity(uuid.New()), body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cart is empty") {
		t.Fatalf("expected service message in body, got %s", rec.Body.String())
	}
}
