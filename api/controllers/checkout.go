package controllers

import (
	"context"
	"net/http"

	"github.com/substractum/storefront/api/middleware"
	"github.com/substractum/storefront/api/responses"
	"github.com/substractum/storefront/api/validators"
	cartsvc "github.com/substractum/storefront/internal/cart"
	checkoutsvc "github.com/substractum/storefront/internal/checkout"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
)

const (
	maxAddressLength      = 500
	maxPostalCodeLength   = 16
	maxPrescriptionLength = 128
)

type cartOpener interface {
	Open(ctx context.Context, identity cartsvc.Identity) *cartsvc.Cart
}

// Checkout stages an order from the signed-in user's cart.
func Checkout(svc checkoutsvc.Service, carts cartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok || !identity.IsAuthenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), carts.Open(r.Context(), identity), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type checkoutRequest struct {
	PaymentMethod   string  `json:"payment_method" validate:"required,oneof=credit pix boleto"`
	ShippingAddress string  `json:"shipping_address" validate:"required,max=500"`
	PostalCode      string  `json:"postal_code" validate:"required,max=16"`
	PrescriptionRef *string `json:"prescription_ref,omitempty" validate:"omitempty,max=128"`
}

func (r checkoutRequest) toInput() (checkoutsvc.Input, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return checkoutsvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"field": "payment_method"})
	}
	input := checkoutsvc.Input{
		PaymentMethod:   method,
		ShippingAddress: validators.SanitizeString(r.ShippingAddress, maxAddressLength),
		PostalCode:      validators.SanitizeString(r.PostalCode, maxPostalCodeLength),
	}
	if r.PrescriptionRef != nil {
		if ref := validators.SanitizeString(*r.PrescriptionRef, maxPrescriptionLength); ref != "" {
			input.PrescriptionRef = &ref
		}
	}
	return input, nil
}
