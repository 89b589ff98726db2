package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/substractum/storefront/api/middleware"
	"github.com/substractum/storefront/api/responses"
	"github.com/substractum/storefront/api/validators"
	cartsvc "github.com/substractum/storefront/internal/cart"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
)

// Service opens the caller's cart and merges guest carts into it.
type Service interface {
	Open(ctx context.Context, identity cartsvc.Identity) *cartsvc.Cart
	MergeGuest(ctx context.Context, c *cartsvc.Cart, guestID string) (int, error)
}

// Catalog resolves the product snapshot captured by add-to-cart.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CartFetch returns the caller's hydrated cart.
func CartFetch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c.View()))
	}
}

// CartAddItem snapshots a catalog product into the cart, merging quantities
// when the product is already present.
func CartAddItem(svc Service, catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product catalog unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		product, err := catalog.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.InStock {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock").
				WithDetails(map[string]any{"product_id": product.ID}))
			return
		}

		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := c.AddItem(r.Context(), cartsvc.ProductRefFromModel(*product), payload.quantity()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c.View()))
	}
}

// CartUpdateItem sets a line's quantity; zero or less removes the line. Only
// lines already in the cart can be updated; new lines go through CartAddItem
// so they get a catalog snapshot.
func CartUpdateItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if *payload.Quantity > 0 && !c.Has(productID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").
				WithDetails(map[string]any{"product_id": productID}))
			return
		}
		c.UpdateQuantity(r.Context(), productID, *payload.Quantity)
		responses.WriteSuccess(w, newCartResponse(c.View()))
	}
}

// CartRemoveItem drops a line from the cart.
func CartRemoveItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c.RemoveItem(r.Context(), productID)
		responses.WriteSuccess(w, newCartResponse(c.View()))
	}
}

// CartClear empties the cart.
func CartClear(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c.Clear(r.Context())
		responses.WriteSuccess(w, newCartResponse(c.View()))
	}
}

// CartMerge folds the browser's guest cart into the signed-in user's cart.
// The guest id defaults to the one carried by the request.
func CartMerge(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload mergeRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		guestID := strings.TrimSpace(payload.GuestID)
		if guestID == "" {
			guestID = middleware.GuestIDFromContext(r.Context())
		}

		c, err := openCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		merged, err := svc.MergeGuest(r.Context(), c, guestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mergeResponse{Merged: merged, Cart: newCartResponse(c.View())})
	}
}

func openCart(r *http.Request, svc Service) (*cartsvc.Cart, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable")
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart identity missing")
	}
	return svc.Open(r.Context(), identity), nil
}

func productIDParam(r *http.Request) (string, error) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return productID, nil
}
