package middleware

import (
	"context"

	"github.com/substractum/storefront/internal/cart"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxGuestID  contextKey = "guest_id"
	ctxIdentity contextKey = "cart_identity"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func GuestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxGuestID).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the identity resolved for this request. The
// second value is false when no identity middleware ran.
func IdentityFromContext(ctx context.Context) (cart.Identity, bool) {
	if ctx == nil {
		return cart.Identity{}, false
	}
	v, ok := ctx.Value(ctxIdentity).(cart.Identity)
	return v, ok
}

// WithIdentity injects the resolved cart identity into the context.
func WithIdentity(ctx context.Context, identity cart.Identity, guestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIdentity, identity)
	ctx = context.WithValue(ctx, ctxGuestID, guestID)
	if identity.IsAuthenticated() {
		ctx = context.WithValue(ctx, ctxUserID, identity.UserID.String())
	}
	return ctx
}
