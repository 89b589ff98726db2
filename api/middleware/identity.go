package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/substractum/storefront/internal/cart"
	"github.com/substractum/storefront/pkg/logger"
)

const (
	GuestIDHeader   = "X-Guest-Id"
	GuestCookieName = "substractum_guest"

	maxGuestIDLength = 64
)

type identityResolver interface {
	Resolve(ctx context.Context, bearer, guestID string) cart.Identity
}

// GuestCookie controls the cookie echoing the guest id back to browsers.
type GuestCookie struct {
	MaxAge time.Duration
	Secure bool
}

// Identity resolves the cart identity once per request. The guest id is read
// from the X-Guest-Id header or the guest cookie, minted when absent, and
// echoed back on every response so the browser keeps its guest cart.
func Identity(resolver identityResolver, cookie GuestCookie, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := guestIDFromRequest(r)
			if guestID == "" {
				guestID = uuid.NewString()
			}
			w.Header().Set(GuestIDHeader, guestID)
			http.SetCookie(w, &http.Cookie{
				Name:     GuestCookieName,
				Value:    guestID,
				Path:     "/",
				MaxAge:   int(cookie.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cookie.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithGuestID(ctx, guestID)
			}

			identity := cart.GuestIdentity(guestID)
			if resolver != nil {
				identity = resolver.Resolve(ctx, bearerToken(r), guestID)
			}
			if identity.IsAuthenticated() && logg != nil {
				ctx = logg.WithUserID(ctx, identity.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity, guestID)))
		})
	}
}

func guestIDFromRequest(r *http.Request) string {
	if v := sanitizeGuestID(r.Header.Get(GuestIDHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(GuestCookieName); err == nil {
		return sanitizeGuestID(c.Value)
	}
	return ""
}

// sanitizeGuestID accepts short printable ids only; anything else is
// replaced by a fresh id.
func sanitizeGuestID(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || len(v) > maxGuestIDLength {
		return ""
	}
	for _, ch := range v {
		if !(ch == '-' || ch == '_' || (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')) {
			return ""
		}
	}
	return v
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
