package cart

import (
	"context"
	"strings"

	"github.com/substractum/storefront/pkg/auth"
	"github.com/substractum/storefront/pkg/auth/session"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/logger"
)

// Resolver decides which session a request's cart belongs to. Any failure
// along the way resolves to the guest identity.
type Resolver struct {
	jwt      config.JWTConfig
	sessions session.AccessSessionChecker
	logg     *logger.Logger
}

func NewResolver(jwtCfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) *Resolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{jwt: jwtCfg, sessions: sessions, logg: logg}
}

// Resolve returns Authenticated when bearer is a valid access token with a
// live session, and Guest(guestID) otherwise.
func (r *Resolver) Resolve(ctx context.Context, bearer, guestID string) Identity {
	guest := GuestIdentity(guestID)
	token := strings.TrimSpace(bearer)
	if token == "" {
		return guest
	}

	claims, err := auth.ParseAccessToken(r.jwt, token)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "access token rejected, continuing as guest")
		return guest
	}

	ctx = r.logg.WithUserID(ctx, claims.UserID.String())
	if r.sessions == nil {
		return AuthenticatedIdentity(claims.UserID)
	}
	ok, err := r.sessions.HasSession(ctx, claims.ID, claims.UserID)
	if err != nil {
		r.logg.Error(ctx, "session lookup failed, continuing as guest", err)
		return guest
	}
	if !ok {
		r.logg.Warn(ctx, "access session not found, continuing as guest")
		return guest
	}
	return AuthenticatedIdentity(claims.UserID)
}
