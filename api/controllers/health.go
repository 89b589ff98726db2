package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/substractum/storefront/api/responses"
	"github.com/substractum/storefront/pkg/config"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
)

const (
	envHeader          = "X-Substractum-Env"
	readyCheckTimeout  = 2 * time.Second
	readyStatusReady   = "ready"
	readyStatusFailing = "unavailable"
	readyStatusDegrade = "degraded"
)

type pinger interface {
	Ping(context.Context) error
}

type breakerStater interface {
	State() gobreaker.State
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis. Any failure reports 503 with the
// failing dependency named in the details. The cart store breaker is reported
// but never fails the check: carts keep working locally while it is open and
// the sync queue retries once it closes.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger, cartStore breakerStater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed error
		for name, p := range map[string]pinger{"database": dbP, "redis": redisP} {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = readyStatusFailing
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" ping failed")
				continue
			}
			checks[name] = readyStatusReady
		}

		status := readyStatusReady
		if cartStore != nil {
			switch cartStore.State() {
			case gobreaker.StateOpen:
				checks["cart_store"] = readyStatusDegrade
				status = readyStatusDegrade
			case gobreaker.StateHalfOpen:
				checks["cart_store"] = "recovering"
			default:
				checks["cart_store"] = readyStatusReady
			}
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(failed).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": status, "checks": checks})
	}
}
