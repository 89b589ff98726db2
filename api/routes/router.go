package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"

	"github.com/substractum/storefront/api/controllers"
	cartcontrollers "github.com/substractum/storefront/api/controllers/cart"
	ordercontrollers "github.com/substractum/storefront/api/controllers/orders"
	prescriptioncontrollers "github.com/substractum/storefront/api/controllers/prescriptions"
	reviewcontrollers "github.com/substractum/storefront/api/controllers/reviews"
	"github.com/substractum/storefront/api/middleware"
	"github.com/substractum/storefront/internal/cart"
	checkoutsvc "github.com/substractum/storefront/internal/checkout"
	"github.com/substractum/storefront/internal/orders"
	"github.com/substractum/storefront/internal/prescriptions"
	products "github.com/substractum/storefront/internal/products"
	"github.com/substractum/storefront/internal/reviews"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/redis"
)

type redisStore interface {
	redis.Pinger
	redis.IdempotencyStore
}

type breakerStater interface {
	State() gobreaker.State
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	cartStore breakerStater,
	resolver *cart.Resolver,
	cartService cartcontrollers.Service,
	productService products.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	prescriptionsService prescriptions.Service,
	reviewsService reviews.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, cartStore))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	idempotent := middleware.Idempotency(redisClient, logg)
	guestCookie := middleware.GuestCookie{MaxAge: cfg.Cart.GuestTTL, Secure: cfg.Cart.GuestCookieSecure}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(resolver, guestCookie, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.Get("/{productId}", controllers.ProductDetail(productService, logg))
			r.Get("/{productId}/reviews", reviewcontrollers.List(reviewsService, logg))
			r.With(middleware.RequireUser(logg)).Post("/{productId}/reviews", reviewcontrollers.Create(reviewsService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, productService, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartService, logg))
			r.With(middleware.RequireUser(logg), idempotent).Post("/merge", cartcontrollers.CartMerge(cartService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.With(idempotent).Post("/checkout", controllers.Checkout(checkoutService, cartService, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
				r.With(idempotent).Post("/{orderId}/cancel", ordercontrollers.CancelOrder(ordersService, logg))
			})
			r.Route("/prescriptions", func(r chi.Router) {
				r.Get("/", prescriptioncontrollers.List(prescriptionsService, logg))
				r.With(idempotent).Post("/", prescriptioncontrollers.Submit(prescriptionsService, logg))
				r.Get("/{requestId}", prescriptioncontrollers.Detail(prescriptionsService, logg))
			})
		})
	})

	return r
}
