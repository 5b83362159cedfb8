package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nikul30701/E-Commerce-Plateform/api/controllers"
	"github.com/Nikul30701/E-Commerce-Plateform/api/middleware"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/addresses"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/cart"
	checkoutsvc "github.com/Nikul30701/E-Commerce-Plateform/internal/checkout"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/orders"
	products "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/redis"
)

// Dependencies carries everything the router wires into handlers. Redis
// backed components are optional; without them idempotency replay and rate
// limiting are skipped.
type Dependencies struct {
	Products    products.Service
	Cart        cart.Service
	Addresses   addresses.Service
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Idempotency redis.IdempotencyStore
	RateLimiter redis.RateLimiter
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	checkoutPolicy := middleware.RateLimitPolicy{
		Name:   "checkout",
		Limit:  cfg.Checkout.RateLimit,
		Window: cfg.Checkout.RateLimitWindow,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/categories", controllers.ListCategories(deps.Products, logg))
			r.Get("/products", controllers.ListProducts(deps.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Require(middleware.CapShop, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartView(deps.Cart, logg))
				r.With(middleware.Idempotency(middleware.OptionalIdempotency, deps.Idempotency, logg)).
					Post("/add", controllers.CartAdd(deps.Cart, logg))
				r.Patch("/update/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
				r.Delete("/clear", controllers.CartClear(deps.Cart, logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
				r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
				r.Patch("/{addressId}", controllers.UpdateAddress(deps.Addresses, logg))
				r.Delete("/{addressId}", controllers.DeleteAddress(deps.Addresses, logg))
				r.Post("/{addressId}/default", controllers.SetDefaultAddress(deps.Addresses, logg))
			})

			// throttling runs before the key is claimed so a 429 is never replayed
			r.With(
				middleware.UserRateLimit(checkoutPolicy, deps.RateLimiter, logg),
				middleware.Idempotency(middleware.RequiredIdempotency, deps.Idempotency, logg),
			).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.With(middleware.Idempotency(middleware.RequiredIdempotency, deps.Idempotency, logg)).
					Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.Require(middleware.CapManageCatalog, logg)).
			Post("/categories", controllers.AdminCreateCategory(deps.Products, logg))
		r.Route("/products", func(r chi.Router) {
			r.Use(middleware.Require(middleware.CapManageCatalog, logg))
			r.Post("/", controllers.AdminCreateProduct(deps.Products, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Require(middleware.CapViewAllOrders, logg)).
				Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.With(middleware.Require(middleware.CapSetOrderStatus, logg)).
				Patch("/{orderId}/status", controllers.AdminSetOrderStatus(deps.Orders, logg))
		})
	})

	return r
}
