package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/dashboard"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Params carries everything the HTTP surface needs. Nil services answer with an
// internal error on their routes rather than failing router construction.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB          pinger
	Redis       pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Catalog   catalog.Service
	Cart      cart.Service
	Orders    orders.Service
	Coupons   coupons.Service
	Payments  payments.Service
	Address   address.Service
	Wishlist  wishlist.Service
	Reviews   reviews.Service
	Dashboard dashboard.Service

	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeSigning      webhookcontrollers.SigningSecretProvider
	StripeWebhookGuard webhookcontrollers.EventGuard
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	checks := map[string]controllers.ReadinessCheck{}
	if p.DB != nil {
		checks["database"] = p.DB.Ping
	}
	if p.Redis != nil {
		checks["redis"] = p.Redis.Ping
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, checks, logg))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeSigning, p.StripeWebhookGuard, logg))

	// Storefront routes share the cart session and replay idempotent writes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CartSession(cfg.Cart.CookieMaxAge, cfg.App.IsProd(), logg))
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.Checkout.IdempotencyTTL, logg))

		r.Get("/", controllers.CatalogHome(p.Catalog, logg))
		r.Get("/products", controllers.ProductList(p.Catalog, logg))
		r.Get("/products/{id}", controllers.ProductDetail(p.Catalog, logg))
		r.Get("/categories", controllers.CategoryList(p.Catalog, logg))
		r.Get("/categories/{id}", controllers.CategoryDetail(p.Catalog, logg))
		r.Get("/vendors", controllers.VendorList(p.Catalog, logg))
		r.Get("/vendors/{id}", controllers.VendorDetail(p.Catalog, logg))
		r.Get("/search", controllers.Search(p.Catalog, logg))

		r.Get("/cart", controllers.CartView(p.Cart, logg))
		getOrPost(r, "/add-to-cart", controllers.CartAdd(p.Cart, logg))
		getOrPost(r, "/delete-from-cart", controllers.CartRemove(p.Cart, logg))
		getOrPost(r, "/update-cart", controllers.CartUpdate(p.Cart, logg))

		r.Get("/payment-failed", controllers.PaymentFailed(p.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, cfg.Checkout.SignInURL, logg))

			r.Post("/save-checkout-info", controllers.SaveCheckoutInfo(p.Orders, logg))
			r.Post("/api/create-checkout-session/{orderPublicId}", controllers.CreateCheckoutSession(p.Payments, logg))
			r.Get("/checkout/{orderPublicId}", controllers.CheckoutView(p.Orders, cfg.Stripe.PublishableKey, logg))
			r.Post("/checkout/{orderPublicId}", controllers.CheckoutApplyCoupon(p.Coupons, logg))
			r.Get("/payment-completed/{orderPublicId}", controllers.PaymentCompleted(p.Payments, logg))

			r.Get("/dashboard", controllers.DashboardOverview(p.Dashboard, logg))
			r.Post("/dashboard", controllers.DashboardCreateAddress(p.Address, logg))
			r.Get("/dashboard/order/{id}", controllers.DashboardOrderDetail(p.Orders, logg))
			r.Get("/make-default-address", controllers.MakeDefaultAddress(p.Address, logg))

			r.Get("/wishlist", controllers.WishlistList(p.Wishlist, logg))
			getOrPost(r, "/add-to-wishlist", controllers.WishlistAddItem(p.Wishlist, logg))
			getOrPost(r, "/remove-from-wishlist", controllers.WishlistRemoveItem(p.Wishlist, logg))

			r.Post("/ajax-add-review/{productId}", controllers.AddReview(p.Reviews, logg))
		})
	})

	return r
}

func getOrPost(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Post(pattern, h)
}
