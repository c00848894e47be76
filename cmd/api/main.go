package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/dashboard"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/search"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	params, err := buildRouterParams(ctx, cfg, logg, dbClient, redisClient, stripeClient, checkoutMetrics)
	if err != nil {
		return err
	}
	params.Gatherer = reg
	params.HTTPMetrics = metrics.NewHTTPMetrics(reg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:         addr,
		Handler:      routes.NewRouter(params),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildRouterParams(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripeclient.Client,
	checkoutMetrics *metrics.CheckoutMetrics,
) (routes.Params, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogRepo := catalog.NewRepository(conn)
	var searchBackend catalog.SearchBackend
	if cfg.Search.Enabled() {
		client, err := search.New(ctx, cfg.Search, logg)
		if err != nil {
			// Search degrades to title matching in the database.
			logg.Error(ctx, "search backend unavailable", err)
		} else {
			searchBackend = client
		}
	}
	catalogSvc, err := catalog.NewService(catalogRepo, searchBackend, logg)
	if err != nil {
		return routes.Params{}, err
	}

	cartSvc, err := cart.NewService(cart.NewStore(redisClient, cfg.Cart.TTL(), cfg.Cart.MaxCASRetry), catalogSvc, checkoutMetrics)
	if err != nil {
		return routes.Params{}, err
	}

	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Cart:    cartSvc,
		Outbox:  emitter,
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Params{}, err
	}

	couponSvc, err := coupons.NewService(coupons.ServiceParams{
		Repo:    coupons.NewRepository(conn),
		Orders:  ordersRepo,
		Reader:  ordersSvc,
		Tx:      dbClient,
		Outbox:  emitter,
		Metrics: checkoutMetrics,
	})
	if err != nil {
		return routes.Params{}, err
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Orders:        ordersRepo,
		Tx:            dbClient,
		Checkout:      stripeclient.NewCheckoutClient(stripeClient),
		Outbox:        emitter,
		Metrics:       checkoutMetrics,
		Logger:        logg,
		PublicBaseURL: cfg.Checkout.PublicBaseURL,
		Currency:      cfg.Checkout.Currency,
	})
	if err != nil {
		return routes.Params{}, err
	}

	addressSvc, err := address.NewService(address.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Params{}, err
	}

	wishlistSvc, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(conn),
		Products:     catalogSvc,
	})
	if err != nil {
		return routes.Params{}, err
	}

	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		Repo:     reviews.NewRepository(conn),
		Products: catalogSvc,
		Stats:    catalogRepo,
		Tx:       dbClient,
		Outbox:   emitter,
	})
	if err != nil {
		return routes.Params{}, err
	}

	dashboardSvc, err := dashboard.NewService(ordersSvc, addressSvc)
	if err != nil {
		return routes.Params{}, err
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: paymentSvc})
	if err != nil {
		return routes.Params{}, err
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookTTL, stripewebhook.DefaultScope)
	if err != nil {
		return routes.Params{}, err
	}

	return routes.Params{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		Idempotency:        redisClient,
		Catalog:            catalogSvc,
		Cart:               cartSvc,
		Orders:             ordersSvc,
		Coupons:            couponSvc,
		Payments:           paymentSvc,
		Address:            addressSvc,
		Wishlist:           wishlistSvc,
		Reviews:            reviewSvc,
		Dashboard:          dashboardSvc,
		StripeWebhook:      webhookSvc,
		StripeSigning:      stripeClient,
		StripeWebhookGuard: webhookGuard,
	}, nil
}
