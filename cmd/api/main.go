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

	"github.com/Nikul30701/E-Commerce-Plateform/api/controllers"
	"github.com/Nikul30701/E-Commerce-Plateform/api/routes"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/addresses"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/cart"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/checkout"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/orders"
	product "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/migrate"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/redis"
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

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, orderMetrics)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)
	deps.Gatherer = registry

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
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
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "graceful shutdown failed", err)
		return
	}
	logg.Info(shutdownCtx, "api server stopped")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, orderMetrics *metrics.OrderMetrics) (routes.Dependencies, error) {
	conn := dbClient.DB()
	productRepo := product.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	itemRepo := cart.NewCartItemRepository(conn)
	addressRepo := addresses.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	productSvc, err := product.NewService(productRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	cartSvc, err := cart.NewService(cartRepo, itemRepo, productRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	addressSvc, err := addresses.NewService(addressRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		Addresses:   addressRepo,
		Carts:       cartRepo,
		CartItems:   itemRepo,
		Products:    productRepo,
		Orders:      orderRepo,
		Outbox:      emitter,
		InFlight:    redisClient,
		Metrics:     orderMetrics,
		Logger:      logg,
		TaxRate:     cfg.Checkout.TaxRate,
		InFlightTTL: cfg.Checkout.InFlightTTL,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Products: productRepo,
		Tx:       dbClient,
		Outbox:   emitter,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Products:    productSvc,
		Cart:        cartSvc,
		Addresses:   addressSvc,
		Checkout:    checkoutSvc,
		Orders:      orderSvc,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
	}, nil
}
