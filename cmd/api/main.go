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
	"go.uber.org/zap"

	"github.com/schoolkit/api/internal/handlers"
	"github.com/schoolkit/api/internal/payments"
	"github.com/schoolkit/api/internal/platform/auth"
	"github.com/schoolkit/api/internal/platform/config"
	"github.com/schoolkit/api/internal/platform/database"
	"github.com/schoolkit/api/internal/platform/idempotency"
	"github.com/schoolkit/api/internal/platform/observability"
	"github.com/schoolkit/api/internal/repositories/postgres"
	"github.com/schoolkit/api/internal/services"
)

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("source", cfg.Database.MigrationsPath))

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	eventLogger := observability.EventLogger(logger)

	gateway, err := payments.NewMercadoPago(payments.MercadoPagoConfig{
		AccessToken:     cfg.Gateway.AccessToken,
		BaseURL:         cfg.Gateway.BaseURL,
		NotificationURL: cfg.Gateway.NotificationURL,
		SuccessURL:      cfg.Gateway.SuccessURL,
		FailureURL:      cfg.Gateway.FailureURL,
		HTTPClient:      &http.Client{Timeout: cfg.Gateway.Timeout},
		Logger:          eventLogger,
	})
	if err != nil {
		return err
	}

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Catalog:     postgres.NewCatalogStore(db),
		Prices:      postgres.NewPriceStore(db),
		Stock:       postgres.NewStockStore(db),
		Buyers:      postgres.NewBuyerStore(db),
		Orders:      postgres.NewOrderStore(db),
		Discounts:   postgres.NewDiscountStore(db),
		Gateway:     gateway,
		PriceListID: cfg.Checkout.PriceListID,
		Currency:    cfg.Checkout.Currency,
		Provider:    cfg.Gateway.Provider,
		Logger:      eventLogger,
	})
	if err != nil {
		return err
	}

	discounts, err := services.NewDiscountService(services.DiscountServiceDeps{
		Discounts: postgres.NewDiscountStore(db),
	})
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:            logger,
		Authenticator:     authenticator,
		Checkout:          checkout,
		Discounts:         discounts,
		IdempotencyStore:  idempotency.NewMemoryStore(),
		IdempotencyHeader: cfg.Idempotency.Header,
		IdempotencyTTL:    cfg.Idempotency.TTL,
		Readiness: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
