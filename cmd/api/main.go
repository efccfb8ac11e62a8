// Command api runs the fulfillment service: catalog and cart endpoints, the
// payment intent and webhook flow, and order lifecycle management, all on one
// HTTP listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	cartapp "github.com/dwikikusuma/shop-fulfillment/internal/cart/app"
	cartpg "github.com/dwikikusuma/shop-fulfillment/internal/cart/infra/postgres"
	catalogapp "github.com/dwikikusuma/shop-fulfillment/internal/catalog/app"
	catalogpg "github.com/dwikikusuma/shop-fulfillment/internal/catalog/infra/postgres"
	"github.com/dwikikusuma/shop-fulfillment/internal/events"
	fulfillapp "github.com/dwikikusuma/shop-fulfillment/internal/fulfillment/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/fulfillment/infra/adapter"
	"github.com/dwikikusuma/shop-fulfillment/internal/httpapi"
	identitypg "github.com/dwikikusuma/shop-fulfillment/internal/identity/postgres"
	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	orderapp "github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	orderpg "github.com/dwikikusuma/shop-fulfillment/internal/order/infra/postgres"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment/paytest"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment/stripe"
	"github.com/dwikikusuma/shop-fulfillment/pkg/config"
	"github.com/dwikikusuma/shop-fulfillment/pkg/logger"
	"github.com/dwikikusuma/shop-fulfillment/pkg/metrics"
	"github.com/dwikikusuma/shop-fulfillment/pkg/postgres"
	"github.com/dwikikusuma/shop-fulfillment/pkg/shutdown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Service: "shop-fulfillment",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalogpg.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	if err := cartpg.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("cart schema: %w", err)
	}
	if err := orderpg.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("order schema: %w", err)
	}
	if err := identitypg.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("users schema: %w", err)
	}

	catalogSvc := catalogapp.NewService(catalogpg.NewProductRepo(pool))
	cartSvc := cartapp.NewService(cartpg.NewCartRepo(pool))
	orderRepo := orderpg.NewOrderRepo(pool)

	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = stripe.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		log.Warn("no stripe key configured, using in-memory payment fake")
		gateway = paytest.New(cfg.Stripe.WebhookSecret)
	}

	var notifier notification.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notification.NewMailer(cfg.SMTP, logger.Component(log, "mailer"))
	} else {
		log.Warn("no smtp host configured, notifications are log only")
		notifier = notification.LogNotifier{Log: logger.Component(log, "mailer")}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
	}

	m := metrics.New("api")

	catalogBridge := adapter.NewCatalogServiceReader(catalogSvc)
	fulfillSvc := fulfillapp.NewService(fulfillapp.Deps{
		Cart:     adapter.NewCartServiceReader(cartSvc),
		Catalog:  catalogBridge,
		Stock:    catalogBridge,
		Orders:   orderRepo,
		Gateway:  gateway,
		Users:    identitypg.NewDirectory(pool),
		Notifier: notifier,
		Events:   publisher,
		Metrics:  m,
		Log:      logger.Component(log, "fulfillment"),
	}, cfg.CancelWindow)

	server := httpapi.NewServer(httpapi.ServerDeps{
		Fulfillment: fulfillSvc,
		Orders:      orderapp.NewService(orderRepo),
		Cart:        cartSvc,
		Catalog:     catalogSvc,
		DB:          pool,
		Metrics:     m,
		Log:         logger.Component(log, "http"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelDrain()
	return srv.Shutdown(drainCtx)
}
