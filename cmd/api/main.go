package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-backend/internal/core/auth"
	"commerce-backend/internal/core/cache"
	"commerce-backend/internal/core/config"
	"commerce-backend/internal/core/events"
	"commerce-backend/internal/core/idempotency"
	"commerce-backend/internal/core/logger"
	"commerce-backend/internal/core/postgres"
	"commerce-backend/internal/core/server"
	orderadapter "commerce-backend/internal/features/orders/adapters"
	orderhandler "commerce-backend/internal/features/orders/handler"
	orderports "commerce-backend/internal/features/orders/ports"
	orderservice "commerce-backend/internal/features/orders/service"
	settlementadapter "commerce-backend/internal/features/settlement/adapters"
	settlementhandler "commerce-backend/internal/features/settlement/handler"
	settlementservice "commerce-backend/internal/features/settlement/service"
	walletadapter "commerce-backend/internal/features/wallet/adapters"
	wallethandler "commerce-backend/internal/features/wallet/handler"
	walletports "commerce-backend/internal/features/wallet/ports"
	walletservice "commerce-backend/internal/features/wallet/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// @title Commerce Backend API
// @version 1.0
// @description Orders, payments, refunds and wallet ledger for the storefront.
// @contact.name API Support
// @contact.email support@commerce-backend.dev
// @license.name MIT
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	decimal.MarshalJSONWithoutQuotes = true

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("storage_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)

	// Storage
	var (
		orderRepo  orderports.OrderRepository
		ledgerRepo walletports.LedgerRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			l.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool); err != nil {
			l.Fatal("PostgreSQL migration failed", zap.Error(err))
		}
		l.Info("PostgreSQL connection verified")

		orderRepo = orderadapter.NewPostgresRepository(pool)
		ledgerRepo = walletadapter.NewPostgresRepository(pool)
		srv.AddHealthCheck("postgres", pool.Ping)
	default:
		l.Warn("Using in-memory storage, data is lost on restart")
		orderRepo = orderadapter.NewMemoryRepository()
		ledgerRepo = walletadapter.NewMemoryRepository()
	}

	// Cache
	redisCache, err := cache.NewRedisAdapter(cfg.Redis.URL, cache.WithNamespace(cfg.Redis.Namespace))
	if err != nil {
		l.Fatal("Redis configuration invalid", zap.Error(err))
	}
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		l.Warn("Redis unreachable, webhook de-duplication and idempotency replay degraded", zap.Error(err))
	}
	srv.AddHealthCheck("redis", redisCache.Ping)

	// Events
	var publisher events.Publisher = events.LogPublisher{}
	if cfg.Broker.URL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.Broker.URL, cfg.Broker.Exchange, 5)
		if err != nil {
			l.Fatal("RabbitMQ connection failed", zap.Error(err))
		}
		defer rabbit.Close()
		publisher = rabbit
		l.Info("RabbitMQ connection verified", zap.String("exchange", cfg.Broker.Exchange))
	}

	// Catalog
	var catalog orderports.CatalogProvider
	if cfg.WooCommerce.URL != "" {
		wc := orderadapter.NewWooCommerceCatalog(cfg.WooCommerce)
		if err := wc.HealthCheck(ctx); err != nil {
			l.Warn("WooCommerce Health Check Failed", zap.Error(err))
		} else {
			l.Info("WooCommerce connection verified")
		}
		catalog = wc
		srv.AddHealthCheck("catalog", wc.HealthCheck)
	}

	// Services
	ledgerSvc := walletservice.NewLedgerService(ledgerRepo)
	orderSvc := orderservice.NewOrderService(orderRepo, catalog, publisher)
	gateway := settlementadapter.NewStripeGateway(cfg.Stripe)
	settlementSvc := settlementservice.NewSettlementService(orderRepo, ledgerSvc, gateway, publisher, settlementservice.CheckoutConfig{
		Currency:     cfg.Stripe.Currency,
		PublicDomain: cfg.Stripe.PublicDomain,
	})
	webhookSvc := settlementservice.NewWebhookService(orderRepo, gateway,
		settlementadapter.NewCacheDeduplicator(redisCache, settlementadapter.DefaultEventRetention), publisher)

	// Handlers
	orderHdl := orderhandler.NewOrderHandler(orderSvc)
	settlementHdl := settlementhandler.NewSettlementHandler(settlementSvc, webhookSvc, orderRepo)
	walletHdl := wallethandler.NewWalletHandler(ledgerSvc)

	authn := auth.New(cfg.Auth.JWTSecret)
	if !authn.Enabled() {
		l.Warn("JWT_SECRET not set, requests are not authenticated")
	}
	replay := idempotency.New(redisCache, cfg.Redis.IdempotencyTTL())

	// Register Routes
	app := srv.App
	app.Post("/payments/webhook", settlementHdl.Webhook)

	orders := app.Group("/orders", authn.Authenticate())
	orders.Post("/", orderHdl.CreateOrder)
	orders.Get("/", authn.RequireAdmin(), orderHdl.ListOrders)
	orders.Post("/return-product", settlementHdl.ReturnProduct)
	orders.Get("/user/:userId", orderHdl.ListUserOrders)
	orders.Get("/:orderId", orderHdl.GetOrder)
	orders.Put("/:orderId/status", authn.RequireAdmin(), orderHdl.UpdateStatus)
	orders.Post("/:orderId/cancel", settlementHdl.CancelOrder)
	orders.Post("/:orderId/return", settlementHdl.ReturnOrder)

	payments := app.Group("/payments", authn.Authenticate())
	payments.Post("/initiate", replay, settlementHdl.InitiatePayment)
	payments.Post("/refund", replay, settlementHdl.RefundPayment)

	app.Get("/wallet/:userId", authn.Authenticate(), walletHdl.GetWallet)

	go func() {
		if err := srv.Run(); err != nil {
			l.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", zap.Error(err))
	}
}
