package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-checkout/internal/analytics"
	analytics_api "ms-checkout/internal/analytics/api"
	"ms-checkout/internal/api"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/checkout"
	checkoutredis "ms-checkout/internal/checkout/redis"
	"ms-checkout/internal/config"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/notify"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/promos"
	"ms-checkout/internal/reconcile"
	"ms-checkout/internal/sse"
	"ms-checkout/internal/store"
)

func connectRedis(ctx context.Context, addr string, log *logger.Logger) *redis.Client {
	if addr == "" {
		log.Warn("REDIS", "REDIS_ADDR not set, reconcile locks and webhook dedupe disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis connection error, continuing without locks: %v", err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", addr, client.Options().DB))
	return client
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger := logger.NewLogger(cfg.LogDir)
	defer logger.Close()
	logger.SetLevel(logLevel)

	logger.Info("APP", "Starting Checkout Service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}
	bunDB, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(bunDB, logger).Up(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}
	db := store.New(bunDB, logger)

	gateway := payment.NewGateway(payment.GatewayConfig{
		Currency:   cfg.Stripe.Currency,
		SiteOrigin: cfg.Site.Origin,
		Langs:      cfg.Site.Langs,
	}, payment.StaticKey(cfg.Stripe.SecretKey), logger)
	if cfg.Stripe.SecretKey == "" {
		logger.Warn("CONFIG", "STRIPE_SECRET_KEY not set, checkout sessions will fail until it is")
	}

	checkoutService := checkout.NewService(db, db, gateway, cfg.Site, logger)
	reconciler := reconcile.NewService(gateway, db, cfg.Site, logger)
	reconciler.Topics = cfg.Kafka.Topics

	orderEvents := sse.NewOrderEventEmitter()
	reconciler.Notifier = orderEvents

	if cfg.Email.Configured() {
		reconciler.Mailer = notify.NewSMTPMailer(cfg.Email, logger)
		logger.Info("EMAIL", fmt.Sprintf("Confirmation emails via %s:%d", cfg.Email.SMTPHost, cfg.Email.SMTPPort))
	} else {
		logger.Warn("EMAIL", "SMTP not configured, confirmation emails disabled")
	}

	handler := &api.Handler{
		Checkout:  checkoutService,
		Reconcile: reconciler,
		Promos:    promos.NewService(db, logger),
		Store:     db,
		Webhooks:  payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret, db, logger),
		Payments:  gateway,
		Events:    orderEvents,
		Analytics: analytics_api.NewHandler(analytics.NewService(bunDB), logger),
		Logger:    logger,
	}

	if redisClient := connectRedis(ctx, cfg.Redis.Addr, logger); redisClient != nil {
		defer redisClient.Close()
		locker := checkoutredis.NewLocker(redisClient, cfg.Redis.ReconcileLock, cfg.Redis.EventDedupeTTL, logger)
		reconciler.Locker = locker
		handler.Dedupe = locker
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		reconciler.Publisher = producer

		requiredTopics := []string{cfg.Kafka.Topics.OrderReconciled, cfg.Kafka.Topics.EmailFailed}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Warn("AUTH", fmt.Sprintf("Admin routes disabled: %v", err))
	}

	logger.Info("HTTP", "Setting up router and middleware")
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Routes(cfg.Server.AllowedOrigins, auth.AdminMiddleware(verifier, logger)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Checkout Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Checkout Service shutdown complete")
	}
}
