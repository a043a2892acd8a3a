package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/garagehub/billing-service/internal/app"
	"github.com/garagehub/billing-service/internal/config"
	"github.com/garagehub/billing-service/internal/db"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/http/routes"
	"github.com/garagehub/billing-service/internal/kafka"
	"github.com/garagehub/billing-service/internal/metrics"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/internal/service"
	"github.com/garagehub/billing-service/pkg/logger"
)

func main() {
	log := logger.New(os.Getenv("APP_ENV"))

	log.Infow("Billing service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Errorw("Error closing database connection", "error", err)
		}
	}()

	if err := db.Migrate(database, log); err != nil {
		log.Fatalw("Failed to run database migrations", "error", err)
	}

	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)

	accountRepo := repository.NewPostgresAccountRepository(database, log)
	paymentRepo := repository.NewPostgresPaymentRepository(database, log)

	if cfg.Redis.Enabled {
		cache, err := repository.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Redis unavailable, continuing without account caching", "error", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			accountRepo = repository.NewCachedAccountRepository(accountRepo, cache, log)
		}
	}

	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics, continuing without event publishing", "error", err)
		} else {
			producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
			defer func() {
				if err := producer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.AccessToken, billingMetrics, log)

	billingService := service.NewBillingService(paymentRepo, gatewayClient, billingMetrics, log, service.BillingConfig{
		CallbackBaseURL: cfg.Gateway.CallbackBaseURL,
		WebhookSecret:   cfg.Gateway.WebhookSecret,
		ReturnURL:       cfg.Gateway.ReturnURL,
	})
	reconciliationService := service.NewReconciliationService(accountRepo, paymentRepo, gatewayClient, producer, billingMetrics, log)
	lifecycleService := service.NewLifecycleService(accountRepo, gatewayClient, producer, billingMetrics, log)

	application, err := app.NewApp(cfg, billingService, lifecycleService, reconciliationService, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	router := routes.Setup(
		application.PaymentHandler,
		application.SubscriptionHandler,
		application.StatusHandler,
		application.WebhookHandler,
		application.AuthMiddleware,
		registry,
		log,
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}
}
