package app

import (
	"github.com/garagehub/billing-service/internal/config"
	"github.com/garagehub/billing-service/internal/http/handlers"
	"github.com/garagehub/billing-service/internal/middleware"
	"github.com/garagehub/billing-service/internal/service"
	"github.com/garagehub/billing-service/pkg/logger"
)

// App is the container for all HTTP-facing application components.
type App struct {
	Config              *config.Config
	PaymentHandler      *handlers.PaymentHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	StatusHandler       *handlers.StatusHandler
	WebhookHandler      *handlers.WebhookHandler
	AuthMiddleware      *middleware.JWTMiddleware
	Logger              *logger.Logger
}

// NewApp builds the handlers and middleware on top of the service layer.
func NewApp(
	cfg *config.Config,
	billing *service.BillingService,
	lifecycle *service.LifecycleService,
	reconciliation *service.ReconciliationService,
	log *logger.Logger,
) (*App, error) {
	webhookHandler, err := handlers.NewWebhookHandler(cfg.Gateway.WebhookSecret, reconciliation, log)
	if err != nil {
		return nil, err
	}

	validator := &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}

	return &App{
		Config:              cfg,
		PaymentHandler:      handlers.NewPaymentHandler(billing, log),
		SubscriptionHandler: handlers.NewSubscriptionHandler(billing, lifecycle, log),
		StatusHandler:       handlers.NewStatusHandler(reconciliation, log),
		WebhookHandler:      webhookHandler,
		AuthMiddleware:      middleware.NewJWTMiddleware(log, validator),
		Logger:              log,
	}, nil
}
