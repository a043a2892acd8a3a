package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garagehub/billing-service/internal/http/handlers"
	"github.com/garagehub/billing-service/internal/middleware"
	"github.com/garagehub/billing-service/pkg/logger"
)

// Setup builds the gin engine with all routes wired.
func Setup(
	payment *handlers.PaymentHandler,
	subscription *handlers.SubscriptionHandler,
	status *handlers.StatusHandler,
	webhook *handlers.WebhookHandler,
	auth *middleware.JWTMiddleware,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	// The gateway authenticates with the shared secret, not a JWT.
	api.POST("/billing/webhook", webhook.HandleNotification)

	billing := api.Group("/billing")
	billing.Use(auth.RequireAuth())
	{
		billing.POST("/charges/pix", payment.CreatePixCharge)
		billing.POST("/charges/checkout", payment.CreateCheckout)
		billing.POST("/charges/card", payment.CreateCardCharge)
		billing.POST("/charges/bonus-offers", payment.CreateBonusOffersCharge)
		billing.GET("/payments", payment.ListPayments)

		billing.POST("/subscriptions", subscription.CreateAgreement)
		billing.POST("/subscriptions/cancel", subscription.Cancel)
		billing.POST("/subscriptions/pause", subscription.Pause)
		billing.POST("/subscriptions/resume", subscription.Resume)
		billing.GET("/subscriptions/:preapproval_id", subscription.GetAgreement)

		billing.GET("/status", status.Poll)
	}

	return router
}
