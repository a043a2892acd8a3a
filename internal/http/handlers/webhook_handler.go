package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/service"
	"github.com/garagehub/billing-service/pkg/logger"
	"github.com/garagehub/billing-service/pkg/res"
)

const maxWebhookBodySize = int64(65536)

// WebhookHandler receives gateway notifications. Notifications carry only a
// resource id; the authoritative status is fetched back from the gateway by
// the reconciliation service.
type WebhookHandler struct {
	reconciliation *service.ReconciliationService
	log            *logger.Logger
	webhookSecret  string
}

// NewWebhookHandler creates the handler. The shared secret is mandatory:
// without one every notification would have to be trusted blindly, so
// construction fails instead of falling back to a default.
func NewWebhookHandler(webhookSecret string, reconciliation *service.ReconciliationService, log *logger.Logger) (*WebhookHandler, error) {
	if webhookSecret == "" {
		log.Errorw("Webhook secret is not configured")
		return nil, errors.New("webhook secret is not configured")
	}
	return &WebhookHandler{
		reconciliation: reconciliation,
		log:            log,
		webhookSecret:  webhookSecret,
	}, nil
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleNotification handles POST /billing/webhook?secret=...
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	ctx := c.Request.Context()

	secret := c.Query("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		h.log.Warnw("Webhook rejected, bad secret", "client_ip", c.ClientIP())
		res.Error(c.Writer, "Unauthorized", res.CodeUnauthorized, http.StatusUnauthorized)
		c.Abort()
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to read webhook request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusBadRequest)
		c.Abort()
		return
	}

	eventType, resourceID := parseNotification(payload, c)
	if resourceID == "" {
		h.log.Warnw("Webhook without resource id, ignoring", "type", eventType)
		c.Status(http.StatusOK)
		return
	}

	h.log.Infow("Received gateway notification", "type", eventType, "resourceID", resourceID)

	var result *service.ReconciliationResult
	switch eventType {
	case "payment":
		result, err = h.reconciliation.ReconcilePayment(ctx, resourceID)
	case "subscription_preapproval", "preapproval":
		result, err = h.reconciliation.ReconcilePreapproval(ctx, resourceID)
	default:
		h.log.Debugw("Ignoring notification type", "type", eventType)
		c.Status(http.StatusOK)
		return
	}

	if err != nil {
		if errors.Is(err, domain.ErrMalformedReference) {
			// Unrecoverable for this transaction; acknowledge so the
			// gateway stops redelivering it.
			h.log.Errorw("Dropping notification with malformed reference",
				"resourceID", resourceID, "error", err)
			c.Status(http.StatusOK)
			return
		}
		// Transient failures get a 5xx so the gateway retries later.
		h.log.Errorw("Failed to process notification", "error", err, "resourceID", resourceID)
		res.Error(c.Writer, "Failed to process notification", res.CodeInternalError, http.StatusInternalServerError)
		c.Abort()
		return
	}

	h.log.Infow("Notification processed", "resourceID", resourceID, "outcome", result.Outcome)
	c.Status(http.StatusOK)
}

// parseNotification extracts the event type and resource id. Newer gateway
// notifications put them in the JSON body, older ones in query parameters.
func parseNotification(payload []byte, c *gin.Context) (eventType, resourceID string) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err == nil && event.Data.ID != "" {
		return event.Type, event.Data.ID
	}

	eventType = c.Query("type")
	if eventType == "" {
		eventType = c.Query("topic")
	}
	resourceID = c.Query("data.id")
	if resourceID == "" {
		resourceID = c.Query("id")
	}
	return eventType, resourceID
}
