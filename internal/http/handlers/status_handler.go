package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/service"
	"github.com/garagehub/billing-service/pkg/logger"
	"github.com/garagehub/billing-service/pkg/res"
)

// StatusHandler serves client-side polling. A poll is a full reconciliation
// run: the client asking "did my payment go through" can be the first
// trigger that activates the subscription when the webhook was lost.
type StatusHandler struct {
	reconciliation *service.ReconciliationService
	log            *logger.Logger
}

// NewStatusHandler creates the handler.
func NewStatusHandler(reconciliation *service.ReconciliationService, log *logger.Logger) *StatusHandler {
	return &StatusHandler{reconciliation: reconciliation, log: log}
}

// Poll handles GET /billing/status?payment_id=... or ?preapproval_id=...
func (h *StatusHandler) Poll(c *gin.Context) {
	ctx := c.Request.Context()

	paymentID := c.Query("payment_id")
	preapprovalID := c.Query("preapproval_id")

	var (
		result *service.ReconciliationResult
		err    error
	)
	switch {
	case paymentID != "":
		result, err = h.reconciliation.ReconcilePayment(ctx, paymentID)
	case preapprovalID != "":
		result, err = h.reconciliation.ReconcilePreapproval(ctx, preapprovalID)
	default:
		res.Error(c.Writer, "payment_id or preapproval_id is required", res.CodeMissingFields, http.StatusBadRequest)
		c.Abort()
		return
	}

	if err != nil {
		var extErr *domain.ExternalServiceError
		if errors.As(err, &extErr) {
			// A failed fetch says nothing about the transaction; the
			// client keeps polling.
			h.log.Warnw("Status fetch failed", "error", err, "upstreamStatus", extErr.StatusCode)
			res.Error(c.Writer, "Failed to fetch status from gateway", res.CodeFetchFailed, http.StatusBadGateway)
			c.Abort()
			return
		}
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, result, http.StatusOK)
}
