package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/service"
	"github.com/garagehub/billing-service/pkg/logger"
	"github.com/garagehub/billing-service/pkg/req"
	"github.com/garagehub/billing-service/pkg/res"
)

// SubscriptionHandler serves recurring-agreement endpoints.
type SubscriptionHandler struct {
	billing   *service.BillingService
	lifecycle *service.LifecycleService
	log       *logger.Logger
}

// NewSubscriptionHandler creates the handler.
func NewSubscriptionHandler(billing *service.BillingService, lifecycle *service.LifecycleService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing, lifecycle: lifecycle, log: log}
}

type CreateAgreementRequest struct {
	Plan        string `json:"plan" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	CardTokenID string `json:"card_token_id"`
	Trial       bool   `json:"trial"`
}

type AgreementResponse struct {
	PreapprovalID string `json:"preapproval_id"`
	Status        string `json:"status"`
	InitPoint     string `json:"init_point,omitempty"`
}

// CreateAgreement handles POST /billing/subscriptions.
func (h *SubscriptionHandler) CreateAgreement(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	body, err := req.DecodeAndValidate[CreateAgreementRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Invalid agreement request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	plan, err := domain.ParsePlan(body.Plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	agreement, err := h.billing.CreateAgreement(ctx, service.AgreementInput{
		AccountID:   acctID,
		Email:       body.Email,
		Plan:        plan,
		CardTokenID: body.CardTokenID,
		Trial:       body.Trial,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, AgreementResponse{
		PreapprovalID: agreement.ID,
		Status:        string(agreement.Status),
		InitPoint:     agreement.InitPoint,
	}, http.StatusCreated)
}

// Cancel handles POST /billing/subscriptions/cancel.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	result, err := h.lifecycle.Cancel(ctx, acctID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, result, http.StatusOK)
}

// Pause handles POST /billing/subscriptions/pause.
func (h *SubscriptionHandler) Pause(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	if err := h.lifecycle.Pause(ctx, acctID); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, map[string]string{"message": "Subscription paused"}, http.StatusOK)
}

// Resume handles POST /billing/subscriptions/resume.
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	if err := h.lifecycle.Resume(ctx, acctID); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, map[string]string{"message": "Subscription resumed"}, http.StatusOK)
}

// GetAgreement handles GET /billing/subscriptions/:preapproval_id.
func (h *SubscriptionHandler) GetAgreement(c *gin.Context) {
	ctx := c.Request.Context()

	preapprovalID := c.Param("preapproval_id")
	if preapprovalID == "" {
		res.Error(c.Writer, "Missing preapproval ID", res.CodeMissingFields, http.StatusBadRequest)
		c.Abort()
		return
	}

	info, err := h.lifecycle.GetAgreement(ctx, preapprovalID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, AgreementResponse{
		PreapprovalID: info.ID,
		Status:        string(info.Status),
	}, http.StatusOK)
}
