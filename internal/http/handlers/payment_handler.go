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

// PaymentHandler serves charge-creation endpoints.
type PaymentHandler struct {
	billing *service.BillingService
	log     *logger.Logger
}

// NewPaymentHandler creates the handler.
func NewPaymentHandler(billing *service.BillingService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{billing: billing, log: log}
}

type CreatePixChargeRequest struct {
	Plan  string `json:"plan" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type PixChargeResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

// CreatePixCharge handles POST /billing/charges/pix.
func (h *PaymentHandler) CreatePixCharge(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	body, err := req.DecodeAndValidate[CreatePixChargeRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Invalid PIX charge request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	plan, err := domain.ParsePlan(body.Plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	charge, err := h.billing.CreatePixCharge(ctx, service.PixChargeInput{
		AccountID: acctID,
		Email:     body.Email,
		Plan:      plan,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, PixChargeResponse{
		PaymentID:    charge.ID,
		Status:       string(charge.Status),
		QRCode:       charge.QRCode,
		QRCodeBase64: charge.QRCodeBase64,
		TicketURL:    charge.TicketURL,
	}, http.StatusCreated)
}

type CreateCheckoutRequest struct {
	Plan  string `json:"plan" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type CheckoutResponse struct {
	PreferenceID string `json:"preference_id"`
	InitPoint    string `json:"init_point"`
}

// CreateCheckout handles POST /billing/charges/checkout.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	body, err := req.DecodeAndValidate[CreateCheckoutRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Invalid checkout request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	plan, err := domain.ParsePlan(body.Plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	pref, err := h.billing.CreateCheckout(ctx, service.CheckoutInput{
		AccountID: acctID,
		Email:     body.Email,
		Plan:      plan,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, CheckoutResponse{PreferenceID: pref.ID, InitPoint: pref.InitPoint}, http.StatusCreated)
}

type CreateCardChargeRequest struct {
	Plan         string `json:"plan" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	CardTokenID  string `json:"card_token_id" validate:"required"`
	Installments int    `json:"installments"`
}

type CardChargeResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
}

// CreateCardCharge handles POST /billing/charges/card.
func (h *PaymentHandler) CreateCardCharge(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	body, err := req.DecodeAndValidate[CreateCardChargeRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Invalid card charge request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	plan, err := domain.ParsePlan(body.Plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	charge, err := h.billing.CreateCardCharge(ctx, service.CardChargeInput{
		AccountID:    acctID,
		Email:        body.Email,
		Plan:         plan,
		CardTokenID:  body.CardTokenID,
		Installments: body.Installments,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, CardChargeResponse{
		PaymentID:    charge.ID,
		Status:       string(charge.Status),
		StatusDetail: charge.StatusDetail,
	}, http.StatusCreated)
}

// ListPayments handles GET /billing/payments.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	records, err := h.billing.ListPayments(ctx, acctID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, records, http.StatusOK)
}

type CreateBonusOffersRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreateBonusOffersCharge handles POST /billing/charges/bonus-offers.
func (h *PaymentHandler) CreateBonusOffersCharge(c *gin.Context) {
	ctx := c.Request.Context()

	acctID, ok := accountID(c, h.log)
	if !ok {
		return
	}

	body, err := req.DecodeAndValidate[CreateBonusOffersRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Invalid bonus offers request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", ErrorCode: res.CodeMissingFields, Details: err.Error()}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	charge, err := h.billing.CreateBonusOffersCharge(ctx, service.BonusOffersInput{
		AccountID: acctID,
		Email:     body.Email,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Success(c.Writer, PixChargeResponse{
		PaymentID:    charge.ID,
		Status:       string(charge.Status),
		QRCode:       charge.QRCode,
		QRCodeBase64: charge.QRCodeBase64,
		TicketURL:    charge.TicketURL,
	}, http.StatusCreated)
}
