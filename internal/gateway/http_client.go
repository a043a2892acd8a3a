package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/metrics"
	"github.com/garagehub/billing-service/pkg/logger"
)

const serviceName = "payment gateway"

// httpClient implements Client against the provider's REST API.
type httpClient struct {
	baseURL     string
	accessToken string
	http        *http.Client
	metrics     metrics.BillingMetrics
	log         *logger.Logger
}

// NewHTTPClient creates the REST gateway client.
func NewHTTPClient(baseURL, accessToken string, m metrics.BillingMetrics, log *logger.Logger) Client {
	return &httpClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
		metrics:     m,
		log:         log,
	}
}

// --- wire types ---

type wirePayer struct {
	Email string `json:"email"`
}

type wirePaymentRequest struct {
	TransactionAmount float64   `json:"transaction_amount"`
	Description       string    `json:"description,omitempty"`
	PaymentMethodID   string    `json:"payment_method_id,omitempty"`
	Token             string    `json:"token,omitempty"`
	Installments      int       `json:"installments,omitempty"`
	ExternalReference string    `json:"external_reference"`
	NotificationURL   string    `json:"notification_url,omitempty"`
	Payer             wirePayer `json:"payer"`
}

type wirePayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	Metadata          struct {
		PreapprovalID string `json:"preapproval_id"`
	} `json:"metadata"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type wirePreferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type wirePreferenceRequest struct {
	Items             []wirePreferenceItem `json:"items"`
	ExternalReference string               `json:"external_reference"`
	NotificationURL   string               `json:"notification_url,omitempty"`
	Payer             wirePayer            `json:"payer"`
	BackURLs          struct {
		Success string `json:"success,omitempty"`
		Failure string `json:"failure,omitempty"`
		Pending string `json:"pending,omitempty"`
	} `json:"back_urls"`
}

type wirePreference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type wireFreeTrial struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
}

type wireAutoRecurring struct {
	Frequency         int            `json:"frequency"`
	FrequencyType     string         `json:"frequency_type"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	FreeTrial         *wireFreeTrial `json:"free_trial,omitempty"`
}

type wirePreapprovalRequest struct {
	Reason            string            `json:"reason"`
	ExternalReference string            `json:"external_reference"`
	PayerEmail        string            `json:"payer_email"`
	CardTokenID       string            `json:"card_token_id,omitempty"`
	BackURL           string            `json:"back_url,omitempty"`
	AutoRecurring     wireAutoRecurring `json:"auto_recurring"`
	Status            string            `json:"status,omitempty"`
}

type wirePreapproval struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	InitPoint         string `json:"init_point"`
	ExternalReference string `json:"external_reference"`
}

// --- operations ---

func (c *httpClient) CreatePixCharge(ctx context.Context, input CreatePixChargeInput) (*PixCharge, error) {
	body := wirePaymentRequest{
		TransactionAmount: centavosToUnits(input.Amount),
		Description:       input.Description,
		PaymentMethodID:   "pix",
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
		Payer:             wirePayer{Email: input.PayerEmail},
	}

	var out wirePayment
	if err := c.do(ctx, "create_pix_payment", http.MethodPost, "/v1/payments", body, &out); err != nil {
		return nil, err
	}

	return &PixCharge{
		ID:           out.ID.String(),
		Status:       Status(out.Status),
		QRCode:       out.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: out.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:    out.PointOfInteraction.TransactionData.TicketURL,
	}, nil
}

func (c *httpClient) CreatePreference(ctx context.Context, input CreatePreferenceInput) (*CheckoutPreference, error) {
	body := wirePreferenceRequest{
		Items: []wirePreferenceItem{{
			Title:     input.Title,
			Quantity:  1,
			UnitPrice: centavosToUnits(input.Amount),
		}},
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
		Payer:             wirePayer{Email: input.PayerEmail},
	}
	body.BackURLs.Success = input.BackURL
	body.BackURLs.Failure = input.BackURL
	body.BackURLs.Pending = input.BackURL

	var out wirePreference
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", body, &out); err != nil {
		return nil, err
	}

	return &CheckoutPreference{ID: out.ID, InitPoint: out.InitPoint}, nil
}

func (c *httpClient) CreateCardCharge(ctx context.Context, input CreateCardChargeInput) (*CardCharge, error) {
	body := wirePaymentRequest{
		TransactionAmount: centavosToUnits(input.Amount),
		Description:       input.Description,
		Token:             input.CardTokenID,
		Installments:      input.Installments,
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
		Payer:             wirePayer{Email: input.PayerEmail},
	}

	var out wirePayment
	if err := c.do(ctx, "create_card_payment", http.MethodPost, "/v1/payments", body, &out); err != nil {
		return nil, err
	}

	return &CardCharge{
		ID:           out.ID.String(),
		Status:       Status(out.Status),
		StatusDetail: out.StatusDetail,
	}, nil
}

func (c *httpClient) CreatePreapproval(ctx context.Context, input CreatePreapprovalInput) (*Preapproval, error) {
	body := wirePreapprovalRequest{
		Reason:            input.Reason,
		ExternalReference: input.ExternalReference,
		PayerEmail:        input.PayerEmail,
		CardTokenID:       input.CardTokenID,
		BackURL:           input.BackURL,
		AutoRecurring: wireAutoRecurring{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: centavosToUnits(input.Amount),
			CurrencyID:        "BRL",
		},
	}
	// A seeded card token lets the agreement start authorized right away.
	if input.CardTokenID != "" {
		body.Status = string(StatusAuthorized)
	}
	if input.TrialAmount > 0 {
		// The gateway bills the discounted trial amount for the first period
		// and renews at the full recurring amount on its own. This service
		// never re-prices afterwards.
		body.AutoRecurring.FreeTrial = &wireFreeTrial{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: centavosToUnits(input.TrialAmount),
		}
	}

	var out wirePreapproval
	if err := c.do(ctx, "create_preapproval", http.MethodPost, "/preapproval", body, &out); err != nil {
		return nil, err
	}

	return &Preapproval{ID: out.ID, Status: Status(out.Status), InitPoint: out.InitPoint}, nil
}

func (c *httpClient) UpdatePreapprovalStatus(ctx context.Context, preapprovalID string, status Status) (*PreapprovalInfo, error) {
	body := map[string]string{"status": string(status)}

	var out wirePreapproval
	if err := c.do(ctx, "update_preapproval", http.MethodPut, "/preapproval/"+preapprovalID, body, &out); err != nil {
		return nil, err
	}

	return &PreapprovalInfo{
		ID:                out.ID,
		Status:            Status(out.Status),
		ExternalReference: out.ExternalReference,
	}, nil
}

func (c *httpClient) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	var out wirePayment
	if err := c.do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+paymentID, nil, &out); err != nil {
		return nil, err
	}

	return &PaymentInfo{
		ID:                out.ID.String(),
		Status:            Status(out.Status),
		ExternalReference: out.ExternalReference,
		TransactionAmount: unitsToCentavos(out.TransactionAmount),
		PreapprovalID:     out.Metadata.PreapprovalID,
	}, nil
}

func (c *httpClient) GetPreapproval(ctx context.Context, preapprovalID string) (*PreapprovalInfo, error) {
	var out wirePreapproval
	if err := c.do(ctx, "get_preapproval", http.MethodGet, "/preapproval/"+preapprovalID, nil, &out); err != nil {
		return nil, err
	}

	return &PreapprovalInfo{
		ID:                out.ID,
		Status:            Status(out.Status),
		ExternalReference: out.ExternalReference,
	}, nil
}

// do runs one request against the provider. Non-2xx responses become
// *domain.ExternalServiceError with the provider payload attached; there is
// no retry at this layer, duplicate protection comes from the idempotency
// key header.
func (c *httpClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		c.log.Errorw("Gateway request failed", "method", method, "path", path, "error", err)
		return domain.NewExternalServiceError(serviceName, 0, "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	c.observe(op, resp.StatusCode, start)
	if err != nil {
		return fmt.Errorf("gateway: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warnw("Gateway returned non-success status",
			"method", method, "path", path, "status", resp.StatusCode)
		return domain.NewExternalServiceError(serviceName, resp.StatusCode, string(payload), nil)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("gateway: failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *httpClient) observe(op string, status int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveGatewayRequest(op, strconv.Itoa(status), time.Since(start))
}

func centavosToUnits(v int64) float64 {
	return float64(v) / 100
}

func unitsToCentavos(v float64) int64 {
	return int64(v*100 + 0.5)
}
