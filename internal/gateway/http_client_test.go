package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, "test-token", nil, logger.New("test"))
}

func TestCreatePixChargeRequestShape(t *testing.T) {
	var captured map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 12345,
			"status": "pending",
			"point_of_interaction": {
				"transaction_data": {
					"qr_code": "qr-payload",
					"qr_code_base64": "cXItcGF5bG9hZA==",
					"ticket_url": "https://gw.example.com/ticket"
				}
			}
		}`))
	})

	charge, err := client.CreatePixCharge(context.Background(), CreatePixChargeInput{
		Amount:            4990,
		Description:       "Marketplace subscription (silver)",
		ExternalReference: "A|silver",
		PayerEmail:        "a@example.com",
		NotificationURL:   "https://billing.example.com/api/v1/billing/webhook?secret=x",
	})
	require.NoError(t, err)

	// Amounts cross the wire in currency units, not centavos.
	assert.Equal(t, 49.90, captured["transaction_amount"])
	assert.Equal(t, "pix", captured["payment_method_id"])
	assert.Equal(t, "A|silver", captured["external_reference"])

	assert.Equal(t, "12345", charge.ID)
	assert.Equal(t, StatusPending, charge.Status)
	assert.Equal(t, "qr-payload", charge.QRCode)
	assert.Equal(t, "https://gw.example.com/ticket", charge.TicketURL)
}

func TestCreatePreapprovalWithTrial(t *testing.T) {
	var captured map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preapproval", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"id":"agr-1","status":"authorized","init_point":""}`))
	})

	agreement, err := client.CreatePreapproval(context.Background(), CreatePreapprovalInput{
		Reason:            "Marketplace subscription (gold)",
		Amount:            9990,
		TrialAmount:       1990,
		CardTokenID:       "tok-1",
		ExternalReference: "A|gold|trial",
		PayerEmail:        "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, agreement.Status)

	// A seeded card token requests immediate authorization.
	assert.Equal(t, "authorized", captured["status"])

	recurring := captured["auto_recurring"].(map[string]any)
	assert.Equal(t, 99.90, recurring["transaction_amount"])

	// The discounted first-period amount crosses the wire; renewals bill
	// the full recurring amount.
	trial, ok := recurring["free_trial"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 19.90, trial["transaction_amount"])
}

func TestCreatePreapprovalWithoutTrialOmitsTrialBlock(t *testing.T) {
	var captured map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"id":"agr-4","status":"pending","init_point":"https://gw.example.com/agree"}`))
	})

	_, err := client.CreatePreapproval(context.Background(), CreatePreapprovalInput{
		Reason:            "Marketplace subscription (silver)",
		Amount:            4990,
		ExternalReference: "A|silver",
		PayerEmail:        "a@example.com",
	})
	require.NoError(t, err)

	recurring := captured["auto_recurring"].(map[string]any)
	_, present := recurring["free_trial"]
	assert.False(t, present)
}

func TestGetPaymentParsesAmountToCentavos(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/777", r.URL.Path)
		// Reads carry no idempotency key.
		assert.Empty(t, r.Header.Get("X-Idempotency-Key"))
		w.Write([]byte(`{
			"id": 777,
			"status": "approved",
			"external_reference": "A|silver",
			"transaction_amount": 49.90,
			"metadata": {"preapproval_id": "agr-9"}
		}`))
	})

	info, err := client.GetPayment(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, "777", info.ID)
	assert.Equal(t, StatusApproved, info.Status)
	assert.Equal(t, int64(4990), info.TransactionAmount)
	assert.Equal(t, "agr-9", info.PreapprovalID)
}

func TestNonSuccessStatusBecomesExternalServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid card token"}`))
	})

	_, err := client.CreateCardCharge(context.Background(), CreateCardChargeInput{
		Amount:      4990,
		CardTokenID: "bad-token",
		PayerEmail:  "a@example.com",
	})
	require.Error(t, err)

	var extErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, http.StatusBadRequest, extErr.StatusCode)
	// The provider payload travels verbatim for diagnosis.
	assert.Contains(t, extErr.Payload, "invalid card token")
}

func TestUpdatePreapprovalStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/preapproval/agr-3", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cancelled", body["status"])

		w.Write([]byte(`{"id":"agr-3","status":"cancelled","external_reference":"A|silver"}`))
	})

	info, err := client.UpdatePreapprovalStatus(context.Background(), "agr-3", StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, info.Status)
}
