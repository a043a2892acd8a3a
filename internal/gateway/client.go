package gateway

import (
	"context"
)

// Status is a payment or preapproval status as reported by the gateway.
type Status string

const (
	StatusApproved   Status = "approved"
	StatusAuthorized Status = "authorized"
	StatusPending    Status = "pending"
	StatusInProcess  Status = "in_process"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusPaused     Status = "paused"
	StatusInactive   Status = "inactive"
)

// Success reports whether s represents final success. Only these statuses
// may trigger an account mutation.
func (s Status) Success() bool {
	return s == StatusApproved || s == StatusAuthorized
}

// Terminal reports whether s is a terminal non-success state.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusPaused, StatusInactive:
		return true
	}
	return false
}

// CreatePixChargeInput describes a one-off PIX charge. Amount in centavos.
type CreatePixChargeInput struct {
	Amount            int64
	Description       string
	ExternalReference string
	PayerEmail        string
	NotificationURL   string
}

// PixCharge is the gateway's answer to a PIX charge: the QR payload the
// client renders plus the assigned payment id.
type PixCharge struct {
	ID           string
	Status       Status
	QRCode       string
	QRCodeBase64 string
	TicketURL    string
}

// CreatePreferenceInput describes a hosted checkout preference covering
// card and boleto.
type CreatePreferenceInput struct {
	Title             string
	Amount            int64
	ExternalReference string
	PayerEmail        string
	NotificationURL   string
	BackURL           string
}

// CheckoutPreference carries the redirect URL for a hosted checkout.
type CheckoutPreference struct {
	ID        string
	InitPoint string
}

// CreateCardChargeInput describes a one-off charge against a card token
// obtained by client-side tokenization. Plaintext card data never reaches
// this service.
type CreateCardChargeInput struct {
	Amount            int64
	CardTokenID       string
	Installments      int
	Description       string
	ExternalReference string
	PayerEmail        string
	NotificationURL   string
}

// CardCharge is the result of a tokenized charge.
type CardCharge struct {
	ID           string
	Status       Status
	StatusDetail string
}

// CreatePreapprovalInput describes a recurring billing agreement. When
// TrialAmount is non-zero the first period is billed at that amount and the
// gateway auto-renews at Amount afterwards.
type CreatePreapprovalInput struct {
	Reason            string
	Amount            int64
	TrialAmount       int64
	CardTokenID       string
	ExternalReference string
	PayerEmail        string
	BackURL           string
}

// Preapproval is a created recurring agreement.
type Preapproval struct {
	ID        string
	Status    Status
	InitPoint string
}

// PaymentInfo is the authoritative state of a payment fetched from the
// gateway.
type PaymentInfo struct {
	ID                string
	Status            Status
	ExternalReference string
	TransactionAmount int64
	PreapprovalID     string
}

// PreapprovalInfo is the authoritative state of a recurring agreement.
type PreapprovalInfo struct {
	ID                string
	Status            Status
	ExternalReference string
}

// Client talks to the payment provider. Implementations surface any
// non-success HTTP status verbatim as *domain.ExternalServiceError and do
// not retry; they write no local state.
type Client interface {
	CreatePixCharge(ctx context.Context, input CreatePixChargeInput) (*PixCharge, error)
	CreatePreference(ctx context.Context, input CreatePreferenceInput) (*CheckoutPreference, error)
	CreateCardCharge(ctx context.Context, input CreateCardChargeInput) (*CardCharge, error)
	CreatePreapproval(ctx context.Context, input CreatePreapprovalInput) (*Preapproval, error)
	UpdatePreapprovalStatus(ctx context.Context, preapprovalID string, status Status) (*PreapprovalInfo, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
	GetPreapproval(ctx context.Context, preapprovalID string) (*PreapprovalInfo, error)
}
