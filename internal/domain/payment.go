package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the local status of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusDeclined  PaymentStatus = "declined"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// ResourceKind says which gateway resource a payment record tracks.
type ResourceKind string

const (
	ResourcePayment     ResourceKind = "payment"
	ResourcePreapproval ResourceKind = "preapproval"
)

// PaymentRecord tracks one attempted transaction against the gateway.
// ProviderID is the gateway's payment or preapproval identifier and is
// unique in the store: a record moves to approved at most once, enforced by
// a conditional write keyed on it. Records are never deleted here.
type PaymentRecord struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	ExternalReference string        `db:"external_reference" json:"external_reference"`
	ProviderID        string        `db:"provider_id" json:"provider_id"`
	Kind              ResourceKind  `db:"kind" json:"kind"`
	AccountID         string        `db:"account_id" json:"account_id"`
	Purpose           Purpose       `db:"purpose" json:"purpose"`
	Plan              Plan          `db:"plan" json:"plan,omitempty"`
	Amount            int64         `db:"amount" json:"amount"`
	Status            PaymentStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
	ApprovedAt        *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
}

// NewPaymentRecord creates a pending record for a freshly issued charge or
// agreement.
func NewPaymentRecord(ref ExternalReference, providerID string, kind ResourceKind, amount int64) *PaymentRecord {
	now := time.Now().UTC()
	return &PaymentRecord{
		ID:                uuid.New(),
		ExternalReference: ref.String(),
		ProviderID:        providerID,
		Kind:              kind,
		AccountID:         ref.AccountID,
		Purpose:           ref.Purpose,
		Plan:              ref.Plan,
		Amount:            amount,
		Status:            PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
