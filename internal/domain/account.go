package domain

import (
	"time"
)

// Account holds the billing-relevant fields of a marketplace account.
// Invariants:
//   - OffersUsed only counts while OffersMonth equals the current month
//     token; a stale token means the counter reads as zero. Negative values
//     are purchased bonus credits carried beyond the plan quota.
//   - SubscriptionID is non-nil only while AutoRenewalActive is true;
//     cancellation clears both.
type Account struct {
	ID                        string     `db:"id" json:"id"`
	Email                     string     `db:"email" json:"email"`
	Plan                      Plan       `db:"plan" json:"plan"`
	SubscriptionActive        bool       `db:"subscription_active" json:"subscription_active"`
	OffersUsed                int        `db:"offers_used" json:"offers_used"`
	OffersMonth               string     `db:"offers_month" json:"offers_month"`
	NextPaymentDate           *time.Time `db:"next_payment_date" json:"next_payment_date,omitempty"`
	SubscriptionID            *string    `db:"subscription_id" json:"subscription_id,omitempty"`
	CancellationScheduled     bool       `db:"cancellation_scheduled" json:"cancellation_scheduled"`
	CancellationEffectiveDate *time.Time `db:"cancellation_effective_date" json:"cancellation_effective_date,omitempty"`
	AutoRenewalActive         bool       `db:"auto_renewal_active" json:"auto_renewal_active"`
	CreatedAt                 time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveOffersUsed returns the counter as of now, treating a stale month
// token as a reset.
func (a *Account) EffectiveOffersUsed(now time.Time) int {
	if a.OffersMonth != MonthToken(now) {
		return 0
	}
	return a.OffersUsed
}

// ActiveOn reports whether the account already holds an active subscription
// on the given plan. Used for the activation short-circuit.
func (a *Account) ActiveOn(plan Plan) bool {
	return a.SubscriptionActive && a.Plan == plan
}
