package domain

import (
	"fmt"
	"time"
)

// Plan is a subscription tier. Basic is the free tier; it never has an
// active paid subscription behind it.
type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanSilver   Plan = "silver"
	PlanGold     Plan = "gold"
	PlanPlatinum Plan = "platinum"
)

// BonusOfferQuantity is the number of offers credited per bonus purchase.
const BonusOfferQuantity = 10

// BonusOfferAmount is the price of one bonus-offer pack, in centavos.
const BonusOfferAmount int64 = 1990

// Pricing holds the billable attributes of a plan. Amounts are in centavos.
type Pricing struct {
	MonthlyAmount int64
	TrialAmount   int64
	OfferQuota    int
}

var planPricing = map[Plan]Pricing{
	PlanBasic:    {MonthlyAmount: 0, TrialAmount: 0, OfferQuota: 3},
	PlanSilver:   {MonthlyAmount: 4990, TrialAmount: 990, OfferQuota: 20},
	PlanGold:     {MonthlyAmount: 9990, TrialAmount: 1990, OfferQuota: 50},
	PlanPlatinum: {MonthlyAmount: 14990, TrialAmount: 2990, OfferQuota: 120},
}

// ParsePlan validates a plan name coming from a request or an external
// reference.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if _, ok := planPricing[p]; !ok {
		return "", fmt.Errorf("%w: unknown plan %q", ErrInvalidPlan, s)
	}
	return p, nil
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planPricing[p]
	return ok
}

// Paid reports whether p is a billable tier.
func (p Plan) Paid() bool {
	return p.Valid() && p != PlanBasic
}

// Pricing returns the billable attributes of p. Unknown plans price as zero.
func (p Plan) Pricing() Pricing {
	return planPricing[p]
}

// MonthToken returns the "YYYY-MM" reference token for t. The offers-used
// counter is only meaningful while the account's stored token equals the
// current one.
func MonthToken(t time.Time) string {
	return t.UTC().Format("2006-01")
}
