package domain

import (
	"fmt"
	"strings"
)

// Purpose discriminates what an approved payment should do to the account.
// It is carried inside the external reference, not inferred from the
// gateway's payment type: the provider reuses the same "approved" status
// across all purposes.
type Purpose string

const (
	PurposeSubscription Purpose = "subscription"
	PurposeTrial        Purpose = "trial"
	PurposeBonusOffers  Purpose = "bonus_offers"
)

const (
	refSeparator   = "|"
	refBonusMarker = "bonus_offers"
	refTrialMarker = "trial"
)

// ExternalReference is the structured key sent to the gateway with every
// charge and parsed back out of its notifications. Wire forms:
//
//	accountID|plan              plain subscription activation
//	accountID|plan|trial        promotional trial subscription
//	accountID|bonus_offers|n    bonus-offer purchase, n disambiguates
type ExternalReference struct {
	AccountID string
	Plan      Plan
	Purpose   Purpose
	Nonce     string
}

// NewSubscriptionReference builds the reference for a plain activation.
func NewSubscriptionReference(accountID string, plan Plan) ExternalReference {
	return ExternalReference{AccountID: accountID, Plan: plan, Purpose: PurposeSubscription}
}

// NewTrialReference builds the reference for a promotional trial.
func NewTrialReference(accountID string, plan Plan) ExternalReference {
	return ExternalReference{AccountID: accountID, Plan: plan, Purpose: PurposeTrial}
}

// NewBonusOffersReference builds the reference for a bonus-offer purchase.
// The nonce keeps repeat purchases by the same account distinct.
func NewBonusOffersReference(accountID, nonce string) ExternalReference {
	return ExternalReference{AccountID: accountID, Purpose: PurposeBonusOffers, Nonce: nonce}
}

// String renders the wire form.
func (r ExternalReference) String() string {
	switch r.Purpose {
	case PurposeBonusOffers:
		return strings.Join([]string{r.AccountID, refBonusMarker, r.Nonce}, refSeparator)
	case PurposeTrial:
		return strings.Join([]string{r.AccountID, string(r.Plan), refTrialMarker}, refSeparator)
	default:
		return strings.Join([]string{r.AccountID, string(r.Plan)}, refSeparator)
	}
}

// ParseExternalReference parses the wire form. A reference that cannot be
// parsed is an unrecoverable failure for its transaction; callers must not
// proceed with any mutation.
func ParseExternalReference(s string) (ExternalReference, error) {
	parts := strings.Split(s, refSeparator)
	for _, p := range parts {
		if p == "" {
			return ExternalReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, s)
		}
	}

	switch len(parts) {
	case 2:
		plan, err := ParsePlan(parts[1])
		if err != nil {
			return ExternalReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, s)
		}
		return ExternalReference{AccountID: parts[0], Plan: plan, Purpose: PurposeSubscription}, nil

	case 3:
		if parts[1] == refBonusMarker {
			return ExternalReference{AccountID: parts[0], Purpose: PurposeBonusOffers, Nonce: parts[2]}, nil
		}
		if parts[2] == refTrialMarker {
			plan, err := ParsePlan(parts[1])
			if err != nil {
				return ExternalReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, s)
			}
			return ExternalReference{AccountID: parts[0], Plan: plan, Purpose: PurposeTrial}, nil
		}
		return ExternalReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, s)

	default:
		return ExternalReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, s)
	}
}
