package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalReferenceRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ref  ExternalReference
		wire string
	}{
		{
			name: "subscription",
			ref:  NewSubscriptionReference("acct-1", PlanSilver),
			wire: "acct-1|silver",
		},
		{
			name: "trial",
			ref:  NewTrialReference("acct-1", PlanGold),
			wire: "acct-1|gold|trial",
		},
		{
			name: "bonus offers",
			ref:  NewBonusOffersReference("acct-1", "1700000000"),
			wire: "acct-1|bonus_offers|1700000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wire, tt.ref.String())

			parsed, err := ParseExternalReference(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.ref, parsed)
		})
	}
}

func TestParseExternalReferenceMalformed(t *testing.T) {
	cases := []string{
		"",
		"acct-1",
		"acct-1|",
		"|silver",
		"acct-1|unknown_plan",
		"acct-1||trial",
		"acct-1|silver|extra",
		"acct-1|silver|trial|more",
		"acct-1|bonus_offers|",
	}

	for _, wire := range cases {
		t.Run(wire, func(t *testing.T) {
			_, err := ParseExternalReference(wire)
			assert.ErrorIs(t, err, ErrMalformedReference)
		})
	}
}

func TestParseExternalReferenceBonusBeatsTrialShape(t *testing.T) {
	// "bonus_offers" in the middle segment always means a bonus purchase,
	// even though the shape has three segments like a trial.
	ref, err := ParseExternalReference("acct-1|bonus_offers|trial")
	require.NoError(t, err)
	assert.Equal(t, PurposeBonusOffers, ref.Purpose)
	assert.Equal(t, "trial", ref.Nonce)
}
