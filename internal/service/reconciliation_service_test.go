package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/kafka"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestReconciliation(accounts *fakeAccountRepo, payments *fakePaymentRepo, gw *fakeGateway) (*ReconciliationService, *fakeProducer) {
	producer := &fakeProducer{}
	svc := NewReconciliationService(accounts, payments, gw, producer, noopMetrics{}, testLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, producer
}

func basicAccount(id string) *domain.Account {
	return &domain.Account{ID: id, Email: id + "@example.com", Plan: domain.PlanBasic}
}

func TestReconcileDecision(t *testing.T) {
	subRef := domain.NewSubscriptionReference("A", domain.PlanSilver)
	trialRef := domain.NewTrialReference("A", domain.PlanGold)
	bonusRef := domain.NewBonusOffersReference("A", "123")

	assert.Equal(t, MutationPlan{Action: ActionActivate}, Reconcile(subRef, gateway.StatusApproved))
	assert.Equal(t, MutationPlan{Action: ActionActivate}, Reconcile(trialRef, gateway.StatusAuthorized))
	assert.Equal(t, MutationPlan{Action: ActionCreditBonus}, Reconcile(bonusRef, gateway.StatusApproved))

	assert.Equal(t, MutationPlan{Action: ActionNone}, Reconcile(subRef, gateway.StatusPending))
	assert.Equal(t, MutationPlan{Action: ActionNone}, Reconcile(subRef, gateway.StatusInProcess))
	assert.Equal(t, MutationPlan{Action: ActionNone, Terminal: true}, Reconcile(subRef, gateway.StatusRejected))
	assert.Equal(t, MutationPlan{Action: ActionNone, Terminal: true}, Reconcile(bonusRef, gateway.StatusCancelled))
}

func TestReconcilePaymentActivatesSubscription(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p1"] = &gateway.PaymentInfo{
		ID:                "p1",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|silver",
		TransactionAmount: 4990,
	}

	svc, producer := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, result.Outcome)
	assert.Equal(t, domain.PurposeSubscription, result.Purpose)

	acct := accounts.accounts["A"]
	assert.Equal(t, domain.PlanSilver, acct.Plan)
	assert.True(t, acct.SubscriptionActive)
	assert.Equal(t, 0, acct.OffersUsed)
	assert.Equal(t, "2026-03", acct.OffersMonth)
	require.NotNil(t, acct.NextPaymentDate)
	assert.Equal(t, fixedNow.AddDate(0, 1, 0), *acct.NextPaymentDate)
	assert.Nil(t, acct.SubscriptionID)
	assert.False(t, acct.AutoRenewalActive)

	require.Len(t, producer.events, 1)
	assert.Equal(t, kafka.EventSubscriptionActivated, producer.events[0].Type)
}

func TestReconcilePaymentWithAgreementEnablesAutoRenewal(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p2"] = &gateway.PaymentInfo{
		ID:                "p2",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|gold",
		PreapprovalID:     "agr-7",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, result.Outcome)

	acct := accounts.accounts["A"]
	require.NotNil(t, acct.SubscriptionID)
	assert.Equal(t, "agr-7", *acct.SubscriptionID)
	assert.True(t, acct.AutoRenewalActive)
}

func TestReconcileDuplicateNotification(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p1"] = &gateway.PaymentInfo{
		ID:                "p1",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|silver",
	}

	svc, producer := newTestReconciliation(accounts, payments, gw)

	first, err := svc.ReconcilePayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, first.Outcome)

	second, err := svc.ReconcilePayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)

	assert.Len(t, accounts.activations, 1)
	assert.Len(t, producer.events, 1)
}

func TestReconcileAlreadyActiveSkipsMutation(t *testing.T) {
	acct := basicAccount("A")
	acct.Plan = domain.PlanSilver
	acct.SubscriptionActive = true

	accounts := newFakeAccountRepo(acct)
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p3"] = &gateway.PaymentInfo{
		ID:                "p3",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|silver",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p3")
	require.NoError(t, err)
	// The payment was real, so the caller still sees success.
	assert.Equal(t, OutcomeActivated, result.Outcome)
	assert.Empty(t, accounts.activations)
}

func TestReconcileTrialActivates(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.preapprovals["agr-1"] = &gateway.PreapprovalInfo{
		ID:                "agr-1",
		Status:            gateway.StatusAuthorized,
		ExternalReference: "A|gold|trial",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePreapproval(context.Background(), "agr-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, result.Outcome)
	assert.Equal(t, domain.PurposeTrial, result.Purpose)

	acct := accounts.accounts["A"]
	assert.Equal(t, domain.PlanGold, acct.Plan)
	assert.True(t, acct.AutoRenewalActive)
	require.NotNil(t, acct.SubscriptionID)
	assert.Equal(t, "agr-1", *acct.SubscriptionID)
}

func TestReconcileBonusOffersCredit(t *testing.T) {
	acct := basicAccount("A")
	acct.OffersUsed = 5
	acct.OffersMonth = "2026-03"

	accounts := newFakeAccountRepo(acct)
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p4"] = &gateway.PaymentInfo{
		ID:                "p4",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|bonus_offers|1700000000",
	}

	svc, producer := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCredited, result.Outcome)

	// 5 used minus a pack of 10 leaves 5 prepaid credits.
	assert.Equal(t, -5, accounts.accounts["A"].OffersUsed)
	require.Len(t, producer.events, 1)
	assert.Equal(t, kafka.EventBonusOffersCredited, producer.events[0].Type)
}

func TestReconcileBonusOffersStaleMonthResets(t *testing.T) {
	acct := basicAccount("A")
	acct.OffersUsed = 7
	acct.OffersMonth = "2025-12"

	accounts := newFakeAccountRepo(acct)
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p5"] = &gateway.PaymentInfo{
		ID:                "p5",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|bonus_offers|1700000001",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	_, err := svc.ReconcilePayment(context.Background(), "p5")
	require.NoError(t, err)

	assert.Equal(t, -10, accounts.accounts["A"].OffersUsed)
	assert.Equal(t, "2026-03", accounts.accounts["A"].OffersMonth)
}

func TestReconcilePendingLeavesStateUntouched(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p6"] = &gateway.PaymentInfo{
		ID:                "p6",
		Status:            gateway.StatusPending,
		ExternalReference: "A|silver",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p6")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	assert.Empty(t, accounts.activations)
	assert.Empty(t, payments.approved)
}

func TestReconcileRejectedMarksTerminal(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p7"] = &gateway.PaymentInfo{
		ID:                "p7",
		Status:            gateway.StatusRejected,
		ExternalReference: "A|silver",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	result, err := svc.ReconcilePayment(context.Background(), "p7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, domain.PaymentStatusDeclined, payments.terminal["p7"])
	assert.Empty(t, accounts.activations)
}

func TestReconcileFetchFailureMutatesNothing(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()

	svc, _ := newTestReconciliation(accounts, payments, gw)

	_, err := svc.ReconcilePayment(context.Background(), "missing")
	require.Error(t, err)

	var extErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 404, extErr.StatusCode)

	assert.Empty(t, accounts.activations)
	assert.Empty(t, payments.approved)
	assert.Empty(t, payments.terminal)
}

func TestReconcileMalformedReferenceMutatesNothing(t *testing.T) {
	accounts := newFakeAccountRepo(basicAccount("A"))
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p8"] = &gateway.PaymentInfo{
		ID:                "p8",
		Status:            gateway.StatusApproved,
		ExternalReference: "A|silver|gold|extra",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	_, err := svc.ReconcilePayment(context.Background(), "p8")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
	assert.Empty(t, accounts.activations)
	assert.Empty(t, payments.approved)
}

func TestReconcileUnknownAccountFails(t *testing.T) {
	accounts := newFakeAccountRepo()
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	gw.payments["p9"] = &gateway.PaymentInfo{
		ID:                "p9",
		Status:            gateway.StatusApproved,
		ExternalReference: "ghost|silver",
	}

	svc, _ := newTestReconciliation(accounts, payments, gw)

	_, err := svc.ReconcilePayment(context.Background(), "p9")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
