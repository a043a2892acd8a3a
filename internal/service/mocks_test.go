package service

import (
	"context"
	"time"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/kafka"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("test")
}

// --- account repository fake ---

type fakeAccountRepo struct {
	accounts map[string]*domain.Account

	activations   map[string]repository.ActivationParams
	credits       []int
	creditTokens  []string
	cancellations map[string]time.Time
	paused        []string
	resumed       map[string]repository.ActivationParams

	getErr error
	mutErr error
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	m := make(map[string]*domain.Account)
	for _, a := range accounts {
		m[a.ID] = a
	}
	return &fakeAccountRepo{
		accounts:      m,
		activations:   make(map[string]repository.ActivationParams),
		cancellations: make(map[string]time.Time),
		resumed:       make(map[string]repository.ActivationParams),
	}
}

func (f *fakeAccountRepo) GetByID(_ context.Context, accountID string) (*domain.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (f *fakeAccountRepo) ActivateSubscription(_ context.Context, accountID string, params repository.ActivationParams) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	f.activations[accountID] = params
	acct.Plan = params.Plan
	acct.SubscriptionActive = true
	acct.OffersUsed = 0
	acct.OffersMonth = params.MonthToken
	acct.NextPaymentDate = &params.NextPaymentDate
	acct.SubscriptionID = params.SubscriptionID
	acct.AutoRenewalActive = params.AutoRenewal
	acct.CancellationScheduled = false
	acct.CancellationEffectiveDate = nil
	return nil
}

func (f *fakeAccountRepo) CreditBonusOffers(_ context.Context, accountID string, qty int, monthToken string) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	f.credits = append(f.credits, qty)
	f.creditTokens = append(f.creditTokens, monthToken)
	if acct.OffersMonth == monthToken {
		acct.OffersUsed -= qty
	} else {
		acct.OffersUsed = -qty
	}
	acct.OffersMonth = monthToken
	return nil
}

func (f *fakeAccountRepo) ScheduleCancellation(_ context.Context, accountID string, effective time.Time) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	f.cancellations[accountID] = effective
	acct.CancellationScheduled = true
	acct.CancellationEffectiveDate = &effective
	acct.AutoRenewalActive = false
	acct.SubscriptionID = nil
	return nil
}

func (f *fakeAccountRepo) PauseSubscription(_ context.Context, accountID string) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	f.paused = append(f.paused, accountID)
	acct.SubscriptionActive = false
	acct.AutoRenewalActive = false
	return nil
}

func (f *fakeAccountRepo) ResumeSubscription(_ context.Context, accountID string, params repository.ActivationParams) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	acct, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	f.resumed[accountID] = params
	acct.SubscriptionActive = true
	acct.OffersUsed = 0
	acct.OffersMonth = params.MonthToken
	acct.NextPaymentDate = &params.NextPaymentDate
	acct.SubscriptionID = params.SubscriptionID
	acct.AutoRenewalActive = true
	return nil
}

// --- payment repository fake ---

type fakePaymentRepo struct {
	created  []*domain.PaymentRecord
	approved map[string]*domain.PaymentRecord
	terminal map[string]domain.PaymentStatus

	markErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		approved: make(map[string]*domain.PaymentRecord),
		terminal: make(map[string]domain.PaymentStatus),
	}
}

func (f *fakePaymentRepo) Create(_ context.Context, rec *domain.PaymentRecord) error {
	f.created = append(f.created, rec)
	return nil
}

func (f *fakePaymentRepo) MarkApproved(_ context.Context, rec *domain.PaymentRecord) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if _, ok := f.approved[rec.ProviderID]; ok {
		return false, nil
	}
	f.approved[rec.ProviderID] = rec
	return true, nil
}

func (f *fakePaymentRepo) MarkTerminal(_ context.Context, providerID string, status domain.PaymentStatus) error {
	f.terminal[providerID] = status
	return nil
}

func (f *fakePaymentRepo) ListByAccountID(_ context.Context, accountID string) ([]domain.PaymentRecord, error) {
	var recs []domain.PaymentRecord
	for _, rec := range f.created {
		if rec.AccountID == accountID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

// --- gateway fake ---

type fakeGateway struct {
	payments     map[string]*gateway.PaymentInfo
	preapprovals map[string]*gateway.PreapprovalInfo

	pixResult         *gateway.PixCharge
	preferenceResult  *gateway.CheckoutPreference
	cardResult        *gateway.CardCharge
	preapprovalResult *gateway.Preapproval

	pixInput         *gateway.CreatePixChargeInput
	preferenceInput  *gateway.CreatePreferenceInput
	cardInput        *gateway.CreateCardChargeInput
	preapprovalInput *gateway.CreatePreapprovalInput

	statusUpdates map[string]gateway.Status

	err error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:      make(map[string]*gateway.PaymentInfo),
		preapprovals:  make(map[string]*gateway.PreapprovalInfo),
		statusUpdates: make(map[string]gateway.Status),
	}
}

func (f *fakeGateway) CreatePixCharge(_ context.Context, input gateway.CreatePixChargeInput) (*gateway.PixCharge, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pixInput = &input
	return f.pixResult, nil
}

func (f *fakeGateway) CreatePreference(_ context.Context, input gateway.CreatePreferenceInput) (*gateway.CheckoutPreference, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.preferenceInput = &input
	return f.preferenceResult, nil
}

func (f *fakeGateway) CreateCardCharge(_ context.Context, input gateway.CreateCardChargeInput) (*gateway.CardCharge, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.cardInput = &input
	return f.cardResult, nil
}

func (f *fakeGateway) CreatePreapproval(_ context.Context, input gateway.CreatePreapprovalInput) (*gateway.Preapproval, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.preapprovalInput = &input
	return f.preapprovalResult, nil
}

func (f *fakeGateway) UpdatePreapprovalStatus(_ context.Context, preapprovalID string, status gateway.Status) (*gateway.PreapprovalInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.statusUpdates[preapprovalID] = status
	return &gateway.PreapprovalInfo{ID: preapprovalID, Status: status}, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, paymentID string) (*gateway.PaymentInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.payments[paymentID]
	if !ok {
		return nil, domain.NewExternalServiceError("payment gateway", 404, "not found", nil)
	}
	return info, nil
}

func (f *fakeGateway) GetPreapproval(_ context.Context, preapprovalID string) (*gateway.PreapprovalInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.preapprovals[preapprovalID]
	if !ok {
		return nil, domain.NewExternalServiceError("payment gateway", 404, "not found", nil)
	}
	return info, nil
}

// --- producer fake ---

type fakeProducer struct {
	events []kafka.BillingEvent
}

func (f *fakeProducer) PublishBillingEvent(_ context.Context, event kafka.BillingEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

// --- metrics stub ---

type noopMetrics struct{}

func (noopMetrics) IncChargeCreated(string, string)                     {}
func (noopMetrics) IncReconciliation(string, string)                    {}
func (noopMetrics) IncLifecycleAction(string, string)                   {}
func (noopMetrics) ObserveGatewayRequest(string, string, time.Duration) {}
