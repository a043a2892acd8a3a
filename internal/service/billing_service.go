package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/metrics"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/pkg/logger"
)

// BillingConfig carries the URLs the gateway calls back on. WebhookSecret is
// mandatory; notifications without it are rejected at the edge.
type BillingConfig struct {
	CallbackBaseURL string
	WebhookSecret   string
	ReturnURL       string
}

// PixChargeInput starts a one-off PIX payment for a month of the given plan.
type PixChargeInput struct {
	AccountID string
	Email     string
	Plan      domain.Plan
}

// CheckoutInput starts a hosted checkout (card or boleto) for a month of the
// given plan.
type CheckoutInput struct {
	AccountID string
	Email     string
	Plan      domain.Plan
}

// CardChargeInput charges a card token obtained by client-side tokenization.
type CardChargeInput struct {
	AccountID    string
	Email        string
	Plan         domain.Plan
	CardTokenID  string
	Installments int
}

// AgreementInput creates a recurring billing agreement. With a card token
// the agreement starts authorized; without one the caller is redirected to
// the gateway to confirm. Trial prices the first period at the plan's
// promotional amount.
type AgreementInput struct {
	AccountID   string
	Email       string
	Plan        domain.Plan
	CardTokenID string
	Trial       bool
}

// BonusOffersInput starts a PIX payment for one pack of bonus offers.
type BonusOffersInput struct {
	AccountID string
	Email     string
}

// BillingService creates charges and agreements against the gateway and
// records them locally as pending. It never mutates accounts; that is the
// reconciliation path's job once the gateway reports success.
type BillingService struct {
	payments repository.PaymentRepository
	gw       gateway.Client
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	cfg      BillingConfig
}

// NewBillingService wires the charge-creation service.
func NewBillingService(
	payments repository.PaymentRepository,
	gw gateway.Client,
	m metrics.BillingMetrics,
	log *logger.Logger,
	cfg BillingConfig,
) *BillingService {
	return &BillingService{payments: payments, gw: gw, metrics: m, log: log, cfg: cfg}
}

// CreatePixCharge issues a PIX charge for one month of the plan and returns
// the QR payload.
func (s *BillingService) CreatePixCharge(ctx context.Context, input PixChargeInput) (*gateway.PixCharge, error) {
	if err := requireSubscriptionInput(input.AccountID, input.Email, input.Plan); err != nil {
		return nil, err
	}

	ref := domain.NewSubscriptionReference(input.AccountID, input.Plan)
	amount := input.Plan.Pricing().MonthlyAmount

	charge, err := s.gw.CreatePixCharge(ctx, gateway.CreatePixChargeInput{
		Amount:            amount,
		Description:       planDescription(input.Plan),
		ExternalReference: ref.String(),
		PayerEmail:        input.Email,
		NotificationURL:   s.notificationURL(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordPending(ctx, ref, charge.ID, domain.ResourcePayment, amount); err != nil {
		return nil, err
	}

	s.metrics.IncChargeCreated("pix", string(input.Plan))
	s.log.Infow("PIX charge created", "accountID", input.AccountID,
		"plan", input.Plan, "paymentID", charge.ID)
	return charge, nil
}

// CreateCheckout creates a hosted checkout preference and returns the
// redirect URL. The payment id only becomes known through the webhook, so no
// pending record is written here.
func (s *BillingService) CreateCheckout(ctx context.Context, input CheckoutInput) (*gateway.CheckoutPreference, error) {
	if err := requireSubscriptionInput(input.AccountID, input.Email, input.Plan); err != nil {
		return nil, err
	}

	ref := domain.NewSubscriptionReference(input.AccountID, input.Plan)

	pref, err := s.gw.CreatePreference(ctx, gateway.CreatePreferenceInput{
		Title:             planDescription(input.Plan),
		Amount:            input.Plan.Pricing().MonthlyAmount,
		ExternalReference: ref.String(),
		PayerEmail:        input.Email,
		NotificationURL:   s.notificationURL(),
		BackURL:           s.cfg.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncChargeCreated("checkout", string(input.Plan))
	s.log.Infow("Checkout preference created", "accountID", input.AccountID,
		"plan", input.Plan, "preferenceID", pref.ID)
	return pref, nil
}

// CreateCardCharge charges a tokenized card for one month of the plan.
func (s *BillingService) CreateCardCharge(ctx context.Context, input CardChargeInput) (*gateway.CardCharge, error) {
	if err := requireSubscriptionInput(input.AccountID, input.Email, input.Plan); err != nil {
		return nil, err
	}
	if input.CardTokenID == "" {
		return nil, fmt.Errorf("%w: card token is required", domain.ErrInvalidInput)
	}
	if input.Installments <= 0 {
		input.Installments = 1
	}

	ref := domain.NewSubscriptionReference(input.AccountID, input.Plan)
	amount := input.Plan.Pricing().MonthlyAmount

	charge, err := s.gw.CreateCardCharge(ctx, gateway.CreateCardChargeInput{
		Amount:            amount,
		CardTokenID:       input.CardTokenID,
		Installments:      input.Installments,
		Description:       planDescription(input.Plan),
		ExternalReference: ref.String(),
		PayerEmail:        input.Email,
		NotificationURL:   s.notificationURL(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordPending(ctx, ref, charge.ID, domain.ResourcePayment, amount); err != nil {
		return nil, err
	}

	s.metrics.IncChargeCreated("card", string(input.Plan))
	s.log.Infow("Card charge created", "accountID", input.AccountID,
		"plan", input.Plan, "paymentID", charge.ID, "status", charge.Status)
	return charge, nil
}

// CreateAgreement creates a recurring billing agreement for the plan.
func (s *BillingService) CreateAgreement(ctx context.Context, input AgreementInput) (*gateway.Preapproval, error) {
	if err := requireSubscriptionInput(input.AccountID, input.Email, input.Plan); err != nil {
		return nil, err
	}

	ref := domain.NewSubscriptionReference(input.AccountID, input.Plan)
	pricing := input.Plan.Pricing()

	gwInput := gateway.CreatePreapprovalInput{
		Reason:            planDescription(input.Plan),
		Amount:            pricing.MonthlyAmount,
		CardTokenID:       input.CardTokenID,
		ExternalReference: ref.String(),
		PayerEmail:        input.Email,
		BackURL:           s.cfg.ReturnURL,
	}
	if input.Trial {
		ref = domain.NewTrialReference(input.AccountID, input.Plan)
		gwInput.ExternalReference = ref.String()
		gwInput.TrialAmount = pricing.TrialAmount
	}

	agreement, err := s.gw.CreatePreapproval(ctx, gwInput)
	if err != nil {
		return nil, err
	}

	if err := s.recordPending(ctx, ref, agreement.ID, domain.ResourcePreapproval, pricing.MonthlyAmount); err != nil {
		return nil, err
	}

	s.metrics.IncChargeCreated("agreement", string(input.Plan))
	s.log.Infow("Billing agreement created", "accountID", input.AccountID,
		"plan", input.Plan, "preapprovalID", agreement.ID, "trial", input.Trial)
	return agreement, nil
}

// CreateBonusOffersCharge issues a PIX charge for one pack of bonus offers.
func (s *BillingService) CreateBonusOffersCharge(ctx context.Context, input BonusOffersInput) (*gateway.PixCharge, error) {
	if input.AccountID == "" || input.Email == "" {
		return nil, fmt.Errorf("%w: account id and email are required", domain.ErrInvalidInput)
	}

	// The nonce keeps repeat purchases distinct in the payment store.
	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	ref := domain.NewBonusOffersReference(input.AccountID, nonce)

	charge, err := s.gw.CreatePixCharge(ctx, gateway.CreatePixChargeInput{
		Amount:            domain.BonusOfferAmount,
		Description:       "Bonus offers pack",
		ExternalReference: ref.String(),
		PayerEmail:        input.Email,
		NotificationURL:   s.notificationURL(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordPending(ctx, ref, charge.ID, domain.ResourcePayment, domain.BonusOfferAmount); err != nil {
		return nil, err
	}

	s.metrics.IncChargeCreated("bonus_offers", "")
	s.log.Infow("Bonus offers charge created", "accountID", input.AccountID, "paymentID", charge.ID)
	return charge, nil
}

// ListPayments returns the account's payment history.
func (s *BillingService) ListPayments(ctx context.Context, accountID string) ([]domain.PaymentRecord, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", domain.ErrInvalidInput)
	}
	return s.payments.ListByAccountID(ctx, accountID)
}

func (s *BillingService) recordPending(ctx context.Context, ref domain.ExternalReference, providerID string, kind domain.ResourceKind, amount int64) error {
	rec := domain.NewPaymentRecord(ref, providerID, kind, amount)
	if err := s.payments.Create(ctx, rec); err != nil {
		// The gateway charge exists; reconciliation still upserts on
		// approval, so losing the pending row is recoverable.
		s.log.Errorw("Failed to record pending payment", "error", err, "providerID", providerID)
		return err
	}
	return nil
}

func (s *BillingService) notificationURL() string {
	v := url.Values{}
	v.Set("secret", s.cfg.WebhookSecret)
	return s.cfg.CallbackBaseURL + "/api/v1/billing/webhook?" + v.Encode()
}

func requireSubscriptionInput(accountID, email string, plan domain.Plan) error {
	if accountID == "" || email == "" {
		return fmt.Errorf("%w: account id and email are required", domain.ErrInvalidInput)
	}
	if !plan.Paid() {
		return fmt.Errorf("%w: %q is not a billable plan", domain.ErrInvalidPlan, plan)
	}
	return nil
}

func planDescription(plan domain.Plan) string {
	return fmt.Sprintf("Marketplace subscription (%s)", plan)
}
