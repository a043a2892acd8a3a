package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/kafka"
	"github.com/garagehub/billing-service/internal/metrics"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/pkg/logger"
)

// Action is the account mutation a reconciliation decides on.
type Action string

const (
	ActionNone        Action = "none"
	ActionActivate    Action = "activate"
	ActionCreditBonus Action = "credit_bonus"
)

// Reconciliation outcomes, used in responses and metrics.
const (
	OutcomeActivated        = "activated"
	OutcomeCredited         = "credited"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomePending          = "pending"
	OutcomeFailed           = "failed"
)

// MutationPlan is the decision for one transaction state: which mutation to
// apply, or none, and whether the transaction reached a terminal failure.
type MutationPlan struct {
	Action   Action
	Terminal bool
}

// Reconcile maps a parsed reference and a gateway status to the mutation
// that should happen. It is a pure function: both the webhook path and the
// poll path feed their fetched state through here, so the two paths cannot
// disagree on semantics.
func Reconcile(ref domain.ExternalReference, status gateway.Status) MutationPlan {
	if !status.Success() {
		return MutationPlan{Action: ActionNone, Terminal: status.Terminal()}
	}

	switch ref.Purpose {
	case domain.PurposeBonusOffers:
		return MutationPlan{Action: ActionCreditBonus}
	default:
		// Subscription and trial activate identically; the trial's
		// discounted first period is priced at charge creation, not here.
		return MutationPlan{Action: ActionActivate}
	}
}

// ReconciliationResult is what a reconciliation run reports back.
type ReconciliationResult struct {
	Outcome   string                   `json:"outcome"`
	Status    gateway.Status           `json:"status"`
	Purpose   domain.Purpose           `json:"purpose"`
	Reference domain.ExternalReference `json:"reference"`
}

// ReconciliationService drives payment state from the gateway into account
// mutations. The gateway is the source of truth: notifications carry only a
// resource id and the authoritative status is always fetched fresh.
type ReconciliationService struct {
	accounts repository.AccountRepository
	payments repository.PaymentRepository
	gw       gateway.Client
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewReconciliationService wires the reconciliation service. producer may be
// nil when event publishing is disabled.
func NewReconciliationService(
	accounts repository.AccountRepository,
	payments repository.PaymentRepository,
	gw gateway.Client,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		accounts: accounts,
		payments: payments,
		gw:       gw,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// ReconcilePayment fetches a payment from the gateway and applies whatever
// mutation its state calls for. Serves both webhook notifications and
// client-side polling.
func (s *ReconciliationService) ReconcilePayment(ctx context.Context, paymentID string) (*ReconciliationResult, error) {
	info, err := s.gw.GetPayment(ctx, paymentID)
	if err != nil {
		// Fetch failure means nothing is known about the transaction;
		// no local state is touched.
		s.log.Errorw("Failed to fetch payment for reconciliation", "error", err, "paymentID", paymentID)
		return nil, fmt.Errorf("reconciliation: failed to fetch payment %s: %w", paymentID, err)
	}

	return s.resolve(ctx, domain.ResourcePayment, info.ID, info.ExternalReference,
		info.Status, info.TransactionAmount, info.PreapprovalID)
}

// ReconcilePreapproval does the same for a recurring agreement.
func (s *ReconciliationService) ReconcilePreapproval(ctx context.Context, preapprovalID string) (*ReconciliationResult, error) {
	info, err := s.gw.GetPreapproval(ctx, preapprovalID)
	if err != nil {
		s.log.Errorw("Failed to fetch preapproval for reconciliation", "error", err, "preapprovalID", preapprovalID)
		return nil, fmt.Errorf("reconciliation: failed to fetch preapproval %s: %w", preapprovalID, err)
	}

	return s.resolve(ctx, domain.ResourcePreapproval, info.ID, info.ExternalReference,
		info.Status, 0, info.ID)
}

// resolve is the single convergence point for every reconciliation trigger.
func (s *ReconciliationService) resolve(
	ctx context.Context,
	kind domain.ResourceKind,
	providerID, rawReference string,
	status gateway.Status,
	amount int64,
	agreementID string,
) (*ReconciliationResult, error) {
	ref, err := domain.ParseExternalReference(rawReference)
	if err != nil {
		s.log.Errorw("Unparseable external reference, transaction dropped",
			"reference", rawReference, "providerID", providerID)
		s.metrics.IncReconciliation("unknown", OutcomeFailed)
		return nil, err
	}

	log := s.log.With("providerID", providerID, "accountID", ref.AccountID,
		"purpose", ref.Purpose, "status", status)

	plan := Reconcile(ref, status)
	result := &ReconciliationResult{Status: status, Purpose: ref.Purpose, Reference: ref}

	if plan.Action == ActionNone {
		if plan.Terminal {
			if err := s.payments.MarkTerminal(ctx, providerID, terminalStatus(status)); err != nil {
				return nil, err
			}
			log.Infow("Transaction reached terminal non-success state")
			result.Outcome = OutcomeFailed
		} else {
			log.Debugw("Transaction still pending")
			result.Outcome = OutcomePending
		}
		s.metrics.IncReconciliation(string(ref.Purpose), result.Outcome)
		return result, nil
	}

	// The approved transition is the duplicate guard: losing it means
	// another delivery of the same transaction already mutated the account.
	rec := domain.NewPaymentRecord(ref, providerID, kind, amount)
	won, err := s.payments.MarkApproved(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !won {
		log.Infow("Duplicate notification, mutation already applied")
		result.Outcome = OutcomeAlreadyProcessed
		s.metrics.IncReconciliation(string(ref.Purpose), result.Outcome)
		return result, nil
	}

	switch plan.Action {
	case ActionActivate:
		if err := s.activate(ctx, ref, providerID, agreementID); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeActivated
	case ActionCreditBonus:
		if err := s.creditBonus(ctx, ref, providerID); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeCredited
	}

	s.metrics.IncReconciliation(string(ref.Purpose), result.Outcome)
	return result, nil
}

func (s *ReconciliationService) activate(ctx context.Context, ref domain.ExternalReference, providerID, agreementID string) error {
	acct, err := s.accounts.GetByID(ctx, ref.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("reconciliation: %w: account %s", domain.ErrNotFound, ref.AccountID)
		}
		return err
	}

	if acct.ActiveOn(ref.Plan) {
		// Already active on this plan, nothing to write. The payment was
		// real, so the caller still sees a successful activation.
		s.log.Infow("Account already active on plan, skipping mutation",
			"accountID", ref.AccountID, "plan", ref.Plan)
		return nil
	}

	now := s.now().UTC()
	params := repository.ActivationParams{
		Plan:            ref.Plan,
		MonthToken:      domain.MonthToken(now),
		NextPaymentDate: now.AddDate(0, 1, 0),
	}
	if agreementID != "" {
		params.SubscriptionID = &agreementID
		params.AutoRenewal = true
	}

	if err := s.accounts.ActivateSubscription(ctx, ref.AccountID, params); err != nil {
		return err
	}

	s.log.Infow("Subscription activated", "accountID", ref.AccountID,
		"plan", ref.Plan, "autoRenewal", params.AutoRenewal)
	s.publish(ctx, kafka.BillingEvent{
		Type:       kafka.EventSubscriptionActivated,
		AccountID:  ref.AccountID,
		Plan:       string(ref.Plan),
		Reference:  ref.String(),
		ProviderID: providerID,
	})
	return nil
}

func (s *ReconciliationService) creditBonus(ctx context.Context, ref domain.ExternalReference, providerID string) error {
	token := domain.MonthToken(s.now())
	if err := s.accounts.CreditBonusOffers(ctx, ref.AccountID, domain.BonusOfferQuantity, token); err != nil {
		return err
	}

	s.log.Infow("Bonus offers credited", "accountID", ref.AccountID, "qty", domain.BonusOfferQuantity)
	s.publish(ctx, kafka.BillingEvent{
		Type:       kafka.EventBonusOffersCredited,
		AccountID:  ref.AccountID,
		Reference:  ref.String(),
		ProviderID: providerID,
	})
	return nil
}

func (s *ReconciliationService) publish(ctx context.Context, event kafka.BillingEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishBillingEvent(ctx, event); err != nil {
		// The mutation already committed; the event is best effort.
		s.log.Errorw("Failed to publish billing event", "error", err, "type", event.Type)
	}
}

func terminalStatus(status gateway.Status) domain.PaymentStatus {
	if status == gateway.StatusRejected {
		return domain.PaymentStatusDeclined
	}
	return domain.PaymentStatusCancelled
}
