package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/gateway"
	"github.com/garagehub/billing-service/internal/kafka"
	"github.com/garagehub/billing-service/internal/metrics"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/pkg/logger"
)

// LifecycleService drives cancel, pause and resume of recurring agreements.
// The gateway call always happens first; local state changes only after the
// provider confirmed, so a failed upstream call leaves the account exactly
// as it was.
type LifecycleService struct {
	accounts repository.AccountRepository
	gw       gateway.Client
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewLifecycleService wires the lifecycle service. producer may be nil.
func NewLifecycleService(
	accounts repository.AccountRepository,
	gw gateway.Client,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		accounts: accounts,
		gw:       gw,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// CancellationResult reports when the cancellation takes effect.
type CancellationResult struct {
	EffectiveDate time.Time `json:"effective_date"`
}

// Cancel cancels the account's recurring agreement at the gateway, then
// schedules the local cancellation at the end of the already paid period.
// The subscription stays active until that date.
func (s *LifecycleService) Cancel(ctx context.Context, accountID string) (*CancellationResult, error) {
	acct, agreementID, err := s.requireAgreement(ctx, accountID)
	if err != nil {
		s.metrics.IncLifecycleAction("cancel", "rejected")
		return nil, err
	}

	if _, err := s.gw.UpdatePreapprovalStatus(ctx, agreementID, gateway.StatusCancelled); err != nil {
		s.metrics.IncLifecycleAction("cancel", "gateway_error")
		s.log.Errorw("Gateway cancellation failed, local state untouched",
			"error", err, "accountID", accountID)
		return nil, err
	}

	effective := s.now().UTC()
	if acct.NextPaymentDate != nil {
		effective = *acct.NextPaymentDate
	}

	if err := s.accounts.ScheduleCancellation(ctx, accountID, effective); err != nil {
		s.metrics.IncLifecycleAction("cancel", "store_error")
		return nil, err
	}

	s.metrics.IncLifecycleAction("cancel", "ok")
	s.log.Infow("Subscription cancellation scheduled", "accountID", accountID,
		"effectiveDate", effective)
	s.publish(ctx, kafka.BillingEvent{
		Type:      kafka.EventSubscriptionCancelled,
		AccountID: accountID,
		Plan:      string(acct.Plan),
	})
	return &CancellationResult{EffectiveDate: effective}, nil
}

// Pause pauses the agreement at the gateway and deactivates the
// subscription locally, effective immediately.
func (s *LifecycleService) Pause(ctx context.Context, accountID string) error {
	acct, agreementID, err := s.requireAgreement(ctx, accountID)
	if err != nil {
		s.metrics.IncLifecycleAction("pause", "rejected")
		return err
	}

	if _, err := s.gw.UpdatePreapprovalStatus(ctx, agreementID, gateway.StatusPaused); err != nil {
		s.metrics.IncLifecycleAction("pause", "gateway_error")
		s.log.Errorw("Gateway pause failed, local state untouched",
			"error", err, "accountID", accountID)
		return err
	}

	if err := s.accounts.PauseSubscription(ctx, accountID); err != nil {
		s.metrics.IncLifecycleAction("pause", "store_error")
		return err
	}

	s.metrics.IncLifecycleAction("pause", "ok")
	s.log.Infow("Subscription paused", "accountID", accountID)
	s.publish(ctx, kafka.BillingEvent{
		Type:      kafka.EventSubscriptionPaused,
		AccountID: accountID,
		Plan:      string(acct.Plan),
	})
	return nil
}

// Resume reauthorizes a paused agreement at the gateway and reactivates the
// subscription for a fresh period. An account that dropped to the free tier
// gets no local reactivation; the next renewal activates it through
// reconciliation.
func (s *LifecycleService) Resume(ctx context.Context, accountID string) error {
	acct, agreementID, err := s.requireAgreement(ctx, accountID)
	if err != nil {
		s.metrics.IncLifecycleAction("resume", "rejected")
		return err
	}

	if _, err := s.gw.UpdatePreapprovalStatus(ctx, agreementID, gateway.StatusAuthorized); err != nil {
		s.metrics.IncLifecycleAction("resume", "gateway_error")
		s.log.Errorw("Gateway resume failed, local state untouched",
			"error", err, "accountID", accountID)
		return err
	}

	if acct.Plan.Paid() {
		now := s.now().UTC()
		params := repository.ActivationParams{
			Plan:            acct.Plan,
			SubscriptionID:  &agreementID,
			MonthToken:      domain.MonthToken(now),
			NextPaymentDate: now.AddDate(0, 1, 0),
			AutoRenewal:     true,
		}
		if err := s.accounts.ResumeSubscription(ctx, accountID, params); err != nil {
			s.metrics.IncLifecycleAction("resume", "store_error")
			return err
		}
	}

	s.metrics.IncLifecycleAction("resume", "ok")
	s.log.Infow("Subscription resumed", "accountID", accountID, "plan", acct.Plan)
	s.publish(ctx, kafka.BillingEvent{
		Type:      kafka.EventSubscriptionResumed,
		AccountID: accountID,
		Plan:      string(acct.Plan),
	})
	return nil
}

// GetAgreement fetches the raw agreement state from the gateway.
func (s *LifecycleService) GetAgreement(ctx context.Context, preapprovalID string) (*gateway.PreapprovalInfo, error) {
	return s.gw.GetPreapproval(ctx, preapprovalID)
}

func (s *LifecycleService) requireAgreement(ctx context.Context, accountID string) (*domain.Account, string, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	if acct.SubscriptionID == nil || *acct.SubscriptionID == "" {
		return nil, "", fmt.Errorf("%w: account %s has no recurring agreement", domain.ErrNotFound, accountID)
	}
	return acct, *acct.SubscriptionID, nil
}

func (s *LifecycleService) publish(ctx context.Context, event kafka.BillingEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishBillingEvent(ctx, event); err != nil {
		s.log.Errorw("Failed to publish billing event", "error", err, "type", event.Type)
	}
}
