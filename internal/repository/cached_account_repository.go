package repository

import (
	"context"
	"time"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/pkg/logger"
)

// cachedAccountRepo decorates an AccountRepository with a Redis read cache.
// Every mutation invalidates before delegating so a stale snapshot cannot
// outlive a write.
type cachedAccountRepo struct {
	base  AccountRepository
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedAccountRepository wraps base with the Redis cache.
func NewCachedAccountRepository(base AccountRepository, cache *RedisCache, log *logger.Logger) AccountRepository {
	return &cachedAccountRepo{base: base, cache: cache, log: log}
}

func (r *cachedAccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	cached, err := r.cache.GetAccount(ctx, accountID)
	if err != nil {
		r.log.Warnw("Account cache read failed, falling back to store", "error", err, "accountID", accountID)
	} else if cached != nil {
		return cached, nil
	}

	acct, err := r.base.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetAccount(ctx, acct); err != nil {
		r.log.Warnw("Failed to cache account", "error", err, "accountID", accountID)
	}
	return acct, nil
}

func (r *cachedAccountRepo) ActivateSubscription(ctx context.Context, accountID string, params ActivationParams) error {
	r.invalidate(ctx, accountID)
	return r.base.ActivateSubscription(ctx, accountID, params)
}

func (r *cachedAccountRepo) CreditBonusOffers(ctx context.Context, accountID string, qty int, monthToken string) error {
	r.invalidate(ctx, accountID)
	return r.base.CreditBonusOffers(ctx, accountID, qty, monthToken)
}

func (r *cachedAccountRepo) ScheduleCancellation(ctx context.Context, accountID string, effective time.Time) error {
	r.invalidate(ctx, accountID)
	return r.base.ScheduleCancellation(ctx, accountID, effective)
}

func (r *cachedAccountRepo) PauseSubscription(ctx context.Context, accountID string) error {
	r.invalidate(ctx, accountID)
	return r.base.PauseSubscription(ctx, accountID)
}

func (r *cachedAccountRepo) ResumeSubscription(ctx context.Context, accountID string, params ActivationParams) error {
	r.invalidate(ctx, accountID)
	return r.base.ResumeSubscription(ctx, accountID, params)
}

func (r *cachedAccountRepo) invalidate(ctx context.Context, accountID string) {
	if err := r.cache.InvalidateAccount(ctx, accountID); err != nil {
		r.log.Warnw("Failed to invalidate account cache", "error", err, "accountID", accountID)
	}
}
