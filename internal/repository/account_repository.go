package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/pkg/logger"
)

// ActivationParams are the fields written when a subscription activates or
// resumes.
type ActivationParams struct {
	Plan            domain.Plan
	SubscriptionID  *string
	MonthToken      string
	NextPaymentDate time.Time
	AutoRenewal     bool
}

// AccountRepository mutates the billing fields of account records. All
// mutations are single-row partial updates; the store's single-row
// atomicity is the only transactional guarantee relied upon.
type AccountRepository interface {
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)

	// ActivateSubscription applies the full activation mutation: plan,
	// active flag, zeroed usage counter with month token, next payment date
	// one month out, cleared cancellation, renewal flag and agreement id.
	ActivateSubscription(ctx context.Context, accountID string, params ActivationParams) error

	// CreditBonusOffers decrements offers_used by qty in a single
	// statement, resetting the counter first when the stored month token is
	// stale. The result may go negative.
	CreditBonusOffers(ctx context.Context, accountID string, qty int, monthToken string) error

	// ScheduleCancellation records a pending cancellation effective at the
	// given date, disables auto-renewal and clears the agreement id. The
	// active flag is left untouched.
	ScheduleCancellation(ctx context.Context, accountID string, effective time.Time) error

	// PauseSubscription deactivates the subscription immediately and
	// disables auto-renewal.
	PauseSubscription(ctx context.Context, accountID string) error

	// ResumeSubscription reactivates a paused subscription.
	ResumeSubscription(ctx context.Context, accountID string, params ActivationParams) error
}

type postgresAccountRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresAccountRepository creates the Postgres-backed account repo.
func NewPostgresAccountRepository(db *sqlx.DB, log *logger.Logger) AccountRepository {
	return &postgresAccountRepo{db: db, log: log}
}

const accountColumns = `
	id, email, plan, subscription_active, offers_used, offers_month,
	next_payment_date, subscription_id, cancellation_scheduled,
	cancellation_effective_date, auto_renewal_active, created_at, updated_at`

func (r *postgresAccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	var acct domain.Account
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`

	err := r.db.GetContext(ctx, &acct, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnw("Account not found", "accountID", accountID)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get account", "error", err, "accountID", accountID)
		return nil, fmt.Errorf("repository: failed to get account: %w", err)
	}

	return &acct, nil
}

func (r *postgresAccountRepo) ActivateSubscription(ctx context.Context, accountID string, params ActivationParams) error {
	query := `
		UPDATE accounts SET
			plan = $2,
			subscription_active = TRUE,
			offers_used = 0,
			offers_month = $3,
			next_payment_date = $4,
			subscription_id = $5,
			auto_renewal_active = $6,
			cancellation_scheduled = FALSE,
			cancellation_effective_date = NULL,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		accountID, params.Plan, params.MonthToken, params.NextPaymentDate,
		params.SubscriptionID, params.AutoRenewal)
	if err != nil {
		r.log.Errorw("Failed to activate subscription", "error", err, "accountID", accountID, "plan", params.Plan)
		return fmt.Errorf("repository: failed to activate subscription: %w", err)
	}
	return r.requireRow(res, accountID)
}

func (r *postgresAccountRepo) CreditBonusOffers(ctx context.Context, accountID string, qty int, monthToken string) error {
	// Stale month tokens reset the counter before the credit lands, all in
	// one statement so concurrent credits cannot interleave a read.
	query := `
		UPDATE accounts SET
			offers_used = CASE WHEN offers_month = $3 THEN offers_used - $2 ELSE -$2 END,
			offers_month = $3,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID, qty, monthToken)
	if err != nil {
		r.log.Errorw("Failed to credit bonus offers", "error", err, "accountID", accountID, "qty", qty)
		return fmt.Errorf("repository: failed to credit bonus offers: %w", err)
	}
	return r.requireRow(res, accountID)
}

func (r *postgresAccountRepo) ScheduleCancellation(ctx context.Context, accountID string, effective time.Time) error {
	query := `
		UPDATE accounts SET
			cancellation_scheduled = TRUE,
			cancellation_effective_date = $2,
			auto_renewal_active = FALSE,
			subscription_id = NULL,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID, effective)
	if err != nil {
		r.log.Errorw("Failed to schedule cancellation", "error", err, "accountID", accountID)
		return fmt.Errorf("repository: failed to schedule cancellation: %w", err)
	}
	return r.requireRow(res, accountID)
}

func (r *postgresAccountRepo) PauseSubscription(ctx context.Context, accountID string) error {
	query := `
		UPDATE accounts SET
			subscription_active = FALSE,
			auto_renewal_active = FALSE,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		r.log.Errorw("Failed to pause subscription", "error", err, "accountID", accountID)
		return fmt.Errorf("repository: failed to pause subscription: %w", err)
	}
	return r.requireRow(res, accountID)
}

func (r *postgresAccountRepo) ResumeSubscription(ctx context.Context, accountID string, params ActivationParams) error {
	query := `
		UPDATE accounts SET
			subscription_active = TRUE,
			offers_used = 0,
			offers_month = $2,
			next_payment_date = $3,
			subscription_id = $4,
			auto_renewal_active = TRUE,
			cancellation_scheduled = FALSE,
			cancellation_effective_date = NULL,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		accountID, params.MonthToken, params.NextPaymentDate, params.SubscriptionID)
	if err != nil {
		r.log.Errorw("Failed to resume subscription", "error", err, "accountID", accountID)
		return fmt.Errorf("repository: failed to resume subscription: %w", err)
	}
	return r.requireRow(res, accountID)
}

func (r *postgresAccountRepo) requireRow(res sql.Result, accountID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.log.Warnw("Account mutation affected 0 rows", "accountID", accountID)
		return ErrNotFound
	}
	return nil
}
