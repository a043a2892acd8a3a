package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/pkg/logger"
)

// PaymentRepository stores payment records. Records are created pending and
// move to approved at most once; the approved transition is a conditional
// write keyed on the provider id, so concurrent duplicate notifications
// cannot both win.
type PaymentRepository interface {
	Create(ctx context.Context, rec *domain.PaymentRecord) error

	// MarkApproved atomically transitions the record for providerID to
	// approved, inserting it when no pending record exists locally (the
	// gateway can notify about charges this instance never initiated, e.g.
	// recurring renewals). Returns false when the record was already
	// approved; in that case nothing was written.
	MarkApproved(ctx context.Context, rec *domain.PaymentRecord) (bool, error)

	// MarkTerminal records a declined or cancelled outcome. Approved
	// records are never downgraded.
	MarkTerminal(ctx context.Context, providerID string, status domain.PaymentStatus) error

	// ListByAccountID returns the account's payment history, newest first.
	ListByAccountID(ctx context.Context, accountID string) ([]domain.PaymentRecord, error)
}

type postgresPaymentRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPaymentRepository creates the Postgres-backed payment repo.
func NewPostgresPaymentRepository(db *sqlx.DB, log *logger.Logger) PaymentRepository {
	return &postgresPaymentRepo{db: db, log: log}
}

const paymentColumns = `
	id, external_reference, provider_id, kind, account_id, purpose, plan,
	amount, status, created_at, updated_at, approved_at`

func (r *postgresPaymentRepo) Create(ctx context.Context, rec *domain.PaymentRecord) error {
	query := `
		INSERT INTO payments (
			id, external_reference, provider_id, kind, account_id, purpose,
			plan, amount, status, created_at, updated_at
		) VALUES (
			:id, :external_reference, :provider_id, :kind, :account_id,
			:purpose, :plan, :amount, :status, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		r.log.Errorw("Failed to create payment record", "error", err,
			"providerID", rec.ProviderID, "reference", rec.ExternalReference)
		return fmt.Errorf("repository: failed to create payment record: %w", err)
	}

	r.log.Debugw("Payment record created", "providerID", rec.ProviderID,
		"reference", rec.ExternalReference, "purpose", rec.Purpose)
	return nil
}

func (r *postgresPaymentRepo) MarkApproved(ctx context.Context, rec *domain.PaymentRecord) (bool, error) {
	// Single conditional upsert: the first caller for a provider id wins,
	// every later caller gets no row back. This is the duplicate guard for
	// the whole reconciliation path.
	query := `
		INSERT INTO payments (
			id, external_reference, provider_id, kind, account_id, purpose,
			plan, amount, status, created_at, updated_at, approved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, 'approved', now(), now(), now()
		)
		ON CONFLICT (provider_id) DO UPDATE SET
			status = 'approved',
			approved_at = now(),
			updated_at = now()
		WHERE payments.status <> 'approved'
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.ExternalReference, rec.ProviderID, rec.Kind,
		rec.AccountID, rec.Purpose, rec.Plan, rec.Amount).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Infow("Payment already approved, skipping", "providerID", rec.ProviderID)
			return false, nil
		}
		r.log.Errorw("Failed to mark payment approved", "error", err, "providerID", rec.ProviderID)
		return false, fmt.Errorf("repository: failed to mark payment approved: %w", err)
	}

	r.log.Infow("Payment marked approved", "providerID", rec.ProviderID,
		"reference", rec.ExternalReference)
	return true, nil
}

func (r *postgresPaymentRepo) MarkTerminal(ctx context.Context, providerID string, status domain.PaymentStatus) error {
	if status != domain.PaymentStatusDeclined && status != domain.PaymentStatusCancelled {
		return fmt.Errorf("repository: %q is not a terminal payment status", status)
	}

	query := `
		UPDATE payments SET status = $2, updated_at = now()
		WHERE provider_id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, providerID, status); err != nil {
		r.log.Errorw("Failed to mark payment terminal", "error", err, "providerID", providerID)
		return fmt.Errorf("repository: failed to mark payment terminal: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepo) ListByAccountID(ctx context.Context, accountID string) ([]domain.PaymentRecord, error) {
	var recs []domain.PaymentRecord
	query := `SELECT` + paymentColumns + ` FROM payments
		WHERE account_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &recs, query, accountID)
	if err != nil {
		r.log.Errorw("Failed to list payment records", "error", err, "accountID", accountID)
		return nil, fmt.Errorf("repository: failed to list payment records: %w", err)
	}
	return recs, nil
}
