package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	maxTxAttempts  = 5
	initialBackoff = 10 * time.Millisecond
)

// AccountStore implements ports.AccountStore on PostgreSQL. The row
// lock taken by TransactionalUpdate serializes all writes to one
// account; writes to different accounts never contend.
type AccountStore struct {
	pool Pool
	log  zerolog.Logger
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool Pool, log zerolog.Logger) *AccountStore {
	return &AccountStore{pool: pool, log: log}
}

// TransactionalUpdate runs fn against the locked account row and
// persists the balance it returns. The account is created with a zero
// balance on first interaction. Serialization and deadlock failures
// are retried with exponential backoff up to maxTxAttempts.
func (s *AccountStore) TransactionalUpdate(ctx context.Context, accountID uuid.UUID, fn ports.TxFunc) (int64, error) {
	// Ensure the row exists before taking the lock. Outside the retry
	// loop: the insert is idempotent and never serializes.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, balance, active, created_at, updated_at)
		 VALUES ($1, 0, TRUE, NOW(), NOW())
		 ON CONFLICT (id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("ensure account: %w", err))
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		newBalance, err := s.attempt(ctx, accountID, fn)
		if err == nil {
			return newBalance, nil
		}
		if !isRetryable(err) {
			return 0, err
		}
		lastErr = err
		s.log.Warn().
			Err(err).
			Str("account_id", accountID.String()).
			Int("attempt", attempt).
			Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return 0, apperror.InternalError(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return 0, apperror.ErrConflictRetriesExhausted(lastErr)
}

func (s *AccountStore) attempt(ctx context.Context, accountID uuid.UUID, fn ports.TxFunc) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int64
	var active bool
	err = tx.QueryRow(ctx,
		`SELECT balance, active FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&balance, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.ErrAccountNotFound()
		}
		return 0, wrapTxErr(fmt.Errorf("lock account: %w", err))
	}
	if !active {
		return 0, apperror.ErrAccountNotFound()
	}

	newBalance, err := fn(ctx, tx, balance)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return 0, err
		}
		return 0, wrapTxErr(err)
	}
	if newBalance < 0 {
		return 0, apperror.ErrInvariantViolation(
			fmt.Errorf("account %s: balance %d would become %d", accountID, balance, newBalance))
	}

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`,
		newBalance, accountID,
	)
	if err != nil {
		return 0, wrapTxErr(fmt.Errorf("update balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return 0, apperror.ErrAccountNotFound()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, wrapTxErr(fmt.Errorf("commit tx: %w", err))
	}
	return newBalance, nil
}

// Get fetches an account without locking. A never-seen account returns
// nil, nil.
func (s *AccountStore) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	a := &domain.Account{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, balance, active, created_at, updated_at FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&a.ID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// Deactivate soft-deletes an account. Vouchers keep referencing it; a
// deactivated account rejects further earn and redeem calls.
func (s *AccountStore) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`,
		accountID,
	)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("deactivate account: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrAccountNotFound()
	}
	return nil
}

// wrapTxErr keeps raw pg errors unwrapped enough for the retry check
// while presenting everything else as an internal error.
func wrapTxErr(err error) error {
	if isRetryable(err) {
		return err
	}
	return apperror.InternalError(err)
}

// isRetryable reports whether the error is a transient serialization
// or deadlock failure worth retrying.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
