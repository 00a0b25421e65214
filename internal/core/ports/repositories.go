package ports

import (
	"context"

	"commute-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxFunc computes the new balance for one account inside a store
// transaction. It receives the durable balance as of transaction start
// and may perform side effects (ledger append, voucher insert,
// idempotency log) through tx-scoped repository methods; those commit
// or roll back together with the balance write.
type TxFunc func(ctx context.Context, tx pgx.Tx, balance int64) (int64, error)

// AccountStore is the single entry point for balance mutation.
//
// TransactionalUpdate locks the account row so that concurrent updates
// on the same account serialize, while updates on distinct accounts
// proceed independently. The account is created with a zero balance on
// first interaction. A fn result below zero aborts the transaction with
// an invariant violation; transient serialization failures are retried
// with a bounded budget before surfacing a conflict error.
type AccountStore interface {
	TransactionalUpdate(ctx context.Context, accountID uuid.UUID, fn TxFunc) (int64, error)
	Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

// LedgerRepository persists the append-only audit trail. Append is only
// ever called with a live AccountStore transaction; no update or delete
// methods exist.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByAccount(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// SumDeltas returns the sum of all entry deltas for an account,
	// used to check the ledger against the stored balance.
	SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// LedgerListParams holds pagination for listing ledger entries in
// commit order.
type LedgerListParams struct {
	AccountID uuid.UUID
	Page      int
	PageSize  int
}

// VoucherRepository persists redemption receipts. Create is only called
// inside the redeem transaction; status updates run on their own and
// guard the legal transition in SQL.
type VoucherRepository interface {
	Create(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Voucher, error)
	// UpdateStatus transitions a voucher from ACTIVE to next. Returns
	// false when the voucher was not in ACTIVE state (lost race or
	// already terminal).
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.VoucherStatus) (bool, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
