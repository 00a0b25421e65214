package ports

import (
	"context"
	"time"

	"commute-rewards/internal/core/domain"

	"github.com/google/uuid"
)

// RewardCatalog is the server-trusted mapping of reward title to cost.
// Lookup is pure and read-only; the catalog is never writable through
// any client-facing interface.
type RewardCatalog interface {
	Lookup(title string) (domain.RewardDefinition, bool)
	List() []domain.RewardDefinition
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TokenService handles JWT token operations. Tokens are issued by the
// main commute app with a shared secret; this service validates them
// and extracts the account identity.
type TokenService interface {
	Generate(accountID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
}

// --- Service Ports (Business Logic) ---

// EarnService validates and applies point-earning events.
type EarnService interface {
	Earn(ctx context.Context, req EarnRequest) (*EarnResult, error)
}

// EarnRequest holds validated input for crediting points.
type EarnRequest struct {
	AccountID   uuid.UUID
	Amount      int64
	Reason      string
	ReferenceID string // optional; enables idempotent retries
	ClientIP    string
}

// EarnResult is the committed outcome of an earn call.
type EarnResult struct {
	EntryID    uuid.UUID `json:"entry_id"`
	NewBalance int64     `json:"new_balance"`
}

// RedemptionService orchestrates catalog validation, atomic debit,
// ledger entry and voucher issuance as one unit.
type RedemptionService interface {
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
}

// RedeemRequest holds validated input for redeeming a reward. The
// claimed cost is checked against the catalog, never trusted.
type RedeemRequest struct {
	AccountID   uuid.UUID
	RewardTitle string
	ClaimedCost int64
	ReferenceID string // optional; enables idempotent retries
	ClientIP    string
}

// RedeemResult is the committed outcome of a redeem call.
type RedeemResult struct {
	Voucher    *domain.Voucher `json:"voucher"`
	NewBalance int64           `json:"new_balance"`
}

// VoucherService serves the read side of vouchers and the status
// transitions driven by external redemption-verification flows.
type VoucherService interface {
	ListVouchers(ctx context.Context, accountID uuid.UUID) ([]domain.Voucher, error)
	UpdateStatus(ctx context.Context, accountID, voucherID uuid.UUID, next domain.VoucherStatus) (*domain.Voucher, error)
}

// ReportingService serves balance and ledger reads.
type ReportingService interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	ListLedger(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// VerifyAccount replays the ledger and checks that the summed
	// deltas reproduce the stored balance.
	VerifyAccount(ctx context.Context, accountID uuid.UUID) (*LedgerVerification, error)
}

// LedgerVerification is the outcome of an audit replay.
type LedgerVerification struct {
	AccountID  uuid.UUID `json:"account_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

// AuditService records audited actions (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
