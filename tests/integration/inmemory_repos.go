package integration

import (
	"context"
	"sync"

	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// The in-memory stores below stand in for PostgreSQL. The account store
// keeps a real per-account mutex so the locking discipline under test
// matches the row-lock behavior of the SQL implementation: concurrent
// updates on one account serialize, distinct accounts run in parallel.

// --- In-Memory Account Store ---

type inMemoryAccount struct {
	mu      sync.Mutex
	balance int64
	active  bool
}

type inMemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*inMemoryAccount
}

func newInMemoryAccountStore() *inMemoryAccountStore {
	return &inMemoryAccountStore{accounts: make(map[uuid.UUID]*inMemoryAccount)}
}

func (s *inMemoryAccountStore) ensure(accountID uuid.UUID) *inMemoryAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		acc = &inMemoryAccount{active: true}
		s.accounts[accountID] = acc
	}
	return acc
}

func (s *inMemoryAccountStore) TransactionalUpdate(ctx context.Context, accountID uuid.UUID, fn ports.TxFunc) (int64, error) {
	acc := s.ensure(accountID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if !acc.active {
		return 0, apperror.ErrAccountNotFound()
	}

	var tx pgx.Tx // side effects are applied directly, no real transaction
	newBalance, err := fn(ctx, tx, acc.balance)
	if err != nil {
		return 0, err
	}
	if newBalance < 0 {
		return 0, apperror.ErrInvariantViolation(nil)
	}
	acc.balance = newBalance
	return newBalance, nil
}

func (s *inMemoryAccountStore) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	acc, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return &domain.Account{ID: accountID, Balance: acc.balance, Active: acc.active}, nil
}

func (s *inMemoryAccountStore) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	acc, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return apperror.ErrAccountNotFound()
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if !acc.active {
		return apperror.ErrAccountNotFound()
	}
	acc.active = false
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]domain.LedgerEntry
	nextSeq map[uuid.UUID]int64
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{
		entries: make(map[uuid.UUID][]domain.LedgerEntry),
		nextSeq: make(map[uuid.UUID]int64),
	}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq[entry.AccountID]++
	entry.Seq = r.nextSeq[entry.AccountID]
	r.entries[entry.AccountID] = append(r.entries[entry.AccountID], *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByAccount(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.entries[params.AccountID]
	total := int64(len(all))

	offset := (params.Page - 1) * params.PageSize
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	out := make([]domain.LedgerEntry, end-offset)
	copy(out, all[offset:end])
	return out, total, nil
}

func (r *inMemoryLedgerRepo) SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries[accountID] {
		sum += e.Delta
	}
	return sum, nil
}

// --- In-Memory Voucher Repo ---

type inMemoryVoucherRepo struct {
	mu       sync.Mutex
	vouchers map[uuid.UUID]*domain.Voucher
}

func newInMemoryVoucherRepo() *inMemoryVoucherRepo {
	return &inMemoryVoucherRepo{vouchers: make(map[uuid.UUID]*domain.Voucher)}
}

func (r *inMemoryVoucherRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.vouchers[v.ID] = &cp
	return nil
}

func (r *inMemoryVoucherRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *inMemoryVoucherRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Voucher
	for _, v := range r.vouchers {
		if v.AccountID == accountID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *inMemoryVoucherRepo) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.VoucherStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[id]
	if !ok || v.Status != domain.VoucherStatusActive {
		return false, nil
	}
	v.Status = next
	return true, nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu   sync.Mutex
	logs map[string]*domain.IdempotencyLog
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{logs: make(map[string]*domain.IdempotencyLog)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.Key] = &cp
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[key]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}
