package service

import (
	"context"
	"fmt"

	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	store      ports.AccountStore
	ledgerRepo ports.LedgerRepository
	log        zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(store ports.AccountStore, ledgerRepo ports.LedgerRepository, log zerolog.Logger) ports.ReportingService {
	return &reportingService{store: store, ledgerRepo: ledgerRepo, log: log}
}

// GetBalance returns the durable balance for the account. An account
// that has never earned or redeemed reads as zero.
func (s *reportingService) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// ListLedger returns a paginated slice of the account's ledger in
// commit order, plus the total entry count.
func (s *reportingService) ListLedger(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.ledgerRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	return entries, total, nil
}

// VerifyAccount replays the ledger and checks that the summed deltas
// reproduce the stored balance.
func (s *reportingService) VerifyAccount(ctx context.Context, accountID uuid.UUID) (*ports.LedgerVerification, error) {
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	sum, err := s.ledgerRepo.SumDeltas(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum ledger deltas: %w", err))
	}

	consistent := sum == account.Balance
	if !consistent {
		s.log.Error().
			Str("account_id", accountID.String()).
			Int64("balance", account.Balance).
			Int64("ledger_sum", sum).
			Msg("ledger sum does not match stored balance")
	}

	return &ports.LedgerVerification{
		AccountID:  accountID,
		Balance:    account.Balance,
		LedgerSum:  sum,
		Consistent: consistent,
	}, nil
}
