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

// VoucherServiceImpl implements ports.VoucherService.
type VoucherServiceImpl struct {
	voucherRepo ports.VoucherRepository
	auditSvc    ports.AuditService
	log         zerolog.Logger
}

// NewVoucherService creates a new VoucherServiceImpl.
func NewVoucherService(voucherRepo ports.VoucherRepository, auditSvc ports.AuditService, log zerolog.Logger) *VoucherServiceImpl {
	return &VoucherServiceImpl{voucherRepo: voucherRepo, auditSvc: auditSvc, log: log}
}

// ListVouchers returns all vouchers held by the account, newest first.
func (s *VoucherServiceImpl) ListVouchers(ctx context.Context, accountID uuid.UUID) ([]domain.Voucher, error) {
	vouchers, err := s.voucherRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list vouchers: %w", err))
	}
	return vouchers, nil
}

// UpdateStatus moves a voucher out of ACTIVE. USED and EXPIRED are
// terminal; a voucher that already left ACTIVE cannot move again, even
// under concurrent requests, because the transition is guarded by the
// repository's conditional update.
func (s *VoucherServiceImpl) UpdateStatus(ctx context.Context, accountID, voucherID uuid.UUID, next domain.VoucherStatus) (*domain.Voucher, error) {
	voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get voucher: %w", err))
	}
	// Hide other accounts' vouchers behind the same not-found error.
	if voucher == nil || voucher.AccountID != accountID {
		return nil, apperror.ErrVoucherNotFound()
	}

	if !voucher.CanTransitionTo(next) {
		return nil, apperror.ErrInvalidStatusTransition(string(voucher.Status), string(next))
	}

	ok, err := s.voucherRepo.UpdateStatus(ctx, voucherID, next)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update voucher status: %w", err))
	}
	if !ok {
		// Lost the race: someone else transitioned it first.
		current, err := s.voucherRepo.GetByID(ctx, voucherID)
		if err != nil || current == nil {
			return nil, apperror.ErrInvalidStatusTransition(string(domain.VoucherStatusActive), string(next))
		}
		return nil, apperror.ErrInvalidStatusTransition(string(current.Status), string(next))
	}

	acct := accountID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		AccountID:    &acct,
		Action:       domain.AuditActionVoucherStatus,
		ResourceType: "voucher",
		ResourceID:   voucherID.String(),
		Details:      `{"from":"` + string(voucher.Status) + `","to":"` + string(next) + `"}`,
	})

	s.log.Info().
		Str("voucher_id", voucherID.String()).
		Str("account_id", accountID.String()).
		Str("status", string(next)).
		Msg("voucher status updated")

	updated := *voucher
	updated.Status = next
	return &updated, nil
}
