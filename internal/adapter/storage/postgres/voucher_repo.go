package postgres

import (
	"context"
	"errors"
	"fmt"

	"commute-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VoucherRepo implements ports.VoucherRepository.
type VoucherRepo struct {
	pool Pool
}

// NewVoucherRepo creates a new VoucherRepo.
func NewVoucherRepo(pool Pool) *VoucherRepo {
	return &VoucherRepo{pool: pool}
}

// Create inserts a voucher within the redeem transaction.
func (r *VoucherRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	query := `INSERT INTO vouchers (id, account_id, reward_title, cost_paid, status, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		v.ID, v.AccountID, v.RewardTitle, v.CostPaid, string(v.Status), v.IssuedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	return nil
}

// GetByID fetches a voucher by its UUID.
func (r *VoucherRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	query := `SELECT id, account_id, reward_title, cost_paid, status, issued_at, updated_at
		FROM vouchers WHERE id = $1`

	v := &domain.Voucher{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.AccountID, &v.RewardTitle, &v.CostPaid, &status, &v.IssuedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get voucher by id: %w", err)
	}
	v.Status = domain.VoucherStatus(status)
	return v, nil
}

// ListByAccount returns the account's vouchers, newest first.
func (r *VoucherRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Voucher, error) {
	query := `SELECT id, account_id, reward_title, cost_paid, status, issued_at, updated_at
		FROM vouchers WHERE account_id = $1
		ORDER BY issued_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []domain.Voucher{}
	for rows.Next() {
		var v domain.Voucher
		var status string
		if err := rows.Scan(&v.ID, &v.AccountID, &v.RewardTitle, &v.CostPaid, &status, &v.IssuedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		v.Status = domain.VoucherStatus(status)
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vouchers: %w", err)
	}
	return vouchers, nil
}

// UpdateStatus transitions a voucher out of ACTIVE. The WHERE clause
// guards the legal transition; a concurrent transition that wins the
// race leaves zero rows affected here.
func (r *VoucherRepo) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.VoucherStatus) (bool, error) {
	query := `UPDATE vouchers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'ACTIVE'`

	tag, err := r.pool.Exec(ctx, query, string(next), id)
	if err != nil {
		return false, fmt.Errorf("update voucher status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
