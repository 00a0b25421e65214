package domain

import (
	"time"

	"github.com/google/uuid"
)

// VoucherStatus represents the lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherStatusActive  VoucherStatus = "ACTIVE"
	VoucherStatusUsed    VoucherStatus = "USED"
	VoucherStatusExpired VoucherStatus = "EXPIRED"
)

// Voucher is the receipt for one successful redemption. Its existence
// proves a completed, paid redeem: it is created in the same transaction
// as the debit and the ledger entry, never on its own.
type Voucher struct {
	ID          uuid.UUID     `json:"id"`
	AccountID   uuid.UUID     `json:"account_id"`
	RewardTitle string        `json:"reward_title"`
	CostPaid    int64         `json:"cost_paid"` // catalog cost at issuance time
	Status      VoucherStatus `json:"status"`
	IssuedAt    time.Time     `json:"issued_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// CanTransitionTo reports whether the status change is legal. A voucher
// starts ACTIVE and may move to USED or EXPIRED exactly once; terminal
// states never change.
func (v *Voucher) CanTransitionTo(next VoucherStatus) bool {
	if v.Status != VoucherStatusActive {
		return false
	}
	return next == VoucherStatusUsed || next == VoucherStatusExpired
}
