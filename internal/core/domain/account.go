package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account holds one student's points balance. The balance is never
// written outside the account store's transactional update; it is
// always >= 0.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Balance   int64     `json:"balance"`
	Active    bool      `json:"active"` // soft-deactivated instead of deleted while vouchers reference it
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
