package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog caches the committed result of an earn or redeem call
// so a client retry after a timeout returns the original outcome instead
// of double-applying points.
type IdempotencyLog struct {
	Key          string    `json:"key"` // "account_id:earn:reference_id" or "account_id:redeem:reference_id"
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"` // Cached response to return
	CreatedAt    time.Time `json:"created_at"`
}

// BuildEarnIdempotencyKey constructs the key for earn idempotency.
func BuildEarnIdempotencyKey(accountID uuid.UUID, referenceID string) string {
	return accountID.String() + ":earn:" + referenceID
}

// BuildRedeemIdempotencyKey constructs the key for redeem idempotency.
func BuildRedeemIdempotencyKey(accountID uuid.UUID, referenceID string) string {
	return accountID.String() + ":redeem:" + referenceID
}
