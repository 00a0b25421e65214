package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind represents the direction of a ledger entry.
type EntryKind string

const (
	EntryKindEarn   EntryKind = "EARN"
	EntryKindRedeem EntryKind = "REDEEM"
)

// EarnReason enumerates the commute actions that may credit points.
// Anything outside this set is rejected before the store is touched.
type EarnReason string

const (
	ReasonFirstRide        EarnReason = "first_ride"
	ReasonRideCompleted    EarnReason = "ride_completed"
	ReasonRideShared       EarnReason = "ride_shared"
	ReasonCrowdReport      EarnReason = "crowd_report"
	ReasonProfileCompleted EarnReason = "profile_completed"
	ReasonReferral         EarnReason = "referral"
)

// ValidEarnReason reports whether reason is a recognized earning reason.
func ValidEarnReason(reason string) bool {
	switch EarnReason(reason) {
	case ReasonFirstRide, ReasonRideCompleted, ReasonRideShared,
		ReasonCrowdReport, ReasonProfileCompleted, ReasonReferral:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one balance change. Entries are
// only ever appended, inside the same transaction as the balance write.
// Seq is assigned by the store at commit and gives per-account commit order.
type LedgerEntry struct {
	ID           uuid.UUID `json:"id"`
	Seq          int64     `json:"seq"`
	AccountID    uuid.UUID `json:"account_id"`
	Kind         EntryKind `json:"kind"`
	Delta        int64     `json:"delta"` // positive for EARN, negative for REDEEM
	Reason       string    `json:"reason"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
