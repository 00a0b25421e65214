package dto

// EarnRequest is the request body for crediting points.
type EarnRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required,max=50"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// RedeemRequest is the request body for redeeming a reward. PointsCost
// is the cost the client believes it is paying; the server checks it
// against the catalog and rejects any mismatch.
type RedeemRequest struct {
	RewardTitle string `json:"reward_title" binding:"required,max=100"`
	PointsCost  int64  `json:"points_cost"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// VoucherStatusRequest is the request body for voucher status updates.
type VoucherStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=used expired"`
}

// EarnResponse is the response body for a successful earn.
type EarnResponse struct {
	EntryID    string `json:"entry_id"`
	NewBalance int64  `json:"new_balance"`
}

// VoucherResponse is the wire form of a voucher.
type VoucherResponse struct {
	ID          string `json:"id"`
	RewardTitle string `json:"reward_title"`
	CostPaid    int64  `json:"cost_paid"`
	Status      string `json:"status"`
	IssuedAt    string `json:"issued_at"`
}

// RedeemResponse is the response body for a successful redemption.
type RedeemResponse struct {
	Voucher    VoucherResponse `json:"voucher"`
	NewBalance int64           `json:"new_balance"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// LedgerEntryResponse is the wire form of one ledger entry.
type LedgerEntryResponse struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	Kind         string `json:"kind"`
	Delta        int64  `json:"delta"`
	Reason       string `json:"reason"`
	BalanceAfter int64  `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

// LedgerListResponse wraps a paginated ledger page.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// LedgerVerifyResponse reports the audit replay outcome.
type LedgerVerifyResponse struct {
	AccountID  string `json:"account_id"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledger_sum"`
	Consistent bool   `json:"consistent"`
}

// RewardResponse is one catalog entry.
type RewardResponse struct {
	Title       string `json:"title"`
	Cost        int64  `json:"cost"`
	Description string `json:"description,omitempty"`
}
