package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Input Validation (VAL) ----

// Validation returns a VAL_001 error with a precise reason string.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be a positive integer", http.StatusBadRequest)
}

func ErrAmountExceedsMax(max int64) *AppError {
	return New("VAL_001", fmt.Sprintf("Amount exceeds per-event maximum of %d points", max), http.StatusBadRequest)
}

func ErrUnknownReason(reason string) *AppError {
	return New("VAL_001", fmt.Sprintf("Unrecognized earning reason %q", reason), http.StatusBadRequest)
}

// ---- Rewards & Catalog (RWD) ----

// ErrInvalidReward covers both an unknown reward title and a claimed
// cost that does not match the catalog. The two cases are deliberately
// indistinguishable to the caller.
func ErrInvalidReward() *AppError {
	return New("RWD_001", "Unknown reward or cost does not match catalog", http.StatusUnprocessableEntity)
}

// ---- Points Business Logic (PTS) ----

func ErrInsufficientBalance() *AppError {
	return New("PTS_001", "Insufficient points balance", http.StatusPaymentRequired)
}

func ErrConflictRetriesExhausted(err error) *AppError {
	return Wrap("PTS_002", "Operation conflicted with concurrent updates, retry the request", http.StatusConflict, err)
}

func ErrInvariantViolation(err error) *AppError {
	return Wrap("PTS_003", "Balance invariant violation", http.StatusInternalServerError, err)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound)
}

// ---- Vouchers (VCH) ----

func ErrVoucherNotFound() *AppError {
	return New("VCH_001", "Voucher not found", http.StatusNotFound)
}

func ErrInvalidStatusTransition(from, to string) *AppError {
	return New("VCH_002", fmt.Sprintf("Voucher status cannot change from %s to %s", from, to), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error. The cause
// stays server-side; clients only see the generic message.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
