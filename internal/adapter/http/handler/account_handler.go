package handler

import (
	"commute-rewards/internal/adapter/http/middleware"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"
	"commute-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountHandler handles account lifecycle endpoints.
type AccountHandler struct {
	accountStore ports.AccountStore
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountStore ports.AccountStore) *AccountHandler {
	return &AccountHandler{accountStore: accountStore}
}

// Deactivate handles DELETE /api/v1/account. The account is soft
// deactivated: issued vouchers stay readable, further earn and redeem
// calls are rejected.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	if err := h.accountStore.Deactivate(c.Request.Context(), accountID.(uuid.UUID)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"deactivated": true})
}
