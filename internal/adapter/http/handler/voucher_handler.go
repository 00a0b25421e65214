package handler

import (
	"commute-rewards/internal/adapter/http/dto"
	"commute-rewards/internal/adapter/http/middleware"
	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"
	"commute-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VoucherHandler handles voucher listing and status transitions.
type VoucherHandler struct {
	voucherSvc ports.VoucherService
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(voucherSvc ports.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherSvc: voucherSvc}
}

// List handles GET /api/v1/vouchers.
func (h *VoucherHandler) List(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	vouchers, err := h.voucherSvc.ListVouchers(c.Request.Context(), accountID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.VoucherResponse, 0, len(vouchers))
	for i := range vouchers {
		items = append(items, toVoucherResponse(&vouchers[i]))
	}

	response.OK(c, items)
}

// UpdateStatus handles POST /api/v1/vouchers/:id/status.
func (h *VoucherHandler) UpdateStatus(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	voucherID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid voucher id"))
		return
	}

	var req dto.VoucherStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	next := domain.VoucherStatusUsed
	if req.Status == "expired" {
		next = domain.VoucherStatusExpired
	}

	voucher, err := h.voucherSvc.UpdateStatus(c.Request.Context(), accountID.(uuid.UUID), voucherID, next)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toVoucherResponse(voucher))
}

// toVoucherResponse converts domain.Voucher to DTO.
func toVoucherResponse(v *domain.Voucher) dto.VoucherResponse {
	return dto.VoucherResponse{
		ID:          v.ID.String(),
		RewardTitle: v.RewardTitle,
		CostPaid:    v.CostPaid,
		Status:      string(v.Status),
		IssuedAt:    v.IssuedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
