package handler

import (
	"math"
	"strconv"

	"commute-rewards/internal/adapter/http/dto"
	"commute-rewards/internal/adapter/http/middleware"
	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"
	"commute-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PointsHandler handles earning, redemption and the points read side.
type PointsHandler struct {
	earnSvc      ports.EarnService
	redeemSvc    ports.RedemptionService
	reportingSvc ports.ReportingService
}

// NewPointsHandler creates a new PointsHandler.
func NewPointsHandler(earnSvc ports.EarnService, redeemSvc ports.RedemptionService, reportingSvc ports.ReportingService) *PointsHandler {
	return &PointsHandler{
		earnSvc:      earnSvc,
		redeemSvc:    redeemSvc,
		reportingSvc: reportingSvc,
	}
}

// Earn handles POST /api/v1/points/earn.
func (h *PointsHandler) Earn(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.EarnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.earnSvc.Earn(c.Request.Context(), ports.EarnRequest{
		AccountID:   accountID.(uuid.UUID),
		Amount:      req.Amount,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.EarnResponse{
		EntryID:    result.EntryID.String(),
		NewBalance: result.NewBalance,
	})
}

// Redeem handles POST /api/v1/points/redeem.
func (h *PointsHandler) Redeem(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.redeemSvc.Redeem(c.Request.Context(), ports.RedeemRequest{
		AccountID:   accountID.(uuid.UUID),
		RewardTitle: req.RewardTitle,
		ClaimedCost: req.PointsCost,
		ReferenceID: req.ReferenceID,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RedeemResponse{
		Voucher:    toVoucherResponse(result.Voucher),
		NewBalance: result.NewBalance,
	})
}

// GetBalance handles GET /api/v1/points/balance.
func (h *PointsHandler) GetBalance(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.reportingSvc.GetBalance(c.Request.Context(), accountID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		AccountID: accountID.(uuid.UUID).String(),
		Balance:   balance,
	})
}

// ListLedger handles GET /api/v1/points/ledger.
func (h *PointsHandler) ListLedger(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	entries, total, err := h.reportingSvc.ListLedger(c.Request.Context(), ports.LedgerListParams{
		AccountID: accountID.(uuid.UUID),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// VerifyLedger handles GET /api/v1/points/ledger/verify.
func (h *PointsHandler) VerifyLedger(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	v, err := h.reportingSvc.VerifyAccount(c.Request.Context(), accountID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LedgerVerifyResponse{
		AccountID:  v.AccountID.String(),
		Balance:    v.Balance,
		LedgerSum:  v.LedgerSum,
		Consistent: v.Consistent,
	})
}

// toLedgerEntryResponse converts domain.LedgerEntry to DTO.
func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:           e.ID.String(),
		Seq:          e.Seq,
		Kind:         string(e.Kind),
		Delta:        e.Delta,
		Reason:       e.Reason,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
