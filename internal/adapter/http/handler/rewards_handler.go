package handler

import (
	"commute-rewards/internal/adapter/http/dto"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// RewardsHandler serves the read-only reward catalog.
type RewardsHandler struct {
	catalog ports.RewardCatalog
}

// NewRewardsHandler creates a new RewardsHandler.
func NewRewardsHandler(catalog ports.RewardCatalog) *RewardsHandler {
	return &RewardsHandler{catalog: catalog}
}

// List handles GET /api/v1/rewards. The catalog is public; clients use
// it for display only, the server re-checks every cost at redeem time.
func (h *RewardsHandler) List(c *gin.Context) {
	defs := h.catalog.List()

	items := make([]dto.RewardResponse, 0, len(defs))
	for _, d := range defs {
		items = append(items, dto.RewardResponse{
			Title:       d.Title,
			Cost:        d.Cost,
			Description: d.Description,
		})
	}

	response.OK(c, items)
}
